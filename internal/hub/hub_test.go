package hub

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/league-ladder-backend/internal/engine"
	"github.com/DoyleJ11/league-ladder-backend/internal/session"
	"github.com/DoyleJ11/league-ladder-backend/internal/store"
)

func spawner(opts session.Options) Spawner {
	return func(ctx context.Context, game session.GameSession) *session.Session {
		return session.New(ctx, game, opts)
	}
}

func TestHub_Ensure_Get_SamePointer(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, spawner(session.Options{}))
	reply := make(chan *session.Session, 1)

	game := session.GameSession{ID: 7, Title: session.DefaultTitle, Names: session.DefaultNames}
	h.Inbox() <- EnsureSession{Game: game, Reply: reply}
	s1 := <-reply

	h.Inbox() <- GetSession{ID: 7, Reply: reply}
	s2 := <-reply

	h.Inbox() <- EnsureSession{Game: game, Reply: reply}
	s3 := <-reply

	if n, _ := h.Count(ctx); n != 1 {
		t.Fatalf("want 1 running session, got %d", n)
	}
	if s1 == nil || s2 == nil || s1 != s2 || s2 != s3 {
		t.Fatalf("expected same session pointer")
	}
}

func TestHub_GetUnknownIsNil(t *testing.T) {
	h := NewHub(context.Background(), spawner(session.Options{}))
	s, err := h.Get(context.Background(), 99)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s != nil {
		t.Fatalf("expected nil for unknown id")
	}
}

func TestHub_RemoveIgnoresStaleSession(t *testing.T) {
	ctx := context.Background()
	h := NewHub(ctx, spawner(session.Options{}))

	game := session.GameSession{ID: 1}
	s1, _ := h.Ensure(ctx, game)
	h.Remove(1, s1)

	s2, _ := h.Ensure(ctx, game)
	if s2 == s1 {
		t.Fatalf("expected a fresh session after remove")
	}

	// A late removal for the old session must not evict the new one.
	h.Remove(1, s1)
	got, _ := h.Get(ctx, 1)
	if got != s2 {
		t.Fatalf("stale remove evicted the running session")
	}
}

type countingSaver struct{ saves chan int64 }

func (c countingSaver) Update(ctx context.Context, id int64, f store.Fields) error {
	c.saves <- id
	return nil
}

func TestHub_ShutdownWaitsForSessions(t *testing.T) {
	ctx := context.Background()
	saver := countingSaver{saves: make(chan int64, 8)}
	h := NewHub(ctx, spawner(session.Options{Saver: saver}))

	var running []*session.Session
	for id := int64(1); id <= 3; id++ {
		s, err := h.Ensure(ctx, session.GameSession{ID: id})
		if err != nil {
			t.Fatalf("ensure %d: %v", id, err)
		}
		if _, err := s.Apply(ctx, engine.Command{Type: engine.CmdAddWin, Player: 0}); err != nil {
			t.Fatalf("apply %d: %v", id, err)
		}
		running = append(running, s)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := h.Shutdown(stopCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	for _, s := range running {
		select {
		case <-s.Done():
		default:
			t.Fatalf("session %d still running after shutdown", s.ID())
		}
	}

	if len(saver.saves) != 3 {
		t.Fatalf("want one save per session, got %d", len(saver.saves))
	}

	if _, err := h.Get(ctx, 1); err != ErrStopped {
		t.Fatalf("get after shutdown: want ErrStopped, got %v", err)
	}
}
