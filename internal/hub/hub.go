package hub

import (
	"context"
	"errors"

	"github.com/DoyleJ11/league-ladder-backend/internal/session"
)

var ErrStopped = errors.New("hub stopped")

type HubMsg interface{ isHubMsg() }

// Spawner starts the actor for a loaded game. It must not block.
type Spawner func(ctx context.Context, game session.GameSession) *session.Session

type GetSession struct {
	ID    int64
	Reply chan *session.Session
}

// EnsureSession returns the running session for Game.ID, spawning one from
// Game when there is none.
type EnsureSession struct {
	Game  session.GameSession // only used if creation happens
	Reply chan *session.Session
}

// RemoveSession forgets ID if it still maps to Session.
type RemoveSession struct {
	ID      int64
	Session *session.Session
}

type CountSessions struct {
	Reply chan int
}

type ShutdownHub struct {
	Done chan struct{} // optional, closed once every session stopped
}

type Hub struct {
	inbox    chan HubMsg
	sessions map[int64]*session.Session
	spawn    Spawner
	ctx      context.Context
	cancel   context.CancelFunc
}

func (GetSession) isHubMsg()    {}
func (EnsureSession) isHubMsg() {}
func (RemoveSession) isHubMsg() {}
func (CountSessions) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

func NewHub(parent context.Context, spawn Spawner) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[int64]*session.Session),
		spawn:    spawn,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) send(m HubMsg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) Get(ctx context.Context, id int64) (*session.Session, error) {
	reply := make(chan *session.Session, 1)
	if !h.send(GetSession{ID: id, Reply: reply}) {
		return nil, ErrStopped
	}
	return h.wait(ctx, reply)
}

func (h *Hub) Ensure(ctx context.Context, game session.GameSession) (*session.Session, error) {
	reply := make(chan *session.Session, 1)
	if !h.send(EnsureSession{Game: game, Reply: reply}) {
		return nil, ErrStopped
	}
	return h.wait(ctx, reply)
}

func (h *Hub) Remove(id int64, s *session.Session) {
	h.send(RemoveSession{ID: id, Session: s})
}

func (h *Hub) Count(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	if !h.send(CountSessions{Reply: reply}) {
		return 0, ErrStopped
	}
	select {
	case n := <-reply:
		return n, nil
	case <-h.ctx.Done():
		return 0, ErrStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Shutdown stops every session and waits until their last saves are done.
func (h *Hub) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	if !h.send(ShutdownHub{Done: done}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) wait(ctx context.Context, reply chan *session.Session) (*session.Session, error) {
	select {
	case s := <-reply:
		return s, nil
	case <-h.ctx.Done():
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetSession:
				msg.Reply <- h.sessions[msg.ID] // May be nil

			case EnsureSession:
				if s := h.sessions[msg.Game.ID]; s != nil {
					msg.Reply <- s
					break
				}
				s := h.spawn(h.ctx, msg.Game)
				h.sessions[msg.Game.ID] = s
				msg.Reply <- s

			case RemoveSession:
				if h.sessions[msg.ID] == msg.Session {
					delete(h.sessions, msg.ID)
				}

			case CountSessions:
				msg.Reply <- len(h.sessions)

			case ShutdownHub:
				running := make([]*session.Session, 0, len(h.sessions))
				for _, s := range h.sessions {
					s.Send(session.Shutdown{})
					running = append(running, s)
				}
				clear(h.sessions)
				h.cancel()
				if msg.Done != nil {
					go func() {
						for _, s := range running {
							<-s.Done()
						}
						close(msg.Done)
					}()
				}
				return
			}
		}
	}
}
