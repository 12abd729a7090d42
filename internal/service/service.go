// Package service owns the session lifecycle: it loads sessions from the
// store into running actors, falls back when an id is gone, creates and
// deletes sessions and feeds remote changes into the running actor.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/DoyleJ11/league-ladder-backend/internal/engine"
	"github.com/DoyleJ11/league-ladder-backend/internal/hub"
	"github.com/DoyleJ11/league-ladder-backend/internal/notify"
	"github.com/DoyleJ11/league-ladder-backend/internal/session"
	"github.com/DoyleJ11/league-ladder-backend/internal/store"
)

var ErrTitleRequired = errors.New("title required")

type Config struct {
	Title    string
	Names    [engine.Players]string
	Origin   string // tags our own writes so their notifications are ignored
	Notifier notify.Notifier
	Logger   *zap.Logger
}

type Service struct {
	store    store.Store
	hub      *hub.Hub
	notifier notify.Notifier
	log      *zap.Logger
	origin   string
	title    string
	names    [engine.Players]string
	loads    singleflight.Group
}

func New(ctx context.Context, st store.Store, cfg Config) *Service {
	if cfg.Title == "" {
		cfg.Title = session.DefaultTitle
	}
	cfg.Names = session.CleanNames(cfg.Names, session.DefaultNames)
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Origin == "" {
		cfg.Origin = uuid.NewString()
	}

	s := &Service{
		store:    st,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		origin:   cfg.Origin,
		title:    cfg.Title,
		names:    cfg.Names,
	}
	s.hub = hub.NewHub(ctx, s.spawn)
	return s
}

func (s *Service) Origin() string { return s.origin }

// Open returns the running session for id. When id is 0 or no longer
// exists it falls back to the newest session, creating a default one if
// the store is empty.
func (s *Service) Open(ctx context.Context, id int64) (*session.Session, error) {
	if id <= 0 {
		return s.fallback(ctx)
	}
	sess, err := s.open(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Info("session gone, falling back", zap.Int64("session", id))
		return s.fallback(ctx)
	}
	return sess, err
}

// Session returns the running session for id without falling back;
// store.ErrNotFound when id does not exist.
func (s *Service) Session(ctx context.Context, id int64) (*session.Session, error) {
	return s.open(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]store.Summary, error) {
	return s.store.List(ctx)
}

func (s *Service) Create(ctx context.Context, title string) (*session.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	return s.create(ctx, title)
}

// Delete stops the session, lets its last save land, removes it from the
// store and returns the session that takes its place.
func (s *Service) Delete(ctx context.Context, id int64) (*session.Session, error) {
	running, err := s.hub.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if running != nil {
		running.Send(session.Shutdown{})
		select {
		case <-running.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		s.hub.Remove(id, running)
	}

	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	s.log.Info("session deleted", zap.Int64("session", id))
	return s.fallback(ctx)
}

// Running reports how many sessions are loaded.
func (s *Service) Running(ctx context.Context) (int, error) {
	return s.hub.Count(ctx)
}

// Shutdown stops every session after flushing its pending save.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.hub.Shutdown(ctx)
}

func (s *Service) open(ctx context.Context, id int64) (*session.Session, error) {
	sess, err := s.hub.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		select {
		case <-sess.Done():
			// Stopped but its watcher has not unregistered it yet.
			s.hub.Remove(id, sess)
		default:
			return sess, nil
		}
	}

	v, err, _ := s.loads.Do(strconv.FormatInt(id, 10), func() (any, error) {
		rec, err := s.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		return s.hub.Ensure(ctx, session.FromRecord(rec, s.names))
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}

func (s *Service) fallback(ctx context.Context) (*session.Session, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for _, sum := range list {
		sess, err := s.open(ctx, sum.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue // deleted between List and Load
		}
		return sess, err
	}
	return s.create(ctx, s.title)
}

func (s *Service) create(ctx context.Context, title string) (*session.Session, error) {
	rec, err := s.store.Create(ctx, title, store.Defaults{P1Name: s.names[0], P2Name: s.names[1]})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.log.Info("session created", zap.Int64("session", rec.ID), zap.String("title", rec.Title))
	return s.hub.Ensure(ctx, session.FromRecord(rec, s.names))
}

// spawn runs inside the hub loop and must not block.
func (s *Service) spawn(ctx context.Context, game session.GameSession) *session.Session {
	sess := session.New(ctx, game, session.Options{
		Saver:        s.store,
		Notifier:     s.notifier,
		Logger:       s.log,
		Origin:       s.origin,
		DefaultNames: s.names,
	})

	unsubscribe := s.store.Subscribe(game.ID, func(u store.Update) {
		if u.Deleted {
			// Clients lose their connection and fall back when they reopen.
			s.log.Info("session deleted elsewhere", zap.Int64("session", game.ID))
			sess.Send(session.Shutdown{})
			return
		}
		if u.Origin == s.origin {
			return
		}
		sess.Send(session.RemoteUpdate{Record: u.Record})
	})

	go func() {
		<-sess.Done()
		unsubscribe()
		s.hub.Remove(game.ID, sess)
	}()
	return sess
}
