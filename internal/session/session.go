// Package session runs one game session as an actor: a single goroutine owns
// the GameSession, applies commands in order, notifies listeners, queues a
// full-state save and broadcasts the new snapshot to connected clients.
package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/league-ladder-backend/internal/engine"
	"github.com/DoyleJ11/league-ladder-backend/internal/notify"
	"github.com/DoyleJ11/league-ladder-backend/internal/store"
)

var ErrClosed = errors.New("session closed")

const saveTimeout = 5 * time.Second

type Msg interface{ isSessionMsg() }

type FromClient struct {
	Cmd   engine.Command
	Reply chan Result // optional, must be buffered
}

func (FromClient) isSessionMsg() {}

type Rename struct {
	Names [engine.Players]string
	Reply chan Result
}

func (Rename) isSessionMsg() {}

type SetSounds struct {
	Sounds Sounds
	Reply  chan Result
}

func (SetSounds) isSessionMsg() {}

// RemoteUpdate replaces the whole session with a row written elsewhere.
// Local changes that were not saved yet are lost, in memory and in the store.
type RemoteUpdate struct {
	Record store.Record
}

func (RemoteUpdate) isSessionMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isSessionMsg() {}

type Leave struct{ ClientID string }

func (Leave) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type Snapshot struct {
	Version int
	Game    GameSession
	// Events emitted by the change that produced this snapshot.
	Events []engine.Event
}

type View struct {
	Version    int
	NumClients int
	Game       GameSession
}

type Result struct {
	Snapshot Snapshot
	Err      error
}

// Saver is the part of the store a session writes to.
type Saver interface {
	Update(ctx context.Context, id int64, f store.Fields) error
}

type Options struct {
	Saver        Saver
	Notifier     notify.Notifier
	Logger       *zap.Logger
	Origin       string
	DefaultNames [engine.Players]string
}

type Session struct {
	id      int64
	inbox   chan Msg
	game    GameSession
	version int
	clients map[string]chan Snapshot
	saves   chan store.Fields
	// unsaved counts saves queued or in flight.
	unsaved atomic.Int32
	opts    Options
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New starts the actor for an already loaded game.
func New(parent context.Context, game GameSession, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)

	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultNames == ([engine.Players]string{}) {
		opts.DefaultNames = DefaultNames
	}

	s := &Session{
		id:      game.ID,
		inbox:   make(chan Msg, 64),
		game:    game,
		clients: make(map[string]chan Snapshot),
		saves:   make(chan store.Fields, 1),
		opts:    opts,
		log:     opts.Logger.Named("session").With(zap.Int64("session", game.ID)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	saverDone := make(chan struct{})
	go func() {
		defer close(saverDone)
		s.saveLoop()
	}()
	go func() {
		s.loop()
		<-saverDone
		close(s.done)
	}()
	return s
}

func (s *Session) ID() int64 { return s.id }

// Expose the inbox so tests or the ws layer can send messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Done is closed once the session stopped and its last save finished.
func (s *Session) Done() <-chan struct{} { return s.done }

// Send delivers m unless the session already stopped.
func (s *Session) Send(m Msg) bool {
	select {
	case s.inbox <- m:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) Apply(ctx context.Context, cmd engine.Command) (Snapshot, error) {
	return s.request(ctx, func(reply chan Result) Msg { return FromClient{Cmd: cmd, Reply: reply} })
}

func (s *Session) Rename(ctx context.Context, names [engine.Players]string) (Snapshot, error) {
	return s.request(ctx, func(reply chan Result) Msg { return Rename{Names: names, Reply: reply} })
}

func (s *Session) SetSounds(ctx context.Context, sounds Sounds) (Snapshot, error) {
	return s.request(ctx, func(reply chan Result) Msg { return SetSounds{Sounds: sounds, Reply: reply} })
}

func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !s.Send(GetState{Reply: reply}) {
		return View{}, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.ctx.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (s *Session) request(ctx context.Context, build func(chan Result) Msg) (Snapshot, error) {
	reply := make(chan Result, 1)
	if !s.Send(build(reply)) {
		return Snapshot{}, ErrClosed
	}
	select {
	case res := <-reply:
		return res.Snapshot, res.Err
	case <-s.ctx.Done():
		return Snapshot{}, ErrClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				s.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: s.version, Game: s.game}

			case Leave:
				delete(s.clients, msg.ClientID)

			case FromClient:
				events, next, err := engine.Apply(s.game.Score, msg.Cmd)
				if err != nil {
					reply(msg.Reply, Result{Err: err})
					break
				}
				s.game.Score = next
				reply(msg.Reply, Result{Snapshot: s.commit(events)})

			case Rename:
				s.game.Names = CleanNames(msg.Names, s.opts.DefaultNames)
				reply(msg.Reply, Result{Snapshot: s.commit(nil)})

			case SetSounds:
				s.game.Sounds = msg.Sounds
				reply(msg.Reply, Result{Snapshot: s.commit(nil)})

			case RemoteUpdate:
				s.dropQueuedSave()
				s.game = FromRecord(msg.Record, s.opts.DefaultNames)
				s.version++
				if s.unsaved.Load() > 0 {
					// A local save in flight lands after the remote row. Follow
					// it with the adopted state so the store matches memory.
					s.enqueueSave(s.game.Fields(s.opts.Origin))
				}
				s.log.Debug("remote update applied", zap.Int("version", s.version))
				s.broadcast(Snapshot{Version: s.version, Game: s.game})

			case GetState:
				msg.Reply <- View{
					Version:    s.version,
					NumClients: len(s.clients),
					Game:       s.game,
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

// commit publishes a local change: notify, queue the save, broadcast.
func (s *Session) commit(events []engine.Event) Snapshot {
	s.version++
	s.game.UpdatedAt = time.Now()

	for _, ev := range events {
		s.opts.Notifier.Notify(notify.NewEvent(s.game.ID, ev, s.game.Sounds.For(ev.Kind)))
	}
	s.enqueueSave(s.game.Fields(s.opts.Origin))

	snap := Snapshot{Version: s.version, Game: s.game, Events: events}
	s.broadcast(snap)
	return snap
}

// enqueueSave keeps only the newest pending save; each one carries the full
// state so an older pending one is safe to discard. Only the actor sends on
// s.saves, so the slot is free once the old entry is taken.
func (s *Session) enqueueSave(f store.Fields) {
	if s.opts.Saver == nil {
		return
	}
	select {
	case <-s.saves:
	default:
		s.unsaved.Add(1)
	}
	s.saves <- f
}

func (s *Session) dropQueuedSave() {
	select {
	case <-s.saves:
		s.unsaved.Add(-1)
	default:
	}
}

func (s *Session) saveLoop() {
	for {
		select {
		case <-s.ctx.Done():
			// Flush whatever was queued last before going away.
			select {
			case f := <-s.saves:
				s.persist(f)
			default:
			}
			return
		case f := <-s.saves:
			s.persist(f)
		}
	}
}

func (s *Session) persist(f store.Fields) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	defer s.unsaved.Add(-1)

	if err := s.opts.Saver.Update(ctx, s.id, f); err != nil {
		// In-memory state stays authoritative; the next save carries it forward.
		s.log.Warn("save failed", zap.Error(err))
	}
}

func (s *Session) shutdown() {
	for id, ch := range s.clients {
		close(ch) // Tell client no more snapshots
		delete(s.clients, id)
	}
	s.cancel()
}

func (s *Session) broadcast(snap Snapshot) {
	for id, ch := range s.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(s.clients, id)
		}
	}
}

func reply(ch chan Result, res Result) {
	if ch != nil {
		ch <- res
	}
}
