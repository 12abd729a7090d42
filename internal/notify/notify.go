// Package notify delivers score events to whatever plays sounds or writes
// commentary. Notifiers never block the caller and may drop events.
package notify

import (
	"go.uber.org/zap"

	"github.com/DoyleJ11/league-ladder-backend/internal/engine"
	"github.com/DoyleJ11/league-ladder-backend/internal/ladder"
)

type Event struct {
	SessionID int64            `json:"session_id"`
	Kind      engine.EventKind `json:"kind"`
	Player    int              `json:"player"`
	League    string           `json:"league"`
	// Sound is the clip configured on the session for this kind, if any.
	Sound *string `json:"sound,omitempty"`
}

// NewEvent describes an engine event that happened in session id.
func NewEvent(id int64, ev engine.Event, sound *string) Event {
	return Event{
		SessionID: id,
		Kind:      ev.Kind,
		Player:    ev.Player,
		League:    ladder.At(ev.League).Name,
		Sound:     sound,
	}
}

type Notifier interface {
	Notify(ev Event)
}

type Func func(ev Event)

func (f Func) Notify(ev Event) { f(ev) }

// Discard drops every event.
var Discard Notifier = Func(func(Event) {})

type multi []Notifier

// Multi fans each event out to all notifiers in order.
func Multi(ns ...Notifier) Notifier {
	out := make(multi, 0, len(ns))
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(ev Event) {
	for _, n := range m {
		n.Notify(ev)
	}
}

type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log.Named("events")}
}

func (l *Log) Notify(ev Event) {
	l.log.Info("score event",
		zap.Int64("session", ev.SessionID),
		zap.String("kind", string(ev.Kind)),
		zap.Int("player", ev.Player),
		zap.String("league", ev.League),
	)
}
