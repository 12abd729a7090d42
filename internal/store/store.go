// Package store persists game sessions and pushes remote changes back to
// subscribers. A session is stored as a single row and always written as a
// whole snapshot, so the last writer wins.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/league-ladder-backend/internal/ladder"
)

var ErrNotFound = errors.New("session not found")

type Scores [ladder.Size]int

// TrackingRecord is the persisted form of a player's comeback memory.
type TrackingRecord struct {
	WasBehind bool `json:"was_behind"`
	Deficit   int  `json:"deficit"`
}

type Record struct {
	ID              int64
	Title           string
	P1Name          string
	P2Name          string
	P1Scores        Scores
	P2Scores        Scores
	SoundWin        *string
	SoundPromoted   *string
	SoundComeback   *string
	P1ComebackCount int
	P2ComebackCount int
	Tracking        [2]TrackingRecord
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Summary struct {
	ID        int64
	Title     string
	CreatedAt time.Time
}

// Defaults seeds a newly created session.
type Defaults struct {
	P1Name string
	P2Name string
}

// Fields is a partial update. Nil members are left untouched.
type Fields struct {
	Title           *string
	P1Name          *string
	P2Name          *string
	P1Scores        *Scores
	P2Scores        *Scores
	SoundWin        **string
	SoundPromoted   **string
	SoundComeback   **string
	P1ComebackCount *int
	P2ComebackCount *int
	Tracking        *[2]TrackingRecord

	// Origin identifies the writer so it can ignore its own change notifications.
	Origin string
}

// Update is delivered to subscribers after a session row changed. A deleted
// row carries only its id in Record.
type Update struct {
	Record  Record
	Origin  string
	Deleted bool
}

type Store interface {
	Load(ctx context.Context, id int64) (Record, error)
	// List returns summaries, newest first.
	List(ctx context.Context) ([]Summary, error)
	Create(ctx context.Context, title string, d Defaults) (Record, error)
	Update(ctx context.Context, id int64, f Fields) error
	Delete(ctx context.Context, id int64) error
	// Subscribe registers fn for changes to id. A later call for the same id
	// replaces the earlier subscription. The returned func cancels it.
	Subscribe(id int64, fn func(Update)) func()
}

// Apply copies the non-nil members of f onto r.
func (f Fields) Apply(r *Record) {
	if f.Title != nil {
		r.Title = *f.Title
	}
	if f.P1Name != nil {
		r.P1Name = *f.P1Name
	}
	if f.P2Name != nil {
		r.P2Name = *f.P2Name
	}
	if f.P1Scores != nil {
		r.P1Scores = *f.P1Scores
	}
	if f.P2Scores != nil {
		r.P2Scores = *f.P2Scores
	}
	if f.SoundWin != nil {
		r.SoundWin = *f.SoundWin
	}
	if f.SoundPromoted != nil {
		r.SoundPromoted = *f.SoundPromoted
	}
	if f.SoundComeback != nil {
		r.SoundComeback = *f.SoundComeback
	}
	if f.P1ComebackCount != nil {
		r.P1ComebackCount = *f.P1ComebackCount
	}
	if f.P2ComebackCount != nil {
		r.P2ComebackCount = *f.P2ComebackCount
	}
	if f.Tracking != nil {
		r.Tracking = *f.Tracking
	}
}

// padScores turns a stored score list of any length into a full ladder row.
func padScores(in []int) Scores {
	var s Scores
	copy(s[:], in)
	return s
}

// subscriptions keeps at most one callback per session id.
type subscriptions struct {
	next int
	subs map[int64]subscription
}

type subscription struct {
	token int
	fn    func(Update)
}

func newSubscriptions() subscriptions {
	return subscriptions{subs: make(map[int64]subscription)}
}

// add must be called with the owner's lock held; the returned cancel takes
// the lock itself through lock/unlock.
func (s *subscriptions) add(id int64, fn func(Update), lock, unlock func()) func() {
	s.next++
	token := s.next
	s.subs[id] = subscription{token: token, fn: fn}
	return func() {
		lock()
		defer unlock()
		if cur, ok := s.subs[id]; ok && cur.token == token {
			delete(s.subs, id)
		}
	}
}

func (s *subscriptions) get(id int64) func(Update) {
	if sub, ok := s.subs[id]; ok {
		return sub.fn
	}
	return nil
}
