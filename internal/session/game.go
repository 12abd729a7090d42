package session

import (
	"strings"
	"time"

	"github.com/DoyleJ11/league-ladder-backend/internal/engine"
	"github.com/DoyleJ11/league-ladder-backend/internal/ladder"
	"github.com/DoyleJ11/league-ladder-backend/internal/store"
)

var DefaultNames = [engine.Players]string{"Spieler 1", "Spieler 2"}

const DefaultTitle = "Mein Spiel"

// Sounds are opaque clip URIs played for each event kind. Nil means no clip.
type Sounds struct {
	Win      *string
	Promoted *string
	Comeback *string
}

func (s Sounds) For(kind engine.EventKind) *string {
	switch kind {
	case engine.EvtWin:
		return s.Win
	case engine.EvtPromoted:
		return s.Promoted
	case engine.EvtComeback:
		return s.Comeback
	}
	return nil
}

// GameSession is one named game: who plays, the ladder state and the sounds.
type GameSession struct {
	ID        int64
	Title     string
	Names     [engine.Players]string
	Sounds    Sounds
	Score     engine.State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FromRecord builds a session from a stored row, filling blank names from defaults.
func FromRecord(rec store.Record, defaults [engine.Players]string) GameSession {
	var tracking [engine.Players]engine.Tracking
	for i, t := range rec.Tracking {
		tracking[i] = engine.Tracking{WasBehind: t.WasBehind, Deficit: t.Deficit}
	}

	return GameSession{
		ID:    rec.ID,
		Title: rec.Title,
		Names: CleanNames([engine.Players]string{rec.P1Name, rec.P2Name}, defaults),
		Sounds: Sounds{
			Win:      rec.SoundWin,
			Promoted: rec.SoundPromoted,
			Comeback: rec.SoundComeback,
		},
		Score: engine.StateFromWins(
			[engine.Players][ladder.Size]int{rec.P1Scores, rec.P2Scores},
			[engine.Players]int{rec.P1ComebackCount, rec.P2ComebackCount},
			tracking,
		),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// Fields is the full-state save written after every change. The title is
// only set at creation and is left out.
func (g GameSession) Fields(origin string) store.Fields {
	p1, p2 := store.Scores(g.Score.Wins[0]), store.Scores(g.Score.Wins[1])
	names := g.Names
	counts := g.Score.Comebacks
	win, promoted, comeback := g.Sounds.Win, g.Sounds.Promoted, g.Sounds.Comeback
	var tracking [engine.Players]store.TrackingRecord
	for i, t := range g.Score.Tracking {
		tracking[i] = store.TrackingRecord{WasBehind: t.WasBehind, Deficit: t.Deficit}
	}

	return store.Fields{
		P1Name:          &names[0],
		P2Name:          &names[1],
		P1Scores:        &p1,
		P2Scores:        &p2,
		SoundWin:        &win,
		SoundPromoted:   &promoted,
		SoundComeback:   &comeback,
		P1ComebackCount: &counts[0],
		P2ComebackCount: &counts[1],
		Tracking:        &tracking,
		Origin:          origin,
	}
}

// CleanNames trims names and replaces blank ones with the default for that seat.
func CleanNames(names, defaults [engine.Players]string) [engine.Players]string {
	var out [engine.Players]string
	for i, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			n = defaults[i]
		}
		out[i] = n
	}
	return out
}
