// Package types holds the JSON shapes spoken over HTTP and the websocket.
//
// Client -> Server (websocket)
//
//	AddWin:    { "type": "AddWin", "player": 0|1 }
//	RemoveWin: { "type": "RemoveWin", "player": 0|1 }
//	Reset:     { "type": "Reset" }
//	Rename:    { "type": "Rename", "names": [string, string] }
//
// Server -> Client
//
//	StateSnapshot: version, session (see SessionView), events emitted by the
//	change that produced it (absent on join and remote updates)
//	Error:         error
package types

import (
	"time"

	"github.com/DoyleJ11/league-ladder-backend/internal/engine"
	"github.com/DoyleJ11/league-ladder-backend/internal/ladder"
	"github.com/DoyleJ11/league-ladder-backend/internal/session"
	"github.com/DoyleJ11/league-ladder-backend/internal/store"
)

type ClientMessage struct {
	Type   string                 `json:"type"`
	Player int                    `json:"player"`
	Names  [engine.Players]string `json:"names,omitempty"`
}

type ServerMessage struct {
	Type    string       `json:"type"` // "StateSnapshot" | "Error"
	Version int          `json:"version,omitempty"`
	Session *SessionView `json:"session,omitempty"`
	Events  []EventView  `json:"events,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type PlayerView struct {
	Name      string           `json:"name"`
	Wins      [ladder.Size]int `json:"wins"`
	Total     int              `json:"total"`
	Comebacks int              `json:"comebacks"`
}

type SoundsView struct {
	Win      *string `json:"win"`
	Promoted *string `json:"promoted"`
	Comeback *string `json:"comeback"`
}

type SessionView struct {
	ID      int64                      `json:"id"`
	Title   string                     `json:"title"`
	Version int                        `json:"version"`
	Players [engine.Players]PlayerView `json:"players"`
	// Leader is the player ahead on weighted total, -1 on a tie.
	Leader    int        `json:"leader"`
	Leagues   []string   `json:"leagues"`
	Sounds    SoundsView `json:"sounds"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type EventView struct {
	Kind   engine.EventKind `json:"kind"`
	Player int              `json:"player"`
	League string           `json:"league"`
}

type SummaryView struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// HTTP request bodies.

type CreateRequest struct {
	Title string `json:"title"`
}

type ScoreRequest struct {
	Player int `json:"player"`
	Delta  int `json:"delta"`
}

type NamesRequest struct {
	P1 string `json:"p1"`
	P2 string `json:"p2"`
}

type SoundsRequest SoundsView

func NewSessionView(version int, g session.GameSession) SessionView {
	v := SessionView{
		ID:        g.ID,
		Title:     g.Title,
		Version:   version,
		Leader:    engine.Leader(g.Score),
		Leagues:   leagueNames(),
		Sounds:    SoundsView{Win: g.Sounds.Win, Promoted: g.Sounds.Promoted, Comeback: g.Sounds.Comeback},
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	totals := g.Score.Totals()
	for p := range v.Players {
		v.Players[p] = PlayerView{
			Name:      g.Names[p],
			Wins:      g.Score.Wins[p],
			Total:     totals[p],
			Comebacks: g.Score.Comebacks[p],
		}
	}
	return v
}

func NewEvents(events []engine.Event) []EventView {
	if len(events) == 0 {
		return nil
	}
	out := make([]EventView, len(events))
	for i, ev := range events {
		out[i] = EventView{Kind: ev.Kind, Player: ev.Player, League: ladder.At(ev.League).Name}
	}
	return out
}

func NewSummaries(list []store.Summary) []SummaryView {
	out := make([]SummaryView, len(list))
	for i, s := range list {
		out[i] = SummaryView{ID: s.ID, Title: s.Title, CreatedAt: s.CreatedAt}
	}
	return out
}

// StateSnapshot builds the push message for snap.
func StateSnapshot(snap session.Snapshot) ServerMessage {
	view := NewSessionView(snap.Version, snap.Game)
	return ServerMessage{
		Type:    "StateSnapshot",
		Version: snap.Version,
		Session: &view,
		Events:  NewEvents(snap.Events),
	}
}

func ErrorMessage(msg string) ServerMessage {
	return ServerMessage{Type: "Error", Error: msg}
}

func leagueNames() []string {
	all := ladder.All()
	names := make([]string, len(all))
	for i, l := range all {
		names[i] = l.Name
	}
	return names
}
