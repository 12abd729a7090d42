package engine

import (
	"errors"

	"github.com/DoyleJ11/league-ladder-backend/internal/ladder"
)

var ErrInvalidPlayer = errors.New("invalid player")
var ErrUnsupportedCommand = errors.New("unsupported command")

// Players is the number of seats in a game.
const Players = 2

// Totals holds the weighted score of each player.
type Totals [Players]int

type State struct {
	Wins      [Players][ladder.Size]int
	Comebacks [Players]int
	Tracking  [Players]Tracking
	// Prev is the weighted totals observed after the last operation. It is
	// the baseline the comeback detector compares the next win against.
	Prev Totals
}

type CommandType string

const (
	CmdAddWin    CommandType = "AddWin"
	CmdRemoveWin CommandType = "RemoveWin"
	CmdReset     CommandType = "Reset"
)

type Command struct {
	Type   CommandType
	Player int
}

type EventKind string

const (
	EvtWin      EventKind = "win"
	EvtPromoted EventKind = "promoted"
	EvtComeback EventKind = "comeback"
)

type Event struct {
	Kind   EventKind
	Player int
	League int
}

// Step records what happened at one league while a win travelled up the ladder.
type Step struct {
	League   int
	Promoted bool
	Comeback bool
	Emitted  bool
}

type Trace struct {
	Player int
	Steps  []Step
}

// Events returns the events that were not suppressed, in ladder order.
func (t Trace) Events() []Event {
	var events []Event
	for _, st := range t.Steps {
		if !st.Emitted {
			continue
		}
		events = append(events, Event{Kind: st.kind(), Player: t.Player, League: st.League})
	}
	return events
}

// Promotions counts how many leagues the win climbed through.
func (t Trace) Promotions() int {
	n := 0
	for _, st := range t.Steps {
		if st.Promoted {
			n++
		}
	}
	return n
}

func (st Step) kind() EventKind {
	switch {
	case st.Comeback:
		return EvtComeback
	case st.Promoted:
		return EvtPromoted
	default:
		return EvtWin
	}
}

// Apply runs cmd against a copy of s and returns the emitted events with the new state.
func Apply(s State, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdAddWin:
		if !validPlayer(cmd.Player) {
			return nil, s, ErrInvalidPlayer
		}
		trace := s.ApplyWin(cmd.Player, 0)
		return trace.Events(), s, nil

	case CmdRemoveWin:
		if !validPlayer(cmd.Player) {
			return nil, s, ErrInvalidPlayer
		}
		s.RemoveWin(cmd.Player)
		return nil, s, nil

	case CmdReset:
		s.Reset()
		return nil, s, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// ApplyWin credits player with a win in league and carries any promotion up
// the ladder. A league past the top of the ladder is a no-op.
func (s *State) ApplyWin(player, league int) Trace {
	trace := Trace{Player: player}
	if !validPlayer(player) || !ladder.Valid(league) {
		return trace
	}

	suppress := false
	comebackFired := false
	for ; ladder.Valid(league); league++ {
		// Prev is the baseline; it is refreshed after every step, so a level
		// reached through a promotion compares against the post-reset totals.
		prev := s.Prev
		s.Wins[player][league]++
		curr := s.Totals()

		step := Step{League: league}
		// The detector still runs after a comeback so a deficit opened by a
		// later reset is remembered. Only one comeback counts per call.
		step.Comeback = s.checkComeback(player, prev, curr, !comebackFired)
		comebackFired = comebackFired || step.Comeback

		if ladder.IsTerminal(league) || s.Wins[player][league] < ladder.At(league).Capacity {
			s.Prev = curr
			step.Emitted = step.Comeback || !suppress
			trace.Steps = append(trace.Steps, step)
			return trace
		}

		for p := range s.Wins {
			for l := 0; l <= league; l++ {
				s.Wins[p][l] = 0
			}
		}
		s.Prev = s.Totals()
		step.Promoted = true
		step.Emitted = true
		trace.Steps = append(trace.Steps, step)
		suppress = true
	}
	return trace
}

// RemoveWin takes back one Bronze win. It never goes below zero and never demotes.
func (s *State) RemoveWin(player int) {
	if !validPlayer(player) {
		return
	}
	if s.Wins[player][0] > 0 {
		s.Wins[player][0]--
	}
	s.Prev = s.Totals()
}

// Reset clears the ladder, comeback counters and deficit memory for both players.
func (s *State) Reset() {
	*s = State{}
}

func (s *State) Totals() Totals {
	var t Totals
	for p := range s.Wins {
		t[p] = WeightedTotal(s.Wins[p])
	}
	return t
}

// WeightedTotal folds a player's wins into one comparable number.
func WeightedTotal(wins [ladder.Size]int) int {
	total := 0
	for i, w := range wins {
		total += w * ladder.Weight(i)
	}
	return total
}

func validPlayer(p int) bool { return p >= 0 && p < Players }
