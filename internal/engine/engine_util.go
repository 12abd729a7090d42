package engine

import "github.com/DoyleJ11/league-ladder-backend/internal/ladder"

func NewEmptyState() State {
	return State{}
}

// StateFromWins builds a state from stored league counts, refreshing Prev.
func StateFromWins(wins [Players][ladder.Size]int, comebacks [Players]int, tracking [Players]Tracking) State {
	s := State{Wins: wins, Comebacks: comebacks, Tracking: tracking}
	s.Prev = s.Totals()
	return s
}

func ContainsEvent(events []Event, kind EventKind) bool {
	for _, event := range events {
		if event.Kind == kind {
			return true
		}
	}
	return false
}

func CountEvents(events []Event, kind EventKind) int {
	n := 0
	for _, event := range events {
		if event.Kind == kind {
			n++
		}
	}
	return n
}

// Leader returns the player with the higher weighted total, or -1 on a tie.
func Leader(s State) int {
	t := s.Totals()
	switch {
	case t[0] > t[1]:
		return 0
	case t[1] > t[0]:
		return 1
	default:
		return -1
	}
}
