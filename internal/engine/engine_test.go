package engine

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/DoyleJ11/league-ladder-backend/internal/ladder"
)

func withWins(p0, p1 [ladder.Size]int) State {
	return StateFromWins([Players][ladder.Size]int{p0, p1}, [Players]int{}, [Players]Tracking{})
}

func TestApply_ThreeBronzeWinsPromote(t *testing.T) {
	s := NewEmptyState()
	var events []Event
	var err error

	for i := 0; i < 3; i++ {
		events, s, err = Apply(s, Command{Type: CmdAddWin, Player: 0})
		if err != nil {
			t.Fatalf("win %d: unexpected err %v", i+1, err)
		}
		if i < 2 && (len(events) != 1 || events[0].Kind != EvtWin) {
			t.Fatalf("win %d: want single win event, got %+v", i+1, events)
		}
	}

	if s.Wins[0] != [ladder.Size]int{0, 1, 0, 0} {
		t.Fatalf("p0 wins: got %v", s.Wins[0])
	}
	if s.Wins[1] != [ladder.Size]int{} {
		t.Fatalf("p1 wins: got %v", s.Wins[1])
	}
	want := []Event{{Kind: EvtPromoted, Player: 0, League: 0}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events: got %+v, want %+v", events, want)
	}
}

func TestApplyWin_PromotionResetsBothPlayers(t *testing.T) {
	cases := []struct {
		name    string
		setup   State
		league  int
		wantP0  [ladder.Size]int
		wantP1  [ladder.Size]int
		wantPro int
	}{
		{
			name:    "bronze promotion keeps opponent silver",
			setup:   withWins([ladder.Size]int{2, 0, 0, 0}, [ladder.Size]int{2, 1, 0, 0}),
			league:  0,
			wantP0:  [ladder.Size]int{0, 1, 0, 0},
			wantP1:  [ladder.Size]int{0, 1, 0, 0},
			wantPro: 1,
		},
		{
			name:    "gold promotion clears everything beneath",
			setup:   withWins([ladder.Size]int{0, 0, 2, 0}, [ladder.Size]int{2, 2, 1, 0}),
			league:  2,
			wantP0:  [ladder.Size]int{0, 0, 0, 1},
			wantP1:  [ladder.Size]int{0, 0, 0, 0},
			wantPro: 1,
		},
		{
			name:    "full cascade into platinum",
			setup:   withWins([ladder.Size]int{2, 2, 2, 0}, [ladder.Size]int{1, 1, 1, 4}),
			league:  0,
			wantP0:  [ladder.Size]int{0, 0, 0, 1},
			wantP1:  [ladder.Size]int{0, 0, 0, 4},
			wantPro: 3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.setup
			trace := s.ApplyWin(0, tc.league)
			if s.Wins[0] != tc.wantP0 || s.Wins[1] != tc.wantP1 {
				t.Fatalf("wins: got %v / %v, want %v / %v", s.Wins[0], s.Wins[1], tc.wantP0, tc.wantP1)
			}
			if trace.Promotions() != tc.wantPro {
				t.Fatalf("promotions: got %d, want %d", trace.Promotions(), tc.wantPro)
			}
			if s.Prev != s.Totals() {
				t.Fatalf("prev totals not refreshed: %v vs %v", s.Prev, s.Totals())
			}
		})
	}
}

func TestApplyWin_CascadeSuppressesInnerWin(t *testing.T) {
	s := withWins([ladder.Size]int{2, 2, 2, 0}, [ladder.Size]int{})
	trace := s.ApplyWin(0, 0)

	if len(trace.Steps) != ladder.Count() {
		t.Fatalf("steps: got %d, want %d", len(trace.Steps), ladder.Count())
	}
	last := trace.Steps[len(trace.Steps)-1]
	if last.League != 3 || last.Promoted || last.Emitted {
		t.Fatalf("platinum step: got %+v", last)
	}

	events := trace.Events()
	if CountEvents(events, EvtPromoted) != 3 || ContainsEvent(events, EvtWin) {
		t.Fatalf("events: got %+v", events)
	}
	for i, ev := range events {
		if ev.League != i {
			t.Fatalf("event %d: league %d", i, ev.League)
		}
	}
}

func TestApplyWin_SilverCarryIsSilent(t *testing.T) {
	s := withWins([ladder.Size]int{2, 0, 0, 0}, [ladder.Size]int{})
	trace := s.ApplyWin(0, 0)

	if len(trace.Steps) != 2 {
		t.Fatalf("steps: got %+v", trace.Steps)
	}
	if !trace.Steps[0].Emitted || trace.Steps[1].Emitted {
		t.Fatalf("only the bronze promotion should be emitted: %+v", trace.Steps)
	}
}

func TestApplyWin_PlatinumNeverPromotes(t *testing.T) {
	s := withWins([ladder.Size]int{0, 0, 0, 1}, [ladder.Size]int{})

	for i := 0; i < 10; i++ {
		trace := s.ApplyWin(0, 3)
		if trace.Promotions() != 0 {
			t.Fatalf("win %d: promoted out of platinum", i)
		}
		events := trace.Events()
		if len(events) != 1 || events[0].Kind != EvtWin || events[0].League != 3 {
			t.Fatalf("win %d: events %+v", i, events)
		}
	}
	if s.Wins[0][3] != 11 {
		t.Fatalf("platinum wins: got %d, want 11", s.Wins[0][3])
	}
}

func TestApplyWin_OutOfRangeIsNoop(t *testing.T) {
	cases := []struct {
		name   string
		player int
		league int
	}{
		{name: "league past the top", player: 0, league: ladder.Count()},
		{name: "negative league", player: 0, league: -1},
		{name: "unknown player", player: 2, league: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := withWins([ladder.Size]int{1, 0, 0, 0}, [ladder.Size]int{})
			before := s
			trace := s.ApplyWin(tc.player, tc.league)
			if len(trace.Steps) != 0 {
				t.Fatalf("expected empty trace, got %+v", trace)
			}
			if s != before {
				t.Fatalf("state changed: %+v", s)
			}
		})
	}
}

func TestApply_RejectsBadCommands(t *testing.T) {
	cases := []struct {
		name string
		cmd  Command
		want error
	}{
		{name: "add win for seat 3", cmd: Command{Type: CmdAddWin, Player: 2}, want: ErrInvalidPlayer},
		{name: "remove win for negative seat", cmd: Command{Type: CmdRemoveWin, Player: -1}, want: ErrInvalidPlayer},
		{name: "unknown command", cmd: Command{Type: "Undo"}, want: ErrUnsupportedCommand},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Apply(NewEmptyState(), tc.cmd)
			if !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	s := withWins([ladder.Size]int{2, 0, 0, 0}, [ladder.Size]int{1, 0, 0, 0})
	before := s

	_, next, err := Apply(s, Command{Type: CmdAddWin, Player: 0})
	if err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if s != before {
		t.Fatalf("input state mutated")
	}
	if next.Wins[0][1] != 1 {
		t.Fatalf("next state missing promotion: %v", next.Wins[0])
	}
}

func TestRemoveWin_FloorsAtZero(t *testing.T) {
	s := withWins([ladder.Size]int{1, 1, 0, 0}, [ladder.Size]int{})

	s.RemoveWin(0)
	s.RemoveWin(0)
	if s.Wins[0] != [ladder.Size]int{0, 1, 0, 0} {
		t.Fatalf("wins: got %v", s.Wins[0])
	}
}

func TestRemoveWin_RefreshesPrevOnNoop(t *testing.T) {
	s := withWins([ladder.Size]int{0, 1, 0, 0}, [ladder.Size]int{})
	s.Prev = Totals{99, 99}

	s.RemoveWin(0)
	if s.Wins[0][0] != 0 {
		t.Fatalf("bronze went negative: %v", s.Wins[0])
	}
	if s.Prev != (Totals{3, 0}) {
		t.Fatalf("prev: got %v, want [3 0]", s.Prev)
	}
}

func TestRemoveWin_NoopRefreshChangesNextComebackCheck(t *testing.T) {
	// Prev lags behind the wins: p1 holds 4 points the baseline never saw.
	stale := withWins([ladder.Size]int{}, [ladder.Size]int{1, 1, 0, 0})
	stale.Prev = Totals{}

	refreshed := stale
	refreshed.RemoveWin(0)
	if refreshed.Wins != stale.Wins {
		t.Fatalf("no-op remove changed wins: %v", refreshed.Wins)
	}

	refreshed.ApplyWin(0, 0)
	stale.ApplyWin(0, 0)

	if refreshed.Tracking[0] != (Tracking{WasBehind: true, Deficit: 4}) {
		t.Fatalf("refreshed baseline: tracking %+v", refreshed.Tracking[0])
	}
	if stale.Tracking[0] != (Tracking{}) {
		t.Fatalf("stale baseline: tracking %+v", stale.Tracking[0])
	}
}

func TestApplyWin_ComparesAgainstPrev(t *testing.T) {
	s := withWins([ladder.Size]int{}, [ladder.Size]int{1, 0, 0, 0})
	s.Prev = Totals{0, 5}

	events := s.ApplyWin(0, 0).Events()
	if len(events) != 1 || events[0].Kind != EvtComeback {
		t.Fatalf("events: got %+v", events)
	}
	if s.Prev != s.Totals() {
		t.Fatalf("prev: got %v, want %v", s.Prev, s.Totals())
	}
}

func TestReset_ClearsEverything(t *testing.T) {
	s := withWins([ladder.Size]int{2, 1, 2, 5}, [ladder.Size]int{1, 2, 0, 3})
	s.Comebacks = [Players]int{2, 1}
	s.Tracking[0] = Tracking{WasBehind: true, Deficit: 6}

	_, next, err := Apply(s, Command{Type: CmdReset})
	if err != nil {
		t.Fatalf("unexpected err %v", err)
	}
	if next != NewEmptyState() {
		t.Fatalf("reset left state: %+v", next)
	}
}

func TestWeightedTotal(t *testing.T) {
	cases := []struct {
		wins [ladder.Size]int
		want int
	}{
		{wins: [ladder.Size]int{}, want: 0},
		{wins: [ladder.Size]int{1, 0, 1, 0}, want: 10},
		{wins: [ladder.Size]int{1, 2, 1, 1}, want: 43},
		{wins: [ladder.Size]int{0, 0, 0, 3}, want: 81},
	}

	for _, tc := range cases {
		if got := WeightedTotal(tc.wins); got != tc.want {
			t.Fatalf("WeightedTotal(%v): got %d, want %d", tc.wins, got, tc.want)
		}
		if WeightedTotal(tc.wins) != WeightedTotal(tc.wins) {
			t.Fatalf("WeightedTotal not stable for %v", tc.wins)
		}
	}
}

func TestRandomSequencesKeepCapacityInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewEmptyState()

	for i := 0; i < 5000; i++ {
		player := rng.Intn(Players)
		before := s.Comebacks[player]

		var trace Trace
		if rng.Intn(5) == 0 {
			s.RemoveWin(player)
		} else {
			trace = s.ApplyWin(player, 0)
		}

		if len(trace.Steps) > ladder.Count() {
			t.Fatalf("op %d: cascade of %d steps", i, len(trace.Steps))
		}
		if d := s.Comebacks[player] - before; d < 0 || d > 1 {
			t.Fatalf("op %d: comeback counter moved by %d", i, d)
		}
		if CountEvents(trace.Events(), EvtComeback) > 1 {
			t.Fatalf("op %d: more than one comeback event", i)
		}
		for p := 0; p < Players; p++ {
			for l := 0; l < ladder.Count(); l++ {
				if ladder.IsTerminal(l) {
					continue
				}
				if s.Wins[p][l] >= ladder.At(l).Capacity {
					t.Fatalf("op %d: player %d league %d at %d", i, p, l, s.Wins[p][l])
				}
			}
		}
		if s.Prev != s.Totals() {
			t.Fatalf("op %d: prev %v, totals %v", i, s.Prev, s.Totals())
		}
	}
}

func TestLeader(t *testing.T) {
	if got := Leader(withWins([ladder.Size]int{0, 1, 0, 0}, [ladder.Size]int{2, 0, 0, 0})); got != 0 {
		t.Fatalf("leader: got %d, want 0", got)
	}
	if got := Leader(withWins([ladder.Size]int{0, 1, 0, 0}, [ladder.Size]int{0, 1, 0, 0})); got != -1 {
		t.Fatalf("leader: got %d, want -1", got)
	}
}
