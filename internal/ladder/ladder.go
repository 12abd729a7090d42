// Package ladder defines the fixed league tiers a player climbs through.
package ladder

// Unbounded marks a league with no promotion threshold.
const Unbounded = -1

// Size is the number of leagues on the ladder.
const Size = 4

type League struct {
	Name     string
	Ordinal  int
	Capacity int
}

var leagues = [Size]League{
	{Name: "Bronze", Ordinal: 0, Capacity: 3},
	{Name: "Silver", Ordinal: 1, Capacity: 3},
	{Name: "Gold", Ordinal: 2, Capacity: 3},
	{Name: "Platinum", Ordinal: 3, Capacity: Unbounded},
}

// weights[i] is 3^i: one win in a league is worth three in the league below.
var weights = [Size]int{1, 3, 9, 27}

// At returns the league at ordinal. It panics when ordinal is out of range.
func At(ordinal int) League { return leagues[ordinal] }

func Count() int { return Size }

func Valid(ordinal int) bool { return ordinal >= 0 && ordinal < Size }

func IsTerminal(ordinal int) bool { return leagues[ordinal].Capacity == Unbounded }

func Weight(ordinal int) int { return weights[ordinal] }

// All returns a copy of the ladder, lowest league first.
func All() []League {
	out := make([]League, Size)
	copy(out, leagues[:])
	return out
}
