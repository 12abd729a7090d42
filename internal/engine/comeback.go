package engine

// DeficitThreshold is how far behind, in weighted points, a player must be
// before drawing level counts as a comeback.
const DeficitThreshold = 4

// Tracking remembers that a player fell far behind. It survives promotion
// resets, which would otherwise wipe out the evidence of the deficit.
type Tracking struct {
	WasBehind bool `json:"was_behind"`
	Deficit   int  `json:"deficit"`
}

// checkComeback reports whether player's last win levelled a game they had
// trailed by DeficitThreshold or more. Only an exact tie counts. With canFire
// unset the deficit memory is still kept current and a levelling tie clears
// it without counting.
func (s *State) checkComeback(player int, prev, curr Totals, canFire bool) bool {
	other := 1 - player
	prevDiff := prev[player] - prev[other]
	currDiff := curr[player] - curr[other]
	tr := &s.Tracking[player]

	behind := prevDiff <= -DeficitThreshold
	if behind {
		tr.WasBehind = true
		tr.Deficit = -prevDiff
	}

	// Totals are integers, so the tie tolerance collapses to equality.
	if (behind || tr.WasBehind) && currDiff == 0 {
		*tr = Tracking{}
		if !canFire {
			return false
		}
		s.Comebacks[player]++
		return true
	}

	if currDiff > 0 {
		*tr = Tracking{}
	}
	return false
}
