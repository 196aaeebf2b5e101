package engine

// Opponent returns the other side. TeamNone has no opponent.
func (t Team) Opponent() Team {
	switch t {
	case TeamA:
		return TeamB
	case TeamB:
		return TeamA
	default:
		return TeamNone
	}
}

// TeamOf reports which side player was assigned to at match start.
func (s State) TeamOf(player string) Team {
	for _, p := range s.TeamA {
		if p == player {
			return TeamA
		}
	}
	for _, p := range s.TeamB {
		if p == player {
			return TeamB
		}
	}
	return TeamNone
}

func (s State) Members(t Team) []string {
	switch t {
	case TeamA:
		return s.TeamA
	case TeamB:
		return s.TeamB
	default:
		return nil
	}
}

// partition splits the roster by join order: the first half of the
// mode's capacity goes to A, the rest to B.
func partition(mode Mode, roster []string) (a, b []string) {
	half := mode.Capacity() / 2
	a = append([]string{}, roster[:half]...)
	b = append([]string{}, roster[half:mode.Capacity()]...)
	return a, b
}
