package engine

func NewState() State {
	return State{
		Status:       StatusWaiting,
		TeamA:        []string{},
		TeamB:        []string{},
		IsFirstShot:  true,
		RallyHistory: []RallyShot{},
	}
}

// Clone returns a copy of s that shares no slices or pointers with it.
func (s State) Clone() State {
	c := s
	c.TeamA = append([]string{}, s.TeamA...)
	c.TeamB = append([]string{}, s.TeamB...)
	c.RallyHistory = append([]RallyShot{}, s.RallyHistory...)
	if s.LastShotValue != nil {
		v := *s.LastShotValue
		c.LastShotValue = &v
	}
	return c
}

func (s *State) resetRally() {
	s.IsFirstShot = true
	s.RallyCount = 0
	s.LastShotQuality = QualityNone
	s.LastShotValue = nil
	s.LastPlayer = ""
	s.RallyHistory = []RallyShot{}
}

// CarryBonus is the handicap granted to the next shot after a low
// quality one: a quarter of that shot's final value.
func CarryBonus(s State) int {
	if s.LastShotQuality != QualityLow || s.LastShotValue == nil {
		return 0
	}
	return *s.LastShotValue / 4
}

// MatchOver reports whether a score line ends the match: 21 with a two
// point lead, or 30 outright.
func MatchOver(a, b int) bool {
	if a >= scoreCap || b >= scoreCap {
		return true
	}
	if a < winningScore && b < winningScore {
		return false
	}
	lead := a - b
	if lead < 0 {
		lead = -lead
	}
	return lead >= winningLead
}
