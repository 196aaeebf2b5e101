package engine

// Outcome is the resolved result of one shot.
type Outcome struct {
	BaseRoll        int     `json:"base_roll"`
	AdjustedRoll    int     `json:"adjusted_roll"`
	FinalRoll       int     `json:"final_roll"`
	Quality         Quality `json:"quality"`
	CriticalFail    bool    `json:"is_critical_fail"`
	CriticalSuccess bool    `json:"is_critical_success"`
	Proficiency     int     `json:"skill_level"`
	CarryBonus      int     `json:"low_quality_bonus"`
}

// Resolve turns a d20 base roll into an Outcome. Proficiency adds a random
// drift of up to |proficiency|/30 in its own direction; carryBonus is added
// on top. The only randomness comes from rng: the drift draw (when the
// drift range is positive) followed by the confirmation roll for
// critical failures at proficiency 80 and above.
func Resolve(rng RNG, baseRoll, proficiency, carryBonus int) Outcome {
	adjusted := baseRoll
	if floatRange := abs(proficiency) / 30; floatRange > 0 {
		drift := rng.IntRange(0, floatRange)
		if proficiency >= 0 {
			adjusted += drift
		} else {
			adjusted -= drift
		}
	}
	final := adjusted + carryBonus

	var critFail bool
	if proficiency >= 80 {
		second := rng.IntRange(1, 20)
		critFail = baseRoll == 1 && second == 1
	} else {
		critFail = baseRoll == 1
	}

	threshold := 20
	if proficiency >= 90 {
		threshold = 19
	}
	critSuccess := baseRoll >= threshold

	quality := QualityNormal
	switch {
	case critFail || final <= 1:
		quality = QualityCriticalFail
	case critSuccess:
		quality = QualityCriticalSuccess
	case final >= 15:
		quality = QualityHigh
	case final < 9:
		quality = QualityLow
	}

	return Outcome{
		BaseRoll:        baseRoll,
		AdjustedRoll:    adjusted,
		FinalRoll:       final,
		Quality:         quality,
		CriticalFail:    critFail,
		CriticalSuccess: critSuccess,
		Proficiency:     proficiency,
		CarryBonus:      carryBonus,
	}
}

// CanReceive decides whether a defender with the given outcome returns an
// attack of the given quality and final value.
func CanReceive(defense Outcome, attackQuality Quality, attackFinal int) bool {
	if defense.CriticalFail || defense.FinalRoll <= 1 {
		return false
	}
	if attackQuality == QualityCriticalSuccess {
		return false
	}
	if attackQuality == QualityHigh {
		required := attackFinal * 2 / 3
		return defense.FinalRoll >= required
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
