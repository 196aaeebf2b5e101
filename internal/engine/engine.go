package engine

import (
	"errors"
)

var ErrNotPlayer = errors.New("spectators cannot do that")
var ErrNotInProgress = errors.New("game is not in progress")
var ErrWrongTurn = errors.New("it is not your team's turn")
var ErrRepeatShooter = errors.New("you cannot hit two shots in a row")
var ErrServeRequired = errors.New("the first shot of each rally must be a serve")
var ErrUnknownSkill = errors.New("unknown skill")
var ErrRosterIncomplete = errors.New("not enough players to start")

type Team string

const (
	TeamNone Team = ""
	TeamA    Team = "A"
	TeamB    Team = "B"
)

type Mode string

const (
	ModeSingles Mode = "singles"
	ModeDoubles Mode = "doubles"
)

// Capacity is the roster size the mode needs.
func (m Mode) Capacity() int {
	if m == ModeDoubles {
		return 4
	}
	return 2
}

// ParseMode accepts the mode names and the legacy "2p"/"4p" aliases.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "singles", "2p":
		return ModeSingles, true
	case "doubles", "4p":
		return ModeDoubles, true
	default:
		return "", false
	}
}

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type Quality string

const (
	QualityNone            Quality = ""
	QualityCriticalFail    Quality = "critical_fail"
	QualityLow             Quality = "low"
	QualityNormal          Quality = "normal"
	QualityHigh            Quality = "high"
	QualityCriticalSuccess Quality = "critical_success"
)

type ScoreReason string

const (
	ReasonNone          ScoreReason = ""
	ReasonOpponentError ScoreReason = "opponent error"
	ReasonUnreturnable  ScoreReason = "unreturnable"
	ReasonPerfectSmash  ScoreReason = "perfect smash"
)

const (
	winningScore = 21
	winningLead  = 2
	scoreCap     = 30
)

// RallyShot is one entry of the current rally's history.
type RallyShot struct {
	Player  string  `json:"player"`
	Skill   string  `json:"skill"`
	Quality Quality `json:"quality"`
	Final   int     `json:"final_roll"`
}

// State is the authoritative match state of one room.
type State struct {
	Status          Status      `json:"status"`
	TeamA           []string    `json:"team_a"`
	TeamB           []string    `json:"team_b"`
	CurrentTeam     Team        `json:"current_team,omitempty"`
	CurrentServer   string      `json:"current_server,omitempty"`
	LastPlayer      string      `json:"last_player,omitempty"`
	LastShotQuality Quality     `json:"last_shot_quality,omitempty"`
	LastShotValue   *int        `json:"last_shot_value,omitempty"`
	IsFirstShot     bool        `json:"is_first_shot"`
	RallyCount      int         `json:"rally_count"`
	ScoreA          int         `json:"score_a"`
	ScoreB          int         `json:"score_b"`
	RallyHistory    []RallyShot `json:"rally_history"`
}

// Shot is a legal-looking shot request. Proficiency is the shooter's level
// in Skill; DefenseProficiency is the defenders' averaged level in
// CounterSkill(Skill).
type Shot struct {
	Player             string
	Skill              string
	Proficiency        int
	DefenseProficiency int
}

// ShotResult describes what a shot did to the match.
type ShotResult struct {
	Outcome     Outcome
	Defense     *Outcome
	Scored      bool
	ScoringTeam Team
	Scorer      string
	Reason      ScoreReason
	MatchOver   bool
}

// Start partitions roster into teams and opens a fresh rally. It is used
// for both start and restart and discards everything in s.
func Start(s State, mode Mode, roster []string, rng RNG) (State, error) {
	if len(roster) < mode.Capacity() {
		return s, ErrRosterIncomplete
	}

	next := NewState()
	next.TeamA, next.TeamB = partition(mode, roster)

	next.CurrentTeam = TeamA
	if rng.IntRange(0, 1) == 1 {
		next.CurrentTeam = TeamB
	}
	servers := next.Members(next.CurrentTeam)
	next.CurrentServer = servers[rng.IntRange(0, len(servers)-1)]
	next.Status = StatusPlaying
	return next, nil
}

// CheckShot runs every legality check that does not depend on room
// membership, in order: match in progress, team turn, no self-chaining,
// serve on the first shot, known skill.
func CheckShot(s State, player, skill string) error {
	if s.Status != StatusPlaying {
		return ErrNotInProgress
	}
	if s.TeamOf(player) != s.CurrentTeam {
		return ErrWrongTurn
	}
	if s.LastPlayer != "" && s.LastPlayer == player {
		return ErrRepeatShooter
	}
	if s.IsFirstShot && skill != SkillServe {
		return ErrServeRequired
	}
	if !IsSkill(skill) {
		return ErrUnknownSkill
	}
	return nil
}

// ApplyShot resolves shot against s. On error s is returned untouched.
func ApplyShot(s State, shot Shot, rng RNG) (ShotResult, State, error) {
	if err := CheckShot(s, shot.Player, shot.Skill); err != nil {
		return ShotResult{}, s, err
	}

	carry := CarryBonus(s)
	out := Resolve(rng, rng.IntRange(1, 20), shot.Proficiency, carry)

	shooting := s.CurrentTeam
	opposing := shooting.Opponent()
	res := ShotResult{Outcome: out}

	switch {
	case out.Quality == QualityCriticalFail || out.FinalRoll <= 2:
		res.Scored, res.ScoringTeam, res.Reason = true, opposing, ReasonOpponentError
	case !s.IsFirstShot:
		def := Resolve(rng, rng.IntRange(1, 20), shot.DefenseProficiency, 0)
		res.Defense = &def
		if !CanReceive(def, out.Quality, out.FinalRoll) {
			res.Scored, res.ScoringTeam, res.Reason = true, shooting, ReasonUnreturnable
		}
	}
	if !res.Scored && out.CriticalSuccess && shot.Skill == SkillSmash {
		res.Scored, res.ScoringTeam, res.Reason = true, shooting, ReasonPerfectSmash
	}

	next := s.Clone()
	final := out.FinalRoll
	next.LastShotQuality = out.Quality
	next.LastShotValue = &final
	next.IsFirstShot = false
	next.RallyCount++
	next.LastPlayer = shot.Player
	next.CurrentTeam = opposing
	next.RallyHistory = append(next.RallyHistory, RallyShot{
		Player:  shot.Player,
		Skill:   shot.Skill,
		Quality: out.Quality,
		Final:   out.FinalRoll,
	})

	if !res.Scored {
		return res, next, nil
	}

	if res.ScoringTeam == shooting {
		res.Scorer = shot.Player
	} else if s.LastPlayer != "" && s.TeamOf(s.LastPlayer) == opposing {
		res.Scorer = s.LastPlayer
	} else if members := s.Members(opposing); len(members) > 0 {
		res.Scorer = members[0]
	}

	if res.ScoringTeam == TeamA {
		next.ScoreA++
	} else {
		next.ScoreB++
	}
	next.resetRally()
	next.CurrentTeam = res.ScoringTeam
	next.CurrentServer = res.Scorer

	if MatchOver(next.ScoreA, next.ScoreB) {
		next.Status = StatusFinished
		res.MatchOver = true
	}
	return res, next, nil
}
