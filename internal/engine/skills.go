package engine

// Skill names accepted in shot actions.
const (
	SkillServe        = "serve"
	SkillServeReceive = "serve_receive"
	SkillClear        = "clear"
	SkillSmash        = "smash"
	SkillDropShot     = "drop_shot"
	SkillLift         = "lift"
	SkillNetShot      = "net_shot"
	SkillNetKill      = "net_kill"
	SkillCrossNet     = "cross_net"
	SkillNetSpin      = "net_spin"
)

var Skills = []string{
	SkillServe,
	SkillServeReceive,
	SkillClear,
	SkillSmash,
	SkillDropShot,
	SkillLift,
	SkillNetShot,
	SkillNetKill,
	SkillCrossNet,
	SkillNetSpin,
}

// counterSkills maps an attacking skill to the defender's skill used to
// return it. Anything not listed is returned with SkillServeReceive.
var counterSkills = map[string]string{
	SkillSmash:    SkillLift,
	SkillDropShot: SkillNetShot,
}

func IsSkill(name string) bool {
	for _, s := range Skills {
		if s == name {
			return true
		}
	}
	return false
}

// CounterSkill returns the defensive skill whose proficiency is used to
// simulate receiving attack.
func CounterSkill(attack string) string {
	if c, ok := counterSkills[attack]; ok {
		return c
	}
	return SkillServeReceive
}
