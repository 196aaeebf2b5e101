package engine

import "math/rand/v2"

// RNG is the engine's only source of randomness. IntRange returns a
// uniform integer in [lo, hi], both inclusive.
type RNG interface {
	IntRange(lo, hi int) int
}

type randRNG struct {
	r *rand.Rand
}

// NewRandRNG returns a PCG-backed RNG. A zero seed picks a random one.
// The result is not safe for concurrent use; each room owns its own.
func NewRandRNG(seed uint64) RNG {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &randRNG{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *randRNG) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.r.IntN(hi-lo+1)
}

// ScriptedRNG replays a fixed sequence of values, clamped into the
// requested range. Once the script runs out it returns lo.
type ScriptedRNG struct {
	values []int
	pos    int
}

func NewScriptedRNG(values ...int) *ScriptedRNG {
	return &ScriptedRNG{values: values}
}

func (g *ScriptedRNG) IntRange(lo, hi int) int {
	if g.pos >= len(g.values) {
		return lo
	}
	v := g.values[g.pos]
	g.pos++
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Remaining reports how many scripted values have not been consumed.
func (g *ScriptedRNG) Remaining() int {
	return len(g.values) - g.pos
}
