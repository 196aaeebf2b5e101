package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandRNG_StaysInRange(t *testing.T) {
	rng := NewRandRNG(42)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := rng.IntRange(1, 20)
		if v < 1 || v > 20 {
			t.Fatalf("IntRange(1, 20) returned %d", v)
		}
		seen[v] = true
	}
	assert.Len(t, seen, 20)
	assert.Equal(t, 7, rng.IntRange(7, 7))
}

func TestRandRNG_SeedIsDeterministic(t *testing.T) {
	a, b := NewRandRNG(7), NewRandRNG(7)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.IntRange(1, 20), b.IntRange(1, 20))
	}
}

func TestScriptedRNG(t *testing.T) {
	rng := NewScriptedRNG(5, 30, -2)
	assert.Equal(t, 5, rng.IntRange(1, 20))
	assert.Equal(t, 20, rng.IntRange(1, 20))
	assert.Equal(t, 0, rng.IntRange(0, 3))
	assert.Equal(t, 0, rng.Remaining())
	assert.Equal(t, 1, rng.IntRange(1, 20))
}
