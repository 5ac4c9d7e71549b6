package fsrs

import (
	"math"
	"math/rand"
)

// RandSource is the randomness used for interval fuzzing.
// *rand.Rand satisfies it; tests pass a seeded or fixed source.
type RandSource interface {
	Intn(n int) int
}

// globalSource draws from the top-level math/rand functions,
// which are safe for concurrent use.
type globalSource struct{}

func (globalSource) Intn(n int) int { return rand.Intn(n) }

const fuzzFactor = 0.05

// applyFuzz replaces interval with a uniformly random whole number of days in
// [floor(0.95*interval), floor(1.05*interval)], never above maxIvl.
// Intervals under a day come out as 0, so the card is due again at once.
func applyFuzz(interval float64, maxIvl int, rng RandSource) float64 {
	lo := int(math.Floor(interval * (1 - fuzzFactor)))
	hi := int(math.Floor(interval * (1 + fuzzFactor)))
	fuzzed := lo + rng.Intn(hi-lo+1)
	return float64(min(fuzzed, maxIvl))
}
