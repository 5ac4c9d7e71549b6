package fsrs

import (
	"fmt"
	"math"
	"time"
)

// DefaultWeights is the published FSRS-4.5 parameter vector.
var DefaultWeights = [19]float64{
	0.4072, 1.1829, 3.1262, 15.4722, // w[0..3]   initial stability per rating
	7.2102, 0.5316, 1.0651, 0.0234, // w[4..7]   difficulty
	1.616, 0.1544, 1.0824, 1.9813, // w[8..11]  recall stability, forget scale
	0.0953, 0.2975, 2.2042, 0.2407, // w[12..15] forget stability
	2.9466, 0.5034, 0.6567, // w[16..18] hard penalty, easy bonus, unused
}

const (
	DefaultMaximumInterval   = 36500
	DefaultDesiredRetention  = 0.9
	DefaultInitialStability  = 0.5
	DefaultInitialDifficulty = 5.0

	// MaxMaximumInterval is the longest interval, in days, a time.Duration can hold.
	MaxMaximumInterval = int(math.MaxInt64 / int64(24*time.Hour))

	minStability  = 0.1
	minDifficulty = 1.0
	maxDifficulty = 10.0
)

// Config configures a Scheduler.
// Zero values are replaced with the defaults above.
type Config struct {
	Weights           [19]float64 // zero → DefaultWeights
	EnableFuzz        bool
	MaximumInterval   int     // zero → 36500
	DesiredRetention  float64 // zero → 0.9
	InitialStability  float64 // zero → 0.5
	InitialDifficulty float64 // zero → 5.0

	// Fuzz supplies randomness for interval fuzzing. Nil uses the
	// process-wide math/rand source, which is safe for concurrent use.
	Fuzz RandSource
}

// withDefaults fills zero fields and checks ranges.
func (c Config) withDefaults() (Config, error) {
	if c.Weights == [19]float64{} {
		c.Weights = DefaultWeights
	}
	for i, w := range c.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return c, fmt.Errorf("%w: w[%d] = %v", ErrInvalidConfig, i, w)
		}
	}
	if c.MaximumInterval == 0 {
		c.MaximumInterval = DefaultMaximumInterval
	}
	if c.MaximumInterval < 0 || c.MaximumInterval > MaxMaximumInterval {
		return c, fmt.Errorf("%w: maximum interval %d out of range [1, %d]", ErrInvalidConfig, c.MaximumInterval, MaxMaximumInterval)
	}
	if c.DesiredRetention == 0 {
		c.DesiredRetention = DefaultDesiredRetention
	}
	if c.DesiredRetention <= 0 || c.DesiredRetention >= 1 {
		return c, fmt.Errorf("%w: desired retention %v out of range (0, 1)", ErrInvalidConfig, c.DesiredRetention)
	}
	if c.InitialStability == 0 {
		c.InitialStability = DefaultInitialStability
	}
	if math.IsNaN(c.InitialStability) || c.InitialStability < minStability {
		return c, fmt.Errorf("%w: initial stability %v below %v", ErrInvalidConfig, c.InitialStability, minStability)
	}
	if c.InitialDifficulty == 0 {
		c.InitialDifficulty = DefaultInitialDifficulty
	}
	if c.InitialDifficulty < minDifficulty || c.InitialDifficulty > maxDifficulty {
		return c, fmt.Errorf("%w: initial difficulty %v out of range [1, 10]", ErrInvalidConfig, c.InitialDifficulty)
	}
	if c.Fuzz == nil {
		c.Fuzz = globalSource{}
	}
	return c, nil
}
