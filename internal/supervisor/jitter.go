package supervisor

import (
	"math/rand"
	"time"
)

// JitterSource provides deterministic, per-process jitter values.
// Using a per-process seed ensures that processes maintain their relative
// timing offsets across restarts, preventing synchronized reconnect storms
// against the chain endpoint.
type JitterSource struct {
	configSeed int64
}

// NewJitterSource creates a new jitter source with the given config seed.
func NewJitterSource(configSeed int64) *JitterSource {
	return &JitterSource{configSeed: configSeed}
}

// NewJitterSourceFromTime creates a jitter source seeded from the current time.
func NewJitterSourceFromTime() *JitterSource {
	return NewJitterSource(time.Now().UnixNano())
}

// ForProcess returns a random number generator seeded for a named process.
// The same name always produces the same sequence of values.
func (j *JitterSource) ForProcess(process string) *rand.Rand {
	return rand.New(rand.NewSource(seedFor(process, j.configSeed)))
}

// ProcessJitter returns a jitter duration for a named process within
// [0, maxJitter).
func (j *JitterSource) ProcessJitter(process string, maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	rng := j.ForProcess(process)
	return time.Duration(rng.Int63n(int64(maxJitter)))
}
