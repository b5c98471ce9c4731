// Package orchestrator coordinates the neuron swarm: ramping processes up,
// supervising them, and shutting everything down cleanly.
package orchestrator

import (
	"context"
	"time"

	"github.com/randomizedcoder/go-neuron-swarm/internal/descriptor"
	"github.com/randomizedcoder/go-neuron-swarm/internal/supervisor"
)

// RampScheduler controls the rate at which neuron processes are started.
// Starting every neuron at once makes them all hit the chain endpoint and
// checkpoint bucket simultaneously, so starts are spread out with
// deterministic per-process jitter.
type RampScheduler struct {
	rate      int                      // processes per second
	maxJitter time.Duration            // maximum jitter per process
	jitter    *supervisor.JitterSource // deterministic jitter source
}

// NewRampScheduler creates a new scheduler with the given rate and jitter.
func NewRampScheduler(rate int, maxJitter time.Duration) *RampScheduler {
	return &RampScheduler{
		rate:      rate,
		maxJitter: maxJitter,
		jitter:    supervisor.NewJitterSourceFromTime(),
	}
}

// NewRampSchedulerWithSeed creates a scheduler with a specific seed for
// reproducibility.
func NewRampSchedulerWithSeed(rate int, maxJitter time.Duration, seed int64) *RampScheduler {
	return &RampScheduler{
		rate:      rate,
		maxJitter: maxJitter,
		jitter:    supervisor.NewJitterSource(seed),
	}
}

// Schedule waits the appropriate amount of time before starting the named
// process. Returns nil on success, or the context error if cancelled.
func (r *RampScheduler) Schedule(ctx context.Context, name descriptor.ProcessName) error {
	// rate=2 means 1 process per 500ms
	var baseDelay time.Duration
	if r.rate > 0 {
		baseDelay = time.Second / time.Duration(r.rate)
	}

	totalDelay := baseDelay + r.jitter.ProcessJitter(name.String(), r.maxJitter)

	if totalDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(totalDelay):
			return nil
		}
	}

	return nil
}

// EstimatedRampDuration returns the estimated time to start all processes.
func (r *RampScheduler) EstimatedRampDuration(total int) time.Duration {
	if r.rate <= 0 {
		return 0
	}
	baseTime := time.Duration(total) * time.Second / time.Duration(r.rate)
	avgJitter := r.maxJitter / 2
	return baseTime + avgJitter
}

// Rate returns the configured rate (processes per second).
func (r *RampScheduler) Rate() int {
	return r.rate
}

// MaxJitter returns the configured maximum jitter.
func (r *RampScheduler) MaxJitter() time.Duration {
	return r.maxJitter
}
