package optimizer

import (
	"context"
)

// Runner is the main interface for allocation runs.
// This allows transports and the batch pipeline to be decoupled from the
// optimizer implementation.
type Runner interface {
	// Run executes both steps for one scenario and assembles the result.
	Run(ctx context.Context, reg *Registry, sc *Scenario) (*Result, error)
}

// BreakerReporter reports the exact solver circuit breaker state.
type BreakerReporter interface {
	// BreakerState returns the current state, or CircuitClosed when no breaker is configured.
	BreakerState() CircuitBreakerState
}
