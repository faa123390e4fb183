package optimizer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CircuitBreakerState is the state of the exact solver breaker.
type CircuitBreakerState int

const (
	// CircuitClosed lets Step 2 try the exact model.
	CircuitClosed CircuitBreakerState = iota

	// CircuitOpen sends Step 2 straight to the greedy allocator.
	CircuitOpen

	// CircuitHalfOpen lets a limited number of trial runs try the exact model.
	CircuitHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive exact solver timeouts that open the breaker.
	MaxFailures int `mapstructure:"max_failures"`

	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`

	// HalfOpenMaxCalls is the number of trial runs allowed at once and the
	// number of exact successes that close the breaker again.
	HalfOpenMaxCalls int `mapstructure:"half_open_max_calls"`
}

// DefaultCircuitBreakerConfig returns the default circuit breaker configuration.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      3,
		ResetTimeout:     5 * time.Minute,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreaker counts consecutive exact Step 2 timeouts. Every run that
// Allow lets through must report back with RecordSuccess, RecordFailure or
// Release.
type CircuitBreaker struct {
	mu        sync.Mutex
	state     CircuitBreakerState
	failures  int
	successes int // exact successes while half-open
	trials    int // runs in flight while half-open
	openedAt  time.Time

	name    string
	config  CircuitBreakerConfig
	metrics *MetricsRecorder
	logger  zerolog.Logger
	now     func() time.Time
}

// NewCircuitBreaker creates a closed breaker. A nil config uses the defaults.
func NewCircuitBreaker(name string, config *CircuitBreakerConfig, metrics *MetricsRecorder, logger *zerolog.Logger) *CircuitBreaker {
	cfg := *DefaultCircuitBreakerConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	if cfg.HalfOpenMaxCalls < 1 {
		cfg.HalfOpenMaxCalls = 1
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &CircuitBreaker{
		name:    name,
		config:  cfg,
		metrics: metrics,
		logger:  l.With().Str("circuit_breaker", name).Logger(),
		now:     time.Now,
	}
}

// Allow reports whether this run may try the exact model.
func (cb *CircuitBreaker) Allow(ctx context.Context) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.ResetTimeout {
			return false
		}
		cb.transitionTo(CircuitHalfOpen)
		cb.logger.Info().Str("request_id", RequestID(ctx)).Msg("Circuit breaker half-open, probing exact solver")
		fallthrough
	case CircuitHalfOpen:
		if cb.trials >= cb.config.HalfOpenMaxCalls {
			return false
		}
		cb.trials++
		return true
	default:
		return true
	}
}

// RecordSuccess reports an exact solve that finished within its time limit.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.releaseTrial()
		cb.successes++
		if cb.successes >= cb.config.HalfOpenMaxCalls {
			cb.transitionTo(CircuitClosed)
			cb.logger.Info().Str("request_id", RequestID(ctx)).Msg("Circuit breaker closed after successful trials")
		}
	}
}

// RecordFailure reports an exact solve that ran out of time.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.logger.Warn().
		Str("request_id", RequestID(ctx)).
		Str("reason", reason).
		Int("failure_count", cb.failures).
		Msg("Exact solver timed out")

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.transitionTo(CircuitOpen)
			cb.logger.Warn().
				Int("failure_count", cb.failures).
				Dur("reset_timeout", cb.config.ResetTimeout).
				Msg("Circuit breaker opened, Step 2 uses the greedy allocator")
		}
	case CircuitHalfOpen:
		cb.releaseTrial()
		cb.transitionTo(CircuitOpen)
		cb.logger.Warn().Msg("Circuit breaker re-opened after a failed trial")
	}
}

// Release ends a run whose outcome says nothing about solver speed, such as
// an infeasible model.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitHalfOpen {
		cb.releaseTrial()
	}
}

func (cb *CircuitBreaker) releaseTrial() {
	if cb.trials > 0 {
		cb.trials--
	}
}

// transitionTo resets the counters of the new state. Callers hold mu.
func (cb *CircuitBreaker) transitionTo(state CircuitBreakerState) {
	cb.state = state
	cb.successes = 0
	cb.trials = 0
	switch state {
	case CircuitOpen:
		cb.openedAt = cb.now()
	case CircuitClosed:
		cb.failures = 0
	}
	cb.metrics.RecordBreakerState(cb.name, state)
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the consecutive timeout count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the breaker.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(CircuitClosed)
	cb.logger.Info().Msg("Circuit breaker reset")
}

// WarmupGate holds allocation requests until the service has finished
// starting up.
type WarmupGate struct {
	once   sync.Once
	done   chan struct{}
	logger zerolog.Logger
}

// NewWarmupGate creates a closed gate.
func NewWarmupGate(logger *zerolog.Logger) *WarmupGate {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &WarmupGate{done: make(chan struct{}), logger: l}
}

// Wait blocks until the gate opens or ctx is done, and reports whether it opened.
func (wg *WarmupGate) Wait(ctx context.Context) bool {
	if wg.IsReady() {
		return true
	}
	wg.logger.Debug().Str("request_id", RequestID(ctx)).Msg("Waiting for warmup")
	select {
	case <-wg.done:
		return true
	case <-ctx.Done():
		wg.logger.Warn().Str("request_id", RequestID(ctx)).Msg("Gave up waiting for warmup")
		return false
	}
}

// Ready opens the gate. Later calls do nothing.
func (wg *WarmupGate) Ready() {
	wg.once.Do(func() {
		close(wg.done)
		wg.logger.Info().Msg("Warmup complete, accepting allocation requests")
	})
}

// IsReady reports whether the gate is open without blocking.
func (wg *WarmupGate) IsReady() bool {
	select {
	case <-wg.done:
		return true
	default:
		return false
	}
}

type requestIDKey struct{}

// WithRequestID attaches a request id for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id attached to ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
