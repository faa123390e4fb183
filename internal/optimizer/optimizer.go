// Package optimizer implements the two-step SKU allocation optimizer: SKU
// classification, store tiers, Step 1 coverage placement, Step 2 quantity
// allocation with a greedy fallback, and result assembly.
package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kosarica/allocation-service/internal/solver"
	"github.com/kosarica/allocation-service/internal/telemetry"
)

// TwoStepOptimizer orchestrates a full allocation run.
type TwoStepOptimizer struct {
	coverage *CoverageOptimizer
	quantity *QuantityAllocator
	metrics  *MetricsRecorder
	breaker  *CircuitBreaker
	logger   zerolog.Logger
}

// Option configures a TwoStepOptimizer.
type Option func(*TwoStepOptimizer)

// WithCircuitBreaker skips the exact Step 2 model while the breaker is open.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(o *TwoStepOptimizer) { o.breaker = cb }
}

// NewTwoStepOptimizer creates an optimizer backed by s.
func NewTwoStepOptimizer(s solver.Solver, metrics *MetricsRecorder, opts ...Option) *TwoStepOptimizer {
	o := &TwoStepOptimizer{
		coverage: NewCoverageOptimizer(s, metrics),
		quantity: NewQuantityAllocator(s, metrics),
		metrics:  metrics,
		logger:   log.With().Str("component", "two_step_optimizer").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var _ Runner = (*TwoStepOptimizer)(nil)

// BreakerState implements BreakerReporter.
func (o *TwoStepOptimizer) BreakerState() CircuitBreakerState {
	if o.breaker == nil {
		return CircuitClosed
	}
	return o.breaker.State()
}

// Run executes classification, tiering, Step 1, Step 2 and assembly. The
// only errors are an invalid scenario (including floors the envelope rules
// out) and ErrAllocationFailed.
func (o *TwoStepOptimizer) Run(ctx context.Context, reg *Registry, sc *Scenario) (*Result, error) {
	startTime := time.Now()
	if err := sc.Validate(); err != nil {
		o.metrics.RecordRun(sc.Name, time.Since(startTime).Seconds(), false)
		return nil, err
	}
	runID := uuid.NewString()
	logger := o.logger.With().Str("run_id", runID).Str("scenario", sc.Name).Logger()

	ctx, span := telemetry.StartSpan(ctx, "optimizer.run",
		attribute.String("run_id", runID),
		attribute.String("scenario", sc.Name),
		attribute.Int("skus", reg.NumSKUs()),
		attribute.Int("stores", reg.NumStores()),
	)
	defer span.End()

	cls := Classify(reg, sc.MinAllocationPerStore, sc.ExtendScarceToSiblings)
	tiers := AssignTiers(reg, sc.TierConfig())
	env := BuildEnvelope(reg, cls, tiers, sc)
	if err := checkFloorExpectation(reg, env, sc); err != nil {
		o.metrics.RecordRun(sc.Name, time.Since(startTime).Seconds(), false)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	logger.Info().
		Int("skus", reg.NumSKUs()).
		Int("stores", reg.NumStores()).
		Int("target_stores", reg.NumTargetStores()).
		Int("scarce", len(cls.Scarce())).
		Msg("Starting allocation run")

	step1Ctx, step1Span := telemetry.StartSpan(ctx, "optimizer.step1")
	cov, step1 := o.coverage.Optimize(step1Ctx, reg, cls, env, sc)
	step1Span.SetAttributes(attribute.String("algorithm", step1.Algorithm), attribute.Bool("degraded", step1.Degraded))
	step1Span.End()

	step2Ctx, step2Span := telemetry.StartSpan(ctx, "optimizer.step2")
	x, step2, err := o.allocate(step2Ctx, reg, cls, tiers, env, cov, sc)
	step2Span.SetAttributes(attribute.String("algorithm", step2.Algorithm))
	if err != nil {
		step2Span.RecordError(err)
		step2Span.SetStatus(codes.Error, err.Error())
	}
	step2Span.End()

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		o.metrics.RecordRun(sc.Name, time.Since(startTime).Seconds(), false)
		telemetry.RecordRun(ctx, sc.Name, step2.Algorithm, false, time.Since(startTime).Seconds())
		logger.Error().Err(err).Str("algorithm", step2.Algorithm).Msg("Allocation failed")
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	res := Assemble(AssembleInput{
		Registry:       reg,
		Classification: cls,
		Tiers:          tiers,
		Envelope:       env,
		Coverage:       cov,
		Matrix:         x,
		Metadata: RunMetadata{
			RunID:     runID,
			Scenario:  sc.Name,
			Options:   sc.Options(),
			StartedAt: startTime.UTC(),
			Step1:     step1,
			Step2:     step2,
		},
	})
	res.Metadata.TotalDurationMs = float64(time.Since(startTime)) / float64(time.Millisecond)

	o.metrics.RecordRun(sc.Name, time.Since(startTime).Seconds(), true)
	telemetry.RecordRun(ctx, sc.Name, step2.Algorithm, true, res.Metadata.TotalDurationMs/1000)
	o.metrics.RecordAllocationRate(res.Totals.AllocationRate)
	logger.Info().
		Str("step1", step1.Algorithm).
		Str("step2", step2.Algorithm).
		Int("allocated", res.Totals.TotalAllocated).
		Int("stock", res.Totals.TotalStock).
		Float64("duration_ms", res.Metadata.TotalDurationMs).
		Msg("Allocation run finished")
	return res, nil
}

func (o *TwoStepOptimizer) allocate(ctx context.Context, reg *Registry, cls *Classification, tiers *Tiers, env *Envelope, cov *Coverage, sc *Scenario) (Matrix, StageReport, error) {
	p := newProblem(reg, cls, tiers, env, cov, sc)
	skip := o.breaker != nil && !o.breaker.Allow(ctx)
	x, report, err := o.quantity.Allocate(ctx, p, skip)
	if o.breaker != nil && !skip {
		switch report.Algorithm {
		case AlgorithmExact:
			o.breaker.RecordSuccess(ctx)
		case AlgorithmGreedyTimeout:
			o.breaker.RecordFailure(ctx, report.Message)
		default:
			o.breaker.Release()
		}
	}
	return x, report, err
}
