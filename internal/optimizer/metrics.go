package optimizer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage labels.
const (
	StageCoverage = "step1_coverage"
	StageQuantity = "step2_quantity"
)

var (
	// stageDuration tracks the time taken by each optimizer stage.
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocator_stage_duration_seconds",
		Help:    "Time taken by each optimizer stage by algorithm",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
	}, []string{"stage", "algorithm"})

	// solverStatus counts solver outcomes.
	solverStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_solver_status_total",
		Help: "Solver outcomes by stage and status",
	}, []string{"stage", "status"})

	// degradedRuns counts stages that degraded instead of failing.
	degradedRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_degraded_total",
		Help: "Total number of degraded stages",
	}, []string{"stage"})

	// fallbacks counts greedy fallbacks by reason.
	fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_greedy_fallbacks_total",
		Help: "Total number of greedy fallbacks by algorithm label",
	}, []string{"algorithm"})

	// invariantFailures counts allocations rejected by verification.
	invariantFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_invariant_failures_total",
		Help: "Allocations rejected by invariant verification",
	}, []string{"invariant"})

	// modelSize tracks the number of variables per stage model.
	modelSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocator_model_variables_count",
		Help:    "Number of model variables by stage",
		Buckets: []float64{10, 50, 100, 200, 400, 1000, 5000},
	}, []string{"stage"})

	// runDuration tracks complete runs.
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocator_run_duration_seconds",
		Help:    "Time taken for a complete two-step run by scenario",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
	}, []string{"scenario"})

	// runErrors counts failed runs.
	runErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_run_errors_total",
		Help: "Total number of failed runs by scenario",
	}, []string{"scenario"})

	// allocationRate tracks allocated units over total stock.
	allocationRate = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocator_allocation_rate_ratio",
		Help:    "Allocated units divided by total stock",
		Buckets: []float64{0.5, 0.7, 0.8, 0.9, 0.95, 1.0},
	})

	// breakerState exposes circuit breaker state (0 closed, 1 open, 2 half-open).
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "allocator_circuit_breaker_state",
		Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
	}, []string{"breaker"})
)

// MetricsRecorder provides methods to record optimizer metrics.
// A nil recorder discards everything.
type MetricsRecorder struct{}

// NewMetricsRecorder creates a new metrics recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// RecordStage records the duration of a stage.
func (m *MetricsRecorder) RecordStage(stage, algorithm string, d time.Duration) {
	if m == nil {
		return
	}
	stageDuration.WithLabelValues(stage, algorithm).Observe(d.Seconds())
}

// RecordSolverStatus counts a solver outcome.
func (m *MetricsRecorder) RecordSolverStatus(stage, status string) {
	if m == nil {
		return
	}
	solverStatus.WithLabelValues(stage, status).Inc()
}

// RecordDegraded counts a degraded stage.
func (m *MetricsRecorder) RecordDegraded(stage string) {
	if m == nil {
		return
	}
	degradedRuns.WithLabelValues(stage).Inc()
}

// RecordFallback counts a greedy fallback.
func (m *MetricsRecorder) RecordFallback(algorithm string) {
	if m == nil {
		return
	}
	fallbacks.WithLabelValues(algorithm).Inc()
}

// RecordInvariantFailure counts a rejected allocation.
func (m *MetricsRecorder) RecordInvariantFailure(invariant string) {
	if m == nil {
		return
	}
	invariantFailures.WithLabelValues(invariant).Inc()
}

// RecordModelSize records the variable count of a stage model.
func (m *MetricsRecorder) RecordModelSize(stage string, variables int) {
	if m == nil {
		return
	}
	modelSize.WithLabelValues(stage).Observe(float64(variables))
}

// RecordRun records a complete run.
func (m *MetricsRecorder) RecordRun(scenario string, durationSeconds float64, success bool) {
	if m == nil {
		return
	}
	runDuration.WithLabelValues(scenario).Observe(durationSeconds)
	if !success {
		runErrors.WithLabelValues(scenario).Inc()
	}
}

// RecordAllocationRate records the allocation rate of a result.
func (m *MetricsRecorder) RecordAllocationRate(rate float64) {
	if m == nil {
		return
	}
	allocationRate.Observe(rate)
}

// RecordBreakerState records a circuit breaker state change.
func (m *MetricsRecorder) RecordBreakerState(name string, state CircuitBreakerState) {
	if m == nil {
		return
	}
	breakerState.WithLabelValues(name).Set(float64(state))
}
