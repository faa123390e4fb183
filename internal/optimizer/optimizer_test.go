package optimizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/allocation-service/internal/solver"
)

// TestRunExactTwoStoreExample solves the proportional example with the
// branch-and-bound solver.
func TestRunExactTwoStoreExample(t *testing.T) {
	reg := twoStoreRegistry()
	sc := proportionalScenario()
	opt := NewTwoStepOptimizer(solver.NewBranchAndBound(solver.DefaultConfig()), NewMetricsRecorder())

	res, err := opt.Run(context.Background(), reg, &sc)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmSkipped, res.Metadata.Step1.Algorithm, "no scarce skus")
	assert.Equal(t, AlgorithmExact, res.Metadata.Step2.Algorithm)
	assert.True(t, res.Metadata.Step2.Status.HasSolution())

	xa, xb := res.Matrix[0][0], res.Matrix[0][1]
	assert.GreaterOrEqual(t, xa, 53)
	assert.LessOrEqual(t, xa, 80)
	assert.GreaterOrEqual(t, xb, 27)
	assert.LessOrEqual(t, xb, 40)
	assert.LessOrEqual(t, xa+xb, 100)
	assert.NoError(t, verifyResult(reg, &sc, res))
	assert.NotEmpty(t, res.Metadata.RunID)
}

// TestRunTimeoutFallsBackToGreedy reports the timeout fallback in metadata.
func TestRunTimeoutFallsBackToGreedy(t *testing.T) {
	reg := twoStoreRegistry()
	sc := proportionalScenario()
	opt := NewTwoStepOptimizer(statusSolver(solver.StatusTimeout), NewMetricsRecorder())

	res, err := opt.Run(context.Background(), reg, &sc)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmGreedyTimeout, res.Metadata.Step2.Algorithm)
	assert.Equal(t, solver.StatusTimeout, res.Metadata.Step2.Status)
	assert.Equal(t, Matrix{{67, 33}}, res.Matrix)
	assert.Len(t, res.Records, 2)
}

// TestRunInfeasibleReportsDiagnostics degrades Step 1 and explains Step 2.
func TestRunInfeasibleReportsDiagnostics(t *testing.T) {
	reg := tenStoreRegistry(10, 5, 50)
	sc := DefaultScenario()
	opt := NewTwoStepOptimizer(statusSolver(solver.StatusInfeasible), NewMetricsRecorder())

	res, err := opt.Run(context.Background(), reg, &sc)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmDegraded, res.Metadata.Step1.Algorithm)
	assert.True(t, res.Metadata.Step1.Degraded)
	assert.Equal(t, solver.StatusInfeasible, res.Metadata.Step1.Status)
	assert.Equal(t, AlgorithmGreedyInfeasible, res.Metadata.Step2.Algorithm)
	assert.NotEmpty(t, res.Metadata.Step2.Diagnostics)
	assert.Equal(t, 55, res.Totals.TotalAllocated)
}

// TestRunOversizeModel falls back when the solver rejects the model size.
func TestRunOversizeModel(t *testing.T) {
	reg := tenStoreRegistry(10, 5, 50)
	sc := DefaultScenario()
	opt := NewTwoStepOptimizer(errorSolver(solver.ErrModelTooLarge), NewMetricsRecorder())

	res, err := opt.Run(context.Background(), reg, &sc)
	require.NoError(t, err)

	assert.True(t, res.Metadata.Step1.Degraded)
	assert.Contains(t, res.Metadata.Step1.Message, "too large")
	assert.Equal(t, AlgorithmGreedyOversize, res.Metadata.Step2.Algorithm)
}

// TestRunAcceptsFeasibleIncumbent uses a time-limited solution that satisfies
// the invariants.
func TestRunAcceptsFeasibleIncumbent(t *testing.T) {
	reg := twoStoreRegistry()
	sc := proportionalScenario()
	opt := NewTwoStepOptimizer(boundSolver(false), NewMetricsRecorder())

	res, err := opt.Run(context.Background(), reg, &sc)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmExact, res.Metadata.Step2.Algorithm)
	assert.Equal(t, solver.StatusFeasible, res.Metadata.Step2.Status)
	assert.Equal(t, Matrix{{53, 27}}, res.Matrix)
}

// TestRunRejectsInvariantViolatingSolution falls back when the solver
// returns more than the stock.
func TestRunRejectsInvariantViolatingSolution(t *testing.T) {
	reg := twoStoreRegistry()
	sc := proportionalScenario()
	opt := NewTwoStepOptimizer(boundSolver(true), NewMetricsRecorder())

	res, err := opt.Run(context.Background(), reg, &sc)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmGreedyInvariant, res.Metadata.Step2.Algorithm)
	assert.Contains(t, res.Metadata.Step2.Message, InvariantStock)
	assert.Equal(t, Matrix{{67, 33}}, res.Matrix)
}

// TestRunCoverageEnforced keeps scarce SKUs out of stores Step 1 excluded.
func TestRunCoverageEnforced(t *testing.T) {
	reg := tenStoreRegistry(10, 4)
	sc := DefaultScenario()
	sc.BalancePenalty = 0
	opt := NewTwoStepOptimizer(solver.NewBranchAndBound(solver.DefaultConfig()), NewMetricsRecorder())

	res, err := opt.Run(context.Background(), reg, &sc)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmExact, res.Metadata.Step1.Algorithm)
	for _, rec := range res.Records {
		assert.True(t, rec.Covered, rec.StoreID)
		assert.True(t, rec.Scarce)
	}
	assert.Equal(t, 4, res.SKUs[0].StoreCount, "one unit per covered store")
}

// TestRunCircuitBreakerSkipsExactSolver opens after a timeout.
func TestRunCircuitBreakerSkipsExactSolver(t *testing.T) {
	reg := twoStoreRegistry()
	sc := proportionalScenario()
	fake := statusSolver(solver.StatusTimeout)
	cb := NewCircuitBreaker("step2", &CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour, HalfOpenMaxCalls: 1}, NewMetricsRecorder(), nil)
	opt := NewTwoStepOptimizer(fake, NewMetricsRecorder(), WithCircuitBreaker(cb))

	first, err := opt.Run(context.Background(), reg, &sc)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmGreedyTimeout, first.Metadata.Step2.Algorithm)
	assert.Equal(t, CircuitOpen, opt.BreakerState())

	calls := fake.callCount()
	second, err := opt.Run(context.Background(), reg, &sc)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmGreedyCircuitOpen, second.Metadata.Step2.Algorithm)
	assert.Equal(t, calls, fake.callCount(), "exact solver not called while open")
	assert.Equal(t, first.Matrix, second.Matrix)
}

// TestRunInvalidScenario fails before any stage.
func TestRunInvalidScenario(t *testing.T) {
	fake := statusSolver(solver.StatusOptimal)
	opt := NewTwoStepOptimizer(fake, nil)
	sc := DefaultScenario()
	sc.TierRankBy = "bogus"

	_, err := opt.Run(context.Background(), twoStoreRegistry(), &sc)
	var invalid ErrInvalidScenario
	require.True(t, errors.As(err, &invalid))
	assert.Zero(t, fake.callCount())
}

// TestRunGreedyDeterministicAcrossRuns compares full results of repeated
// fallback runs.
func TestRunGreedyDeterministicAcrossRuns(t *testing.T) {
	reg := tenStoreRegistry(15, 4, 9, 30, 60, 0, 12)
	sc, _ := Preset("tiered")
	opt := NewTwoStepOptimizer(statusSolver(solver.StatusTimeout), nil)

	first, err := opt.Run(context.Background(), reg, &sc)
	require.NoError(t, err)
	second, err := opt.Run(context.Background(), reg, &sc)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Matrix, second.Matrix); diff != "" {
		t.Fatalf("matrix differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Totals, second.Totals)
	assert.NotEqual(t, first.Metadata.RunID, second.Metadata.RunID)
}

// TestRunReportsStageDurations fills the wall time of both stages.
func TestRunReportsStageDurations(t *testing.T) {
	reg := tenStoreRegistry(10, 4, 50)
	sc := DefaultScenario()
	opt := NewTwoStepOptimizer(solver.NewBranchAndBound(solver.DefaultConfig()), NewMetricsRecorder())

	res, err := opt.Run(context.Background(), reg, &sc)
	require.NoError(t, err)

	assert.Equal(t, AlgorithmExact, res.Metadata.Step1.Algorithm)
	assert.Positive(t, res.Metadata.Step1.DurationMs)
	assert.Positive(t, res.Metadata.Step2.DurationMs)
	assert.GreaterOrEqual(t, res.Metadata.TotalDurationMs, res.Metadata.Step1.DurationMs+res.Metadata.Step2.DurationMs)
}
