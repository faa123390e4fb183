package optimizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/allocation-service/internal/solver"
)

func allocateExact(t *testing.T, reg *Registry, sc *Scenario) (Matrix, StageReport) {
	t.Helper()
	p := buildProblem(reg, sc, nil)
	x, report, err := NewQuantityAllocator(exactSolver(), NewMetricsRecorder()).Allocate(context.Background(), p, false)
	require.NoError(t, err)
	require.Equal(t, AlgorithmExact, report.Algorithm, report.Message)
	require.NoError(t, p.verify(x))
	return x, report
}

// threeStoreRegistry is one SKU with 100 units over stores weighted 1000,
// 500 and 10.
func threeStoreRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(
		[]SKU{{ID: "S1_RED_M", Style: "S1", Color: "RED", Size: "M", Stock: 100}},
		[]Store{
			{ID: "A", Capacity: 100, QtySum: 1000},
			{ID: "B", Capacity: 100, QtySum: 500},
			{ID: "C", Capacity: 100, QtySum: 10},
		},
	)
	require.NoError(t, err)
	return reg
}

// TestQuantityStoreRangeMax caps store A at 1.2 times its expectation.
func TestQuantityStoreRangeMax(t *testing.T) {
	reg := twoStoreRegistry()
	sc := DefaultScenario()

	x, _ := allocateExact(t, reg, &sc)
	assert.Greater(t, x[0][0], 80, "A is the more efficient store")

	sc.AllocationRangeMax = 1.2
	x, _ = allocateExact(t, reg, &sc)
	assert.LessOrEqual(t, x[0][0], 80)
	assert.Equal(t, 100, x.SKUTotal(0))
}

// TestQuantityStoreRangeMin lifts store B to half its expectation.
func TestQuantityStoreRangeMin(t *testing.T) {
	reg := twoStoreRegistry()
	sc := DefaultScenario()

	x, _ := allocateExact(t, reg, &sc)
	assert.Less(t, x[0][1], 16)

	sc.AllocationRangeMin = 0.5
	x, _ = allocateExact(t, reg, &sc)
	assert.GreaterOrEqual(t, x[0][1], 16)
	assert.Equal(t, 100, x.SKUTotal(0))
}

// TestQuantityMinimumStoreFloors gives min_allocation_per_store units to
// min_stores_per_sku stores.
func TestQuantityMinimumStoreFloors(t *testing.T) {
	reg := threeStoreRegistry(t)
	sc := DefaultScenario()

	x, _ := allocateExact(t, reg, &sc)
	assert.Less(t, x[0][2], 5, "C is barely worth supplying")

	sc.MinAllocationPerStore = 5
	sc.MinStoresPerSKU = 3
	x, _ = allocateExact(t, reg, &sc)
	for j, q := range x[0] {
		assert.GreaterOrEqual(t, q, 5, reg.Store(j).ID)
	}
}

// TestQuantityDistributionPenalty keeps a SKU near its expected split when
// concentration is expensive.
func TestQuantityDistributionPenalty(t *testing.T) {
	reg := twoStoreRegistry()
	sc := DefaultScenario()
	sc.SKUDistributionPenalty = 0

	x, _ := allocateExact(t, reg, &sc)
	assert.Greater(t, x[0][0], 90)

	sc.SKUDistributionPenalty = 50
	x, _ = allocateExact(t, reg, &sc)
	assert.LessOrEqual(t, x[0][0], 67)
	assert.Equal(t, 100, x.SKUTotal(0))
}

// TestQuantityReportsDuration times the exact and the greedy path.
func TestQuantityReportsDuration(t *testing.T) {
	sc := proportionalScenario()
	_, report := allocateExact(t, twoStoreRegistry(), &sc)
	assert.Positive(t, report.Duration)
	assert.Positive(t, report.DurationMs)

	p := buildProblem(twoStoreRegistry(), &sc, nil)
	_, report, err := NewQuantityAllocator(exactSolver(), nil).Allocate(context.Background(), p, true)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmGreedyCircuitOpen, report.Algorithm)
	assert.Positive(t, report.DurationMs)
}

// TestRunRejectsFloorsWithoutExpectation fails before solving when a
// proportional run needs floors in stores that expect nothing.
func TestRunRejectsFloorsWithoutExpectation(t *testing.T) {
	reg, err := NewRegistry(
		[]SKU{{ID: "S1_RED_M", Style: "S1", Color: "RED", Size: "M", Stock: 100}},
		[]Store{
			{ID: "A", Capacity: 100, QtySum: 1000},
			{ID: "B", Capacity: 100, QtySum: 500},
			{ID: "C", Capacity: 100, QtySum: 0},
		},
	)
	require.NoError(t, err)

	sc := proportionalScenario()
	sc.MinAllocationPerStore = 1
	sc.MinStoresPerSKU = 3
	fake := statusSolver(solver.StatusTimeout)
	opt := NewTwoStepOptimizer(fake, nil)

	_, err = opt.Run(context.Background(), reg, &sc)
	var invalid ErrInvalidScenario
	require.True(t, errors.As(err, &invalid), "got %v", err)
	assert.Equal(t, "min_allocation_per_store", invalid.Field)
	assert.Zero(t, fake.callCount())

	sc.MinStoresPerSKU = 2
	_, err = opt.Run(context.Background(), reg, &sc)
	assert.NoError(t, err)
}
