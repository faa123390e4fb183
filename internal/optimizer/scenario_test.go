package optimizer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultScenarioIsValid guards the defaults.
func TestDefaultScenarioIsValid(t *testing.T) {
	sc := DefaultScenario()
	require.NoError(t, sc.Validate())
	assert.Equal(t, 300*time.Second, sc.Step1Timeout)
	assert.Equal(t, 600*time.Second, sc.Step2Timeout)
}

// TestPresetsAreValid validates every named preset.
func TestPresetsAreValid(t *testing.T) {
	for _, name := range PresetNames() {
		sc, ok := Preset(name)
		require.True(t, ok)
		assert.Equal(t, name, sc.Name)
		assert.NoError(t, sc.Validate(), name)
	}
	_, ok := Preset("missing")
	assert.False(t, ok)
}

// TestScenarioValidate rejects out of range options.
func TestScenarioValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Scenario)
		field  string
	}{
		{"negative weight", func(s *Scenario) { s.CoverageWeight = -1 }, "coverage_weight"},
		{"inverted range", func(s *Scenario) { s.AllocationRangeMin, s.AllocationRangeMax = 2, 1 }, "allocation_range_min"},
		{"threshold above one", func(s *Scenario) { s.MinCoverageThreshold = 1.5 }, "min_coverage_threshold"},
		{"zero timeout", func(s *Scenario) { s.Step2Timeout = 0 }, "step2_timeout"},
		{"inverted multipliers", func(s *Scenario) {
			s.UseProportionalAllocation = true
			s.MinAllocationMultiplier, s.MaxAllocationMultiplier = 2, 1
		}, "min_allocation_multiplier"},
		{"zero multiplier", func(s *Scenario) {
			s.UseProportionalAllocation = true
			s.MaxAllocationMultiplier = 0
		}, "max_allocation_multiplier"},
		{"scarce inverted", func(s *Scenario) {
			s.UseProportionalAllocation = true
			s.EnforceScarceDistribution = true
			s.ScarceMinAllocationMultiplier = 6
		}, "scarce_min_allocation_multiplier"},
		{"store size below floor", func(s *Scenario) {
			s.UseProportionalAllocation = true
			s.ApplyStoreSizeConstraints = true
			s.MinAllocationMultiplier = 1
			s.SmallStoreMaxMultiplier = 0.5
		}, "small_store_max_multiplier"},
		{"tier ratio count", func(s *Scenario) { s.TierRatios = []float64{1} }, "tier_ratios"},
		{"tier ratio sum", func(s *Scenario) { s.TierRatios = []float64{0.5, 0.5, 0.5} }, "tier_ratios"},
		{"negative tier cap", func(s *Scenario) { s.TierMaxPerSKU = []int{1, -1, 0} }, "tier_max_per_sku"},
		{"rank key", func(s *Scenario) { s.TierRankBy = "sales" }, "tier_rank_by"},
		{"negative floor", func(s *Scenario) { s.MinStoresPerSKU = -1 }, "min_stores_per_sku"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := DefaultScenario()
			tt.mutate(&sc)
			err := sc.Validate()
			require.Error(t, err)
			var invalid ErrInvalidScenario
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, tt.field, invalid.Field)
			assert.Equal(t, "default", invalid.Scenario)
		})
	}
}

// TestScenarioMultipliersIgnoredWhenDisabled only checks multipliers in use.
func TestScenarioMultipliersIgnoredWhenDisabled(t *testing.T) {
	sc := DefaultScenario()
	sc.MinAllocationMultiplier = 5
	sc.MaxAllocationMultiplier = 1
	assert.NoError(t, sc.Validate())
}

// TestApplyOptionsDecodesDurations accepts seconds and duration strings.
func TestApplyOptionsDecodesDurations(t *testing.T) {
	sc, err := ApplyOptions(DefaultScenario(), map[string]any{
		"name":            "custom",
		"step1_timeout":   30,
		"step2_timeout":   "2m",
		"coverage_weight": 2,
		"tier_ratios":     []any{0.5, 0.25, 0.25},
	})
	require.NoError(t, err)

	assert.Equal(t, "custom", sc.Name)
	assert.Equal(t, 30*time.Second, sc.Step1Timeout)
	assert.Equal(t, 2*time.Minute, sc.Step2Timeout)
	assert.Equal(t, 2.0, sc.CoverageWeight)
	assert.Equal(t, []float64{0.5, 0.25, 0.25}, sc.TierRatios)
	// Untouched options keep the base value.
	assert.Equal(t, 0.1, sc.BalancePenalty)
}

// TestApplyOptionsRejectsUnknownKeys fails on typos at load time.
func TestApplyOptionsRejectsUnknownKeys(t *testing.T) {
	_, err := ApplyOptions(DefaultScenario(), map[string]any{"coverage_wieght": 1})
	assert.Error(t, err)

	_, err = ApplyOptions(DefaultScenario(), map[string]any{"step1_timeout": "soon"})
	assert.Error(t, err)
}

// TestApplyOptionsDoesNotMutateBase keeps slices independent.
func TestApplyOptionsDoesNotMutateBase(t *testing.T) {
	base := DefaultScenario()
	_, err := ApplyOptions(base, map[string]any{"tier_max_per_sku": []any{3, 2, 1}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0}, base.TierMaxPerSKU)
}

// TestScenarioOptions reports durations in seconds and omits base.
func TestScenarioOptions(t *testing.T) {
	sc := DefaultScenario()
	sc.Base = "hybrid"
	opts := sc.Options()

	assert.Equal(t, 300.0, opts["step1_timeout"])
	assert.Equal(t, 1.0, opts["coverage_weight"])
	assert.Equal(t, false, opts["priority_unfilled"])
	assert.NotContains(t, opts, "base")
}

// TestSensitivityScenarios varies one option at a time.
func TestSensitivityScenarios(t *testing.T) {
	base, _ := Preset("hybrid")
	variants := SensitivityScenarios(base)

	require.Len(t, variants, 15)
	for _, v := range variants {
		assert.Equal(t, "hybrid", v.Base)
		assert.NoError(t, v.Validate(), v.Name)
	}
	assert.Equal(t, "hybrid_coverage_weight_0.1", variants[0].Name)
	assert.Equal(t, 0.1, variants[0].CoverageWeight)
	assert.Equal(t, base.BalancePenalty, variants[0].BalancePenalty)

	last := variants[len(variants)-1]
	assert.Equal(t, "hybrid_allocation_range_0.9_1.1", last.Name)
	assert.Equal(t, 0.9, last.AllocationRangeMin)
	assert.Equal(t, 1.1, last.AllocationRangeMax)
	assert.Equal(t, base.CoverageWeight, last.CoverageWeight)
}
