package optimizer

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Scenario is the typed set of optimizer options for one run.
type Scenario struct {
	Name        string `mapstructure:"name" json:"name" yaml:"name,omitempty"`
	Description string `mapstructure:"description" json:"description,omitempty" yaml:"description,omitempty"`
	// Base names the preset or catalogue scenario this one inherits from.
	Base string `mapstructure:"base" json:"base,omitempty" yaml:"base,omitempty"`

	// Objective weights
	CoverageWeight         float64 `mapstructure:"coverage_weight" json:"coverage_weight" yaml:"coverage_weight"`
	BalancePenalty         float64 `mapstructure:"balance_penalty" json:"balance_penalty" yaml:"balance_penalty"`
	AllocationPenalty      float64 `mapstructure:"allocation_penalty" json:"allocation_penalty" yaml:"allocation_penalty"`
	SKUDistributionPenalty float64 `mapstructure:"sku_distribution_penalty" json:"sku_distribution_penalty" yaml:"sku_distribution_penalty"`

	// Store totals relative to expectation, 0 disables the bound
	AllocationRangeMin float64 `mapstructure:"allocation_range_min" json:"allocation_range_min" yaml:"allocation_range_min"`
	AllocationRangeMax float64 `mapstructure:"allocation_range_max" json:"allocation_range_max" yaml:"allocation_range_max"`

	// Step 1
	EnforceCoverage      bool    `mapstructure:"enforce_coverage" json:"enforce_coverage" yaml:"enforce_coverage"`
	MinCoverageThreshold float64 `mapstructure:"min_coverage_threshold" json:"min_coverage_threshold" yaml:"min_coverage_threshold"`
	CoverageDiversityCap int     `mapstructure:"coverage_diversity_cap" json:"coverage_diversity_cap" yaml:"coverage_diversity_cap"`

	// Time limits
	Step1Timeout time.Duration `mapstructure:"step1_timeout" json:"step1_timeout" yaml:"step1_timeout"`
	Step2Timeout time.Duration `mapstructure:"step2_timeout" json:"step2_timeout" yaml:"step2_timeout"`

	// Proportional envelope
	UseProportionalAllocation bool    `mapstructure:"use_proportional_allocation" json:"use_proportional_allocation" yaml:"use_proportional_allocation"`
	MinAllocationMultiplier   float64 `mapstructure:"min_allocation_multiplier" json:"min_allocation_multiplier" yaml:"min_allocation_multiplier"`
	MaxAllocationMultiplier   float64 `mapstructure:"max_allocation_multiplier" json:"max_allocation_multiplier" yaml:"max_allocation_multiplier"`

	EnforceScarceDistribution     bool    `mapstructure:"enforce_scarce_distribution" json:"enforce_scarce_distribution" yaml:"enforce_scarce_distribution"`
	ScarceMinAllocationMultiplier float64 `mapstructure:"scarce_min_allocation_multiplier" json:"scarce_min_allocation_multiplier" yaml:"scarce_min_allocation_multiplier"`
	ScarceMaxAllocationMultiplier float64 `mapstructure:"scarce_max_allocation_multiplier" json:"scarce_max_allocation_multiplier" yaml:"scarce_max_allocation_multiplier"`

	ApplyStoreSizeConstraints bool    `mapstructure:"apply_store_size_constraints" json:"apply_store_size_constraints" yaml:"apply_store_size_constraints"`
	LargeStoreMaxMultiplier   float64 `mapstructure:"large_store_max_multiplier" json:"large_store_max_multiplier" yaml:"large_store_max_multiplier"`
	SmallStoreMaxMultiplier   float64 `mapstructure:"small_store_max_multiplier" json:"small_store_max_multiplier" yaml:"small_store_max_multiplier"`

	// Floors
	MinAllocationPerStore int `mapstructure:"min_allocation_per_store" json:"min_allocation_per_store" yaml:"min_allocation_per_store"`
	MinStoresPerSKU       int `mapstructure:"min_stores_per_sku" json:"min_stores_per_sku" yaml:"min_stores_per_sku"`

	// PriorityUnfilled makes the greedy allocator give one unit to every
	// store still without the SKU before topping up any store.
	PriorityUnfilled bool `mapstructure:"priority_unfilled" json:"priority_unfilled" yaml:"priority_unfilled"`

	// Classification and tiers
	ExtendScarceToSiblings bool      `mapstructure:"extend_scarce_to_siblings" json:"extend_scarce_to_siblings" yaml:"extend_scarce_to_siblings"`
	TierRatios             []float64 `mapstructure:"tier_ratios" json:"tier_ratios" yaml:"tier_ratios,flow"`
	TierMaxPerSKU          []int     `mapstructure:"tier_max_per_sku" json:"tier_max_per_sku" yaml:"tier_max_per_sku,flow"`
	TierRankBy             string    `mapstructure:"tier_rank_by" json:"tier_rank_by" yaml:"tier_rank_by"`
}

// DefaultScenario returns the default scenario options.
func DefaultScenario() Scenario {
	return Scenario{
		Name:                          "default",
		CoverageWeight:                1.0,
		BalancePenalty:                0.1,
		AllocationPenalty:             0.1,
		SKUDistributionPenalty:        0.5,
		EnforceCoverage:               true,
		Step1Timeout:                  300 * time.Second,
		Step2Timeout:                  600 * time.Second,
		MinAllocationMultiplier:       0.1,
		MaxAllocationMultiplier:       3.0,
		ScarceMinAllocationMultiplier: 0.05,
		ScarceMaxAllocationMultiplier: 5.0,
		LargeStoreMaxMultiplier:       5.0,
		SmallStoreMaxMultiplier:       3.0,
		TierRatios:                    []float64{0.3, 0.2, 0.5},
		TierMaxPerSKU:                 []int{0, 0, 0},
		TierRankBy:                    RankByQtySum,
	}
}

// Clone returns a copy that shares no slices with s.
func (s Scenario) Clone() Scenario {
	s.TierRatios = append([]float64(nil), s.TierRatios...)
	s.TierMaxPerSKU = append([]int(nil), s.TierMaxPerSKU...)
	return s
}

// TierConfig converts the tier options. Call after Validate.
func (s *Scenario) TierConfig() TierConfig {
	cfg := TierConfig{RankBy: s.TierRankBy}
	copy(cfg.Ratios[:], s.TierRatios)
	copy(cfg.MaxPerSKU[:], s.TierMaxPerSKU)
	return cfg
}

const maxMultiplier = 10000

// Validate validates the scenario and returns ErrInvalidScenario if invalid.
func (s *Scenario) Validate() error {
	weights := []struct {
		field string
		value float64
	}{
		{"coverage_weight", s.CoverageWeight},
		{"balance_penalty", s.BalancePenalty},
		{"allocation_penalty", s.AllocationPenalty},
		{"sku_distribution_penalty", s.SKUDistributionPenalty},
		{"allocation_range_min", s.AllocationRangeMin},
		{"allocation_range_max", s.AllocationRangeMax},
	}
	for _, w := range weights {
		if math.IsNaN(w.value) || math.IsInf(w.value, 0) || w.value < 0 {
			return s.invalid(w.field, "must be a non-negative number")
		}
	}
	if s.AllocationRangeMax > 0 && s.AllocationRangeMin > s.AllocationRangeMax {
		return s.invalid("allocation_range_min", "must be <= allocation_range_max")
	}
	if s.MinCoverageThreshold < 0 || s.MinCoverageThreshold > 1 || math.IsNaN(s.MinCoverageThreshold) {
		return s.invalid("min_coverage_threshold", "must be between 0 and 1")
	}
	if s.CoverageDiversityCap < 0 {
		return s.invalid("coverage_diversity_cap", "must be non-negative")
	}
	if s.Step1Timeout <= 0 {
		return s.invalid("step1_timeout", "must be positive")
	}
	if s.Step2Timeout <= 0 {
		return s.invalid("step2_timeout", "must be positive")
	}

	if s.UseProportionalAllocation {
		if err := s.validateMultipliers("min_allocation_multiplier", s.MinAllocationMultiplier,
			"max_allocation_multiplier", s.MaxAllocationMultiplier); err != nil {
			return err
		}
		if s.EnforceScarceDistribution {
			if err := s.validateMultipliers("scarce_min_allocation_multiplier", s.ScarceMinAllocationMultiplier,
				"scarce_max_allocation_multiplier", s.ScarceMaxAllocationMultiplier); err != nil {
				return err
			}
		}
		if s.ApplyStoreSizeConstraints {
			lower := s.MinAllocationMultiplier
			if s.EnforceScarceDistribution {
				lower = math.Max(lower, s.ScarceMinAllocationMultiplier)
			}
			for _, m := range []struct {
				field string
				value float64
			}{
				{"large_store_max_multiplier", s.LargeStoreMaxMultiplier},
				{"small_store_max_multiplier", s.SmallStoreMaxMultiplier},
			} {
				if !(m.value > 0) || m.value > maxMultiplier {
					return s.invalid(m.field, fmt.Sprintf("must be in (0, %d]", maxMultiplier))
				}
				if m.value < lower {
					return s.invalid(m.field, "must be >= the applicable min multiplier")
				}
			}
		}
	}

	if s.MinAllocationPerStore < 0 {
		return s.invalid("min_allocation_per_store", "must be non-negative")
	}
	if s.MinStoresPerSKU < 0 {
		return s.invalid("min_stores_per_sku", "must be non-negative")
	}

	if len(s.TierRatios) != 3 {
		return s.invalid("tier_ratios", "must have exactly 3 values")
	}
	sum := 0.0
	for _, r := range s.TierRatios {
		if r < 0 || math.IsNaN(r) {
			return s.invalid("tier_ratios", "must be non-negative")
		}
		sum += r
	}
	if math.Abs(sum-1) > 1e-6 {
		return s.invalid("tier_ratios", "must sum to 1")
	}
	if len(s.TierMaxPerSKU) != 3 {
		return s.invalid("tier_max_per_sku", "must have exactly 3 values")
	}
	for _, c := range s.TierMaxPerSKU {
		if c < 0 {
			return s.invalid("tier_max_per_sku", "must be non-negative")
		}
	}
	if s.TierRankBy != RankByQtySum && s.TierRankBy != RankByCapacity {
		return s.invalid("tier_rank_by", "must be qty_sum or capacity")
	}
	return nil
}

func (s *Scenario) validateMultipliers(minField string, minValue float64, maxField string, maxValue float64) error {
	if !(minValue > 0) || minValue > maxMultiplier {
		return s.invalid(minField, fmt.Sprintf("must be in (0, %d]", maxMultiplier))
	}
	if !(maxValue > 0) || maxValue > maxMultiplier {
		return s.invalid(maxField, fmt.Sprintf("must be in (0, %d]", maxMultiplier))
	}
	if minValue > maxValue {
		return s.invalid(minField, "must be <= "+maxField)
	}
	return nil
}

func (s *Scenario) invalid(field, reason string) error {
	return ErrInvalidScenario{Scenario: s.Name, Field: field, Reason: reason}
}

// ErrInvalidScenario is returned when a scenario option is out of range.
type ErrInvalidScenario struct {
	Scenario string
	Field    string
	Reason   string
}

func (e ErrInvalidScenario) Error() string {
	if e.Scenario == "" {
		return e.Field + ": " + e.Reason
	}
	return "scenario " + e.Scenario + ": " + e.Field + ": " + e.Reason
}

// Options returns the scenario as a flat option map. Durations are reported
// in seconds.
func (s *Scenario) Options() map[string]any {
	out := make(map[string]any)
	if err := mapstructure.Decode(s.Clone(), &out); err != nil {
		return out
	}
	for k, v := range out {
		if d, ok := v.(time.Duration); ok {
			out[k] = d.Seconds()
		}
	}
	delete(out, "base")
	return out
}

var durationType = reflect.TypeOf(time.Duration(0))

// DurationSecondsHook decodes plain numbers as seconds and strings with
// time.ParseDuration when the target is a time.Duration.
func DurationSecondsHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case uint64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid duration %q: %w", v, err)
			}
			return d, nil
		}
		return data, nil
	}
}

// ApplyOptions overlays raw options on base and returns the resulting
// scenario. Unknown keys are rejected.
func ApplyOptions(base Scenario, raw map[string]any) (Scenario, error) {
	out := base.Clone()
	// Slices are replaced rather than merged element-wise.
	if _, ok := raw["tier_ratios"]; ok {
		out.TierRatios = nil
	}
	if _, ok := raw["tier_max_per_sku"]; ok {
		out.TierMaxPerSKU = nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  DurationSecondsHook(),
		ErrorUnused: true,
		Result:      &out,
	})
	if err != nil {
		return Scenario{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario options: %w", err)
	}
	return out, nil
}
