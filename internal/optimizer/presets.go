package optimizer

import (
	"fmt"
	"sort"
	"strings"
)

var presets = map[string]func() Scenario{
	"baseline": func() Scenario {
		s := DefaultScenario()
		s.Name = "baseline"
		s.Description = "Efficiency only with wide store ranges"
		s.CoverageWeight = 0
		s.BalancePenalty = 0
		s.AllocationPenalty = 0
		s.AllocationRangeMin = 0.3
		s.AllocationRangeMax = 3.0
		return s
	},
	"coverage_focused": func() Scenario {
		s := DefaultScenario()
		s.Name = "coverage_focused"
		s.Description = "Reward placing each SKU in as many stores as possible"
		s.CoverageWeight = 1.0
		s.BalancePenalty = 0
		s.AllocationPenalty = 0
		s.AllocationRangeMin = 0.2
		s.AllocationRangeMax = 5.0
		return s
	},
	"balance_focused": func() Scenario {
		s := DefaultScenario()
		s.Name = "balance_focused"
		s.Description = "Keep store fill ratios even within each tier"
		s.CoverageWeight = 0.1
		s.BalancePenalty = 1.0
		s.AllocationPenalty = 2.0
		s.AllocationRangeMin = 0.8
		s.AllocationRangeMax = 1.2
		s.MinCoverageThreshold = 0.1
		return s
	},
	"hybrid": func() Scenario {
		s := DefaultScenario()
		s.Name = "hybrid"
		s.Description = "Moderate coverage with light balance terms"
		s.CoverageWeight = 0.5
		s.BalancePenalty = 0.3
		s.AllocationPenalty = 0.1
		s.AllocationRangeMin = 0.5
		s.AllocationRangeMax = 2.0
		s.MinCoverageThreshold = 0.05
		return s
	},
	"extreme_coverage": func() Scenario {
		s := DefaultScenario()
		s.Name = "extreme_coverage"
		s.Description = "Push scarce SKUs to a large store footprint"
		s.CoverageWeight = 5.0
		s.BalancePenalty = 1.0
		s.AllocationPenalty = 0.1
		s.AllocationRangeMin = 0.2
		s.AllocationRangeMax = 5.0
		s.MinCoverageThreshold = 0.2
		return s
	},
	"proportional": func() Scenario {
		s := DefaultScenario()
		s.Name = "proportional"
		s.Description = "Demand proportional envelope with scarce and store size overrides"
		s.CoverageWeight = 0.5
		s.BalancePenalty = 0.3
		s.AllocationPenalty = 0.1
		s.UseProportionalAllocation = true
		s.MinAllocationMultiplier = 0.5
		s.MaxAllocationMultiplier = 1.5
		s.EnforceScarceDistribution = true
		s.ApplyStoreSizeConstraints = true
		s.LargeStoreMaxMultiplier = 2.0
		s.SmallStoreMaxMultiplier = 1.5
		return s
	},
	"tiered": func() Scenario {
		s := DefaultScenario()
		s.Name = "tiered"
		s.Description = "Per-SKU caps of 3, 2 and 1 units by store tier"
		s.CoverageWeight = 1.0
		s.BalancePenalty = 0
		s.AllocationPenalty = 0
		s.TierMaxPerSKU = []int{3, 2, 1}
		return s
	},
}

// Preset returns the named preset scenario.
func Preset(name string) (Scenario, bool) {
	build, ok := presets[name]
	if !ok {
		return Scenario{}, false
	}
	return build(), true
}

// PresetNames returns all preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SensitivityScenarios derives one-at-a-time variations of base over the
// coverage weight, the balance penalty and the allocation range.
func SensitivityScenarios(base Scenario) []Scenario {
	type variant struct {
		suffix string
		set    func(*Scenario)
	}
	var variants []variant
	for _, v := range []float64{0.1, 0.3, 0.5, 1.0, 2.0} {
		v := v
		variants = append(variants, variant{fmt.Sprintf("coverage_weight_%g", v), func(s *Scenario) { s.CoverageWeight = v }})
	}
	for _, v := range []float64{0.01, 0.05, 0.1, 0.5, 1.0} {
		v := v
		variants = append(variants, variant{fmt.Sprintf("balance_penalty_%g", v), func(s *Scenario) { s.BalancePenalty = v }})
	}
	for _, r := range [][2]float64{{0.3, 2.0}, {0.5, 1.5}, {0.7, 1.3}, {0.8, 1.2}, {0.9, 1.1}} {
		r := r
		variants = append(variants, variant{fmt.Sprintf("allocation_range_%g_%g", r[0], r[1]), func(s *Scenario) {
			s.AllocationRangeMin, s.AllocationRangeMax = r[0], r[1]
		}})
	}

	out := make([]Scenario, 0, len(variants))
	for _, v := range variants {
		s := base.Clone()
		v.set(&s)
		s.Base = base.Name
		s.Name = base.Name + "_" + v.suffix
		s.Description = fmt.Sprintf("%s with %s", base.Name, strings.ReplaceAll(v.suffix, "_", " "))
		out = append(out, s)
	}
	return out
}
