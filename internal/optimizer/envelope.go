package optimizer

import (
	"github.com/shopspring/decimal"
)

// Envelope holds the demand proportional expectation and the per (SKU, store)
// bounds derived from it.
type Envelope struct {
	enabled       bool
	expected      [][]float64
	lower         [][]int
	upper         [][]int
	storeExpected []float64
}

// BuildEnvelope computes expected[i][j] = A[i] * QTY_SUM[j] / sum(QTY_SUM) and,
// when proportional allocation is enabled, the bounds
// [round(lo*expected), max(round(hi*expected), 1)]. Stores with zero
// expectation get an upper bound of 0. Multipliers are overridden for scarce
// SKUs and for tier 1 and tier 3 stores when those options are set.
// When disabled the lower bound is 0 and the upper bound is A[i].
func BuildEnvelope(reg *Registry, cls *Classification, tiers *Tiers, sc *Scenario) *Envelope {
	nSKU, nStore := reg.NumSKUs(), reg.NumStores()
	env := &Envelope{
		enabled:       sc.UseProportionalAllocation,
		expected:      make([][]float64, nSKU),
		lower:         make([][]int, nSKU),
		upper:         make([][]int, nSKU),
		storeExpected: make([]float64, nStore),
	}

	total := decimal.Zero
	for j := 0; j < nStore; j++ {
		total = total.Add(decimal.NewFromFloat(reg.Store(j).QtySum))
	}
	share := func(j int) (num, den decimal.Decimal) {
		if total.IsZero() {
			return decimal.NewFromInt(1), decimal.NewFromInt(int64(nStore))
		}
		return decimal.NewFromFloat(reg.Store(j).QtySum), total
	}

	for i := 0; i < nSKU; i++ {
		env.expected[i] = make([]float64, nStore)
		env.lower[i] = make([]int, nStore)
		env.upper[i] = make([]int, nStore)

		stock := reg.SKU(i).Stock
		a := decimal.NewFromInt(int64(stock))
		for j := 0; j < nStore; j++ {
			num, den := share(j)
			exp := a.Mul(num).Div(den)
			env.expected[i][j] = exp.InexactFloat64()
			env.storeExpected[j] += env.expected[i][j]

			if !env.enabled {
				env.upper[i][j] = stock
				continue
			}
			if exp.IsZero() {
				continue
			}
			lo, hi := multipliers(cls.IsScarce(i), tiers.Tier(j), sc)
			lower := roundUnits(exp, lo)
			upper := max(roundUnits(exp, hi), 1)
			env.lower[i][j] = min(lower, upper)
			env.upper[i][j] = upper
		}
	}
	return env
}

func multipliers(scarce bool, tier int, sc *Scenario) (lo, hi float64) {
	lo, hi = sc.MinAllocationMultiplier, sc.MaxAllocationMultiplier
	if scarce && sc.EnforceScarceDistribution {
		lo, hi = sc.ScarceMinAllocationMultiplier, sc.ScarceMaxAllocationMultiplier
	}
	if sc.ApplyStoreSizeConstraints {
		switch tier {
		case 1:
			hi = sc.LargeStoreMaxMultiplier
		case 3:
			hi = sc.SmallStoreMaxMultiplier
		}
	}
	return lo, hi
}

// roundUnits returns round(exp * mult), half away from zero.
func roundUnits(exp decimal.Decimal, mult float64) int {
	return int(exp.Mul(decimal.NewFromFloat(mult)).Round(0).IntPart())
}

// Enabled reports whether proportional bounds apply.
func (e *Envelope) Enabled() bool { return e.enabled }

// Expected returns the demand proportional expectation for (i, j).
func (e *Envelope) Expected(i, j int) float64 { return e.expected[i][j] }

// Lower returns the envelope lower bound for (i, j).
func (e *Envelope) Lower(i, j int) int { return e.lower[i][j] }

// Upper returns the envelope upper bound for (i, j).
func (e *Envelope) Upper(i, j int) int { return e.upper[i][j] }

// StoreExpected returns E[j], the expectation of store j summed over SKUs.
func (e *Envelope) StoreExpected(j int) float64 { return e.storeExpected[j] }
