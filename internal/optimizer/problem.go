package optimizer

import (
	"fmt"
	"math"
	"sort"
)

// problem is the bounded Step 2 instance shared by the exact model, the
// greedy allocator, verification and diagnostics.
type problem struct {
	reg   *Registry
	cls   *Classification
	tiers *Tiers
	env   *Envelope
	cov   *Coverage
	sc    *Scenario

	lb [][]int // lower bound per (sku, store)
	ub [][]int // upper bound per (sku, store), 0 means no allocation

	storeMax []int // capacity tightened by allocation_range_max
	storeMin []int // store total floor from allocation_range_min

	floorUnits  int     // min_allocation_per_store
	floorCount  []int   // effective min_stores_per_sku per SKU
	floorStores [][]int // stores preferred for the floors, by (tier, expected desc, id)
	candidates  [][]int // stores that can take floorUnits of the SKU
}

func newProblem(reg *Registry, cls *Classification, tiers *Tiers, env *Envelope, cov *Coverage, sc *Scenario) *problem {
	nSKU, nStore := reg.NumSKUs(), reg.NumStores()
	p := &problem{
		reg: reg, cls: cls, tiers: tiers, env: env, cov: cov, sc: sc,
		lb:          make([][]int, nSKU),
		ub:          make([][]int, nSKU),
		storeMax:    make([]int, nStore),
		storeMin:    make([]int, nStore),
		floorUnits:  sc.MinAllocationPerStore,
		floorCount:  make([]int, nSKU),
		floorStores: make([][]int, nSKU),
		candidates:  make([][]int, nSKU),
	}

	for i := 0; i < nSKU; i++ {
		p.lb[i] = make([]int, nStore)
		p.ub[i] = make([]int, nStore)
		stock := reg.SKU(i).Stock
		for j := 0; j < nStore; j++ {
			ub := min(stock, reg.Store(j).Capacity, env.Upper(i, j))
			if c := tiers.MaxPerSKU(j); c > 0 {
				ub = min(ub, c)
			}
			if cov.Applies(i) && !cov.Covered(i, j) {
				ub = 0
			}
			lb := env.Lower(i, j)
			if cov.Applies(i) && cov.Covered(i, j) {
				lb = max(lb, 1)
			}
			p.ub[i][j] = max(ub, 0)
			p.lb[i][j] = min(lb, p.ub[i][j])
		}
	}

	for j := 0; j < nStore; j++ {
		capacity := reg.Store(j).Capacity
		e := env.StoreExpected(j)
		p.storeMax[j] = capacity
		if sc.AllocationRangeMax > 0 && e > 0 {
			p.storeMax[j] = min(capacity, int(math.Round(sc.AllocationRangeMax*e)))
		}
		if sc.AllocationRangeMin > 0 && e > 0 {
			reachable := 0
			for i := 0; i < nSKU; i++ {
				reachable += p.ub[i][j]
			}
			p.storeMin[j] = min(int(math.Floor(sc.AllocationRangeMin*e+1e-9)), p.storeMax[j], reachable)
		}
	}

	if p.floorUnits > 0 && sc.MinStoresPerSKU > 0 {
		for i := 0; i < nSKU; i++ {
			stock := reg.SKU(i).Stock
			if stock < p.floorUnits {
				continue
			}
			for j := 0; j < nStore; j++ {
				if p.ub[i][j] >= p.floorUnits && p.storeMax[j] >= p.floorUnits {
					p.candidates[i] = append(p.candidates[i], j)
				}
			}
			p.floorCount[i] = min(sc.MinStoresPerSKU, len(p.candidates[i]), stock/p.floorUnits)
			if p.floorCount[i] == 0 {
				continue
			}
			ranked := append([]int(nil), p.candidates[i]...)
			sort.SliceStable(ranked, func(a, b int) bool {
				ja, jb := ranked[a], ranked[b]
				if ta, tb := tiers.Tier(ja), tiers.Tier(jb); ta != tb {
					return ta < tb
				}
				if ea, eb := env.Expected(i, ja), env.Expected(i, jb); ea != eb {
					return ea > eb
				}
				return reg.Store(ja).ID < reg.Store(jb).ID
			})
			p.floorStores[i] = ranked[:p.floorCount[i]]
		}
	}
	return p
}

// numVars returns the number of (sku, store) pairs that may receive stock.
func (p *problem) numVars() int {
	n := 0
	for i := range p.ub {
		for j := range p.ub[i] {
			if p.ub[i][j] > 0 {
				n++
			}
		}
	}
	return n
}

// checkFloorExpectation rejects proportional runs whose per-store floors
// cannot be met because too few target stores have a positive expectation
// for a SKU. Such stores get an upper bound of 0, so the floor would
// otherwise shrink silently.
func checkFloorExpectation(reg *Registry, env *Envelope, sc *Scenario) error {
	if !env.Enabled() || sc.MinAllocationPerStore <= 0 || sc.MinStoresPerSKU <= 0 {
		return nil
	}
	targets := reg.TargetStores()
	for i := 0; i < reg.NumSKUs(); i++ {
		required := min(sc.MinStoresPerSKU, reg.SKU(i).Stock/sc.MinAllocationPerStore, len(targets))
		if required == 0 {
			continue
		}
		positive := 0
		for _, j := range targets {
			if env.Expected(i, j) > 0 {
				positive++
			}
		}
		if positive < required {
			return sc.invalid("min_allocation_per_store", fmt.Sprintf(
				"sku %s needs %d floor stores but only %d target stores have a positive expected allocation",
				reg.SKU(i).ID, required, positive))
		}
	}
	return nil
}
