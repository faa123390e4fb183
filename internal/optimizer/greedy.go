package optimizer

import (
	"math"
	"sort"
)

// greedyAllocate is the deterministic fallback. SKUs are processed scarce
// first, then by ascending stock, then by id. Each SKU is filled in three
// passes toward rising per-store targets: its floors, its rounded
// expectation, and finally its upper bounds. Every unit goes to the eligible
// store with the lowest (tier, |expected - allocated|, id). With
// priority_unfilled, a pass after the floors first hands one unit to each
// store that has none of the SKU yet, by (tier, expected desc, id).
func greedyAllocate(p *problem) Matrix {
	reg := p.reg
	nSKU, nStore := reg.NumSKUs(), reg.NumStores()
	x := NewMatrix(nSKU, nStore)
	used := make([]int, nStore)

	order := make([]int, nSKU)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if sa, sb := p.cls.IsScarce(ia), p.cls.IsScarce(ib); sa != sb {
			return sa
		}
		if ka, kb := reg.SKU(ia).Stock, reg.SKU(ib).Stock; ka != kb {
			return ka < kb
		}
		return reg.SKU(ia).ID < reg.SKU(ib).ID
	})

	for _, i := range order {
		remaining := reg.SKU(i).Stock
		floors := p.floorTargets(i)
		expect := make([]int, nStore)
		for j := range expect {
			e := int(math.Round(p.env.Expected(i, j)))
			expect[j] = min(max(e, floors[j]), p.ub[i][j])
		}

		passes := [][]int{floors, expect, p.ub[i]}
		if p.sc.PriorityUnfilled {
			passes = [][]int{floors, nil, expect, p.ub[i]}
		}
		for _, targets := range passes {
			if targets == nil {
				remaining = fillUnfilled(p, x, used, i, remaining)
				continue
			}
			for remaining > 0 {
				j := pickStore(p, x, used, i, targets)
				if j < 0 {
					break
				}
				x[i][j]++
				used[j]++
				remaining--
			}
		}
	}
	return x
}

func fillUnfilled(p *problem, x Matrix, used []int, i, remaining int) int {
	order := make([]int, 0, len(x[i]))
	for j := range x[i] {
		if x[i][j] == 0 && p.ub[i][j] >= 1 {
			order = append(order, j)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		ja, jb := order[a], order[b]
		if ta, tb := p.tiers.Tier(ja), p.tiers.Tier(jb); ta != tb {
			return ta < tb
		}
		if ea, eb := p.env.Expected(i, ja), p.env.Expected(i, jb); ea != eb {
			return ea > eb
		}
		return p.reg.Store(ja).ID < p.reg.Store(jb).ID
	})
	for _, j := range order {
		if remaining == 0 {
			break
		}
		if used[j] >= p.storeMax[j] {
			continue
		}
		x[i][j]++
		used[j]++
		remaining--
	}
	return remaining
}

// floorTargets returns the hard lower bounds of SKU i raised to
// min_allocation_per_store on its preferred floor stores.
func (p *problem) floorTargets(i int) []int {
	targets := append([]int(nil), p.lb[i]...)
	for _, j := range p.floorStores[i] {
		targets[j] = min(max(targets[j], p.floorUnits), p.ub[i][j])
	}
	return targets
}

func pickStore(p *problem, x Matrix, used []int, i int, targets []int) int {
	best := -1
	bestGap := 0.0
	for j := range targets {
		if x[i][j] >= targets[j] || used[j] >= p.storeMax[j] {
			continue
		}
		gap := math.Abs(p.env.Expected(i, j) - float64(x[i][j]))
		if best < 0 || betterStore(p, j, gap, best, bestGap) {
			best, bestGap = j, gap
		}
	}
	return best
}

func betterStore(p *problem, j int, gap float64, best int, bestGap float64) bool {
	if tj, tb := p.tiers.Tier(j), p.tiers.Tier(best); tj != tb {
		return tj < tb
	}
	if gap != bestGap {
		return gap < bestGap
	}
	return p.reg.Store(j).ID < p.reg.Store(best).ID
}
