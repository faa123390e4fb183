package optimizer

import "fmt"

const maxDiagnostics = 10

// diagnose explains why the Step 2 model is infeasible by checking each
// family of bounds in isolation. The findings are advisory.
func diagnose(p *problem) []string {
	reg := p.reg
	var out []string
	add := func(format string, args ...any) {
		if len(out) < maxDiagnostics {
			out = append(out, fmt.Sprintf(format, args...))
		}
	}

	for i := 0; i < reg.NumSKUs(); i++ {
		need := 0
		for _, lb := range p.lb[i] {
			need += lb
		}
		if p.floorCount[i] > 0 {
			need = max(need, p.floorCount[i]*p.floorUnits)
		}
		if stock := reg.SKU(i).Stock; need > stock {
			add("sku %s: lower bounds need %d units but only %d are in stock; lower min_allocation_multiplier or min_allocation_per_store",
				reg.SKU(i).ID, need, stock)
		}
	}

	totalMin := 0
	for j := 0; j < reg.NumStores(); j++ {
		id := reg.Store(j).ID
		need := 0
		for i := 0; i < reg.NumSKUs(); i++ {
			need += p.lb[i][j]
		}
		if need > p.storeMax[j] {
			add("store %s: per-sku floors need %d units but capacity and allocation_range_max allow %d",
				id, need, p.storeMax[j])
		}
		if avail := amountAvailable(p, j); p.storeMin[j] > avail {
			add("store %s: allocation_range_min requires %d units but at most %d can reach it; lower allocation_range_min",
				id, p.storeMin[j], avail)
		}
		totalMin += p.storeMin[j]
	}
	if stock := reg.TotalStock(); totalMin > stock {
		add("store range minimums total %d units but only %d are in stock; lower allocation_range_min", totalMin, stock)
	}

	if len(out) == 0 {
		out = append(out, "no single bound family is infeasible on its own; the store ranges, "+
			"envelope bounds and floors conflict jointly, relax allocation_range_min or the envelope multipliers")
	}
	return out
}

// amountAvailable is the most stock that could reach store j if every SKU
// gave it as much as its own bounds allow.
func amountAvailable(p *problem, j int) int {
	total := 0
	for i := range p.ub {
		total += min(p.ub[i][j], p.reg.SKU(i).Stock)
	}
	return total
}
