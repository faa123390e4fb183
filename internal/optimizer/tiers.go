package optimizer

import (
	"math"
	"sort"
)

// Store ranking keys for tier assignment.
const (
	RankByQtySum   = "qty_sum"
	RankByCapacity = "capacity"
)

// TierConfig controls how stores are split into three tiers.
type TierConfig struct {
	Ratios    [3]float64 // Share of stores per tier, summing to 1
	MaxPerSKU [3]int     // Per-SKU cap per store by tier, 0 means uncapped
	RankBy    string
}

// Tiers is the tier assignment of every store.
type Tiers struct {
	tier    []int
	caps    [3]int
	members [3][]int
}

// ceilTol rounds up, ignoring floating point noise such as 0.3*10 = 3.0000000000000004.
func ceilTol(v float64) int {
	return int(math.Ceil(v - 1e-9))
}

// AssignTiers ranks stores by the configured key descending (ties by id) and
// takes the first ceil(r1*N) as tier 1, the next ceil(r2*N) as tier 2, and
// the rest as tier 3.
func AssignTiers(reg *Registry, cfg TierConfig) *Tiers {
	n := reg.NumStores()
	order := make([]int, n)
	for j := range order {
		order[j] = j
	}
	key := func(j int) float64 {
		if cfg.RankBy == RankByCapacity {
			return float64(reg.Store(j).Capacity)
		}
		return reg.Store(j).QtySum
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := key(order[a]), key(order[b])
		if ka != kb {
			return ka > kb
		}
		return reg.Store(order[a]).ID < reg.Store(order[b]).ID
	})

	n1 := min(max(ceilTol(cfg.Ratios[0]*float64(n)), 0), n)
	n2 := min(max(ceilTol(cfg.Ratios[1]*float64(n)), 0), n-n1)

	t := &Tiers{tier: make([]int, n), caps: cfg.MaxPerSKU}
	for rank, j := range order {
		tier := 3
		switch {
		case rank < n1:
			tier = 1
		case rank < n1+n2:
			tier = 2
		}
		t.tier[j] = tier
		t.members[tier-1] = append(t.members[tier-1], j)
	}
	return t
}

// Tier returns the tier (1, 2 or 3) of store j.
func (t *Tiers) Tier(j int) int { return t.tier[j] }

// MaxPerSKU returns the per-SKU cap at store j, 0 when uncapped.
func (t *Tiers) MaxPerSKU(j int) int { return t.caps[t.tier[j]-1] }

// Members returns the store indices in tier, ordered by rank.
func (t *Tiers) Members(tier int) []int { return append([]int(nil), t.members[tier-1]...) }

// Counts returns the number of stores in each tier.
func (t *Tiers) Counts() [3]int {
	return [3]int{len(t.members[0]), len(t.members[1]), len(t.members[2])}
}
