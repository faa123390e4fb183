package optimizer

import (
	"fmt"
	"math"
	"sort"
)

// ErrInvalidInput is returned when SKU or store records are malformed.
type ErrInvalidInput struct {
	Field  string
	Reason string
}

func (e ErrInvalidInput) Error() string {
	return "invalid input: " + e.Field + ": " + e.Reason
}

// Registry holds canonical SKU and store lists and the id to index maps.
// It is immutable after construction and safe for concurrent reads.
type Registry struct {
	skus       []SKU
	stores     []Store
	skuIndex   map[string]int
	storeIndex map[string]int
	ratios     []float64
	targets    []int
	colors     []string
	sizes      []string
}

// NewRegistry validates the records and builds the registry.
func NewRegistry(skus []SKU, stores []Store) (*Registry, error) {
	if len(skus) == 0 {
		return nil, ErrInvalidInput{Field: "skus", Reason: "must not be empty"}
	}
	if len(stores) == 0 {
		return nil, ErrInvalidInput{Field: "stores", Reason: "must not be empty"}
	}

	r := &Registry{
		skus:       append([]SKU(nil), skus...),
		stores:     append([]Store(nil), stores...),
		skuIndex:   make(map[string]int, len(skus)),
		storeIndex: make(map[string]int, len(stores)),
	}

	colors := make(map[string]struct{})
	sizes := make(map[string]struct{})
	for i, s := range r.skus {
		field := fmt.Sprintf("skus[%d]", i)
		if s.ID == "" {
			return nil, ErrInvalidInput{Field: field + ".id", Reason: "must not be empty"}
		}
		if _, dup := r.skuIndex[s.ID]; dup {
			return nil, ErrInvalidInput{Field: field + ".id", Reason: "duplicate sku id " + s.ID}
		}
		if s.Stock < 0 {
			return nil, ErrInvalidInput{Field: field + ".stock", Reason: "must be non-negative"}
		}
		r.skuIndex[s.ID] = i
		colors[s.Color] = struct{}{}
		sizes[s.Size] = struct{}{}
	}

	total := 0.0
	for j, st := range r.stores {
		field := fmt.Sprintf("stores[%d]", j)
		if st.ID == "" {
			return nil, ErrInvalidInput{Field: field + ".id", Reason: "must not be empty"}
		}
		if _, dup := r.storeIndex[st.ID]; dup {
			return nil, ErrInvalidInput{Field: field + ".id", Reason: "duplicate store id " + st.ID}
		}
		if st.Capacity < 0 {
			return nil, ErrInvalidInput{Field: field + ".capacity", Reason: "must be non-negative"}
		}
		if st.QtySum < 0 || math.IsNaN(st.QtySum) || math.IsInf(st.QtySum, 0) {
			return nil, ErrInvalidInput{Field: field + ".qty_sum", Reason: "must be a finite non-negative number"}
		}
		r.storeIndex[st.ID] = j
		total += st.QtySum
		if st.Capacity > 0 {
			r.targets = append(r.targets, j)
		}
	}

	r.ratios = make([]float64, len(r.stores))
	for j, st := range r.stores {
		if total > 0 {
			r.ratios[j] = st.QtySum / total
		} else {
			r.ratios[j] = 1 / float64(len(r.stores))
		}
	}

	r.colors = sortedKeys(colors)
	r.sizes = sortedKeys(sizes)
	return r, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NumSKUs returns the number of SKUs.
func (r *Registry) NumSKUs() int { return len(r.skus) }

// NumStores returns the number of stores.
func (r *Registry) NumStores() int { return len(r.stores) }

// SKU returns the SKU at index i.
func (r *Registry) SKU(i int) SKU { return r.skus[i] }

// Store returns the store at index j.
func (r *Registry) Store(j int) Store { return r.stores[j] }

// SKUs returns a copy of the SKU list in registry order.
func (r *Registry) SKUs() []SKU { return append([]SKU(nil), r.skus...) }

// Stores returns a copy of the store list in registry order.
func (r *Registry) Stores() []Store { return append([]Store(nil), r.stores...) }

// SKUIndex looks up a SKU by id.
func (r *Registry) SKUIndex(id string) (int, bool) {
	i, ok := r.skuIndex[id]
	return i, ok
}

// StoreIndex looks up a store by id.
func (r *Registry) StoreIndex(id string) (int, bool) {
	j, ok := r.storeIndex[id]
	return j, ok
}

// StoreRatio is QTY_SUM[j] / sum(QTY_SUM), or 1/N when every store has zero demand.
func (r *Registry) StoreRatio(j int) float64 { return r.ratios[j] }

// TargetStores returns the indices of stores with positive capacity.
func (r *Registry) TargetStores() []int { return append([]int(nil), r.targets...) }

// NumTargetStores returns the number of stores with positive capacity.
func (r *Registry) NumTargetStores() int { return len(r.targets) }

// Colors returns the distinct SKU colors, sorted.
func (r *Registry) Colors() []string { return append([]string(nil), r.colors...) }

// Sizes returns the distinct SKU sizes, sorted.
func (r *Registry) Sizes() []string { return append([]string(nil), r.sizes...) }

// TotalStock returns the sum of A over all SKUs.
func (r *Registry) TotalStock() int {
	total := 0
	for _, s := range r.skus {
		total += s.Stock
	}
	return total
}
