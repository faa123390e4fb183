package optimizer

import (
	"errors"
	"fmt"
)

// Hard invariants every returned allocation satisfies.
const (
	InvariantStock    = "stock"
	InvariantCapacity = "capacity"
	InvariantTierCap  = "tier_cap"
	InvariantCoverage = "coverage"
	InvariantNonNeg   = "non_negative"
)

// InvariantViolation reports the first hard invariant an allocation breaks.
type InvariantViolation struct {
	Invariant string
	SKU       string
	Store     string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	msg := "invariant " + e.Invariant + " violated"
	if e.SKU != "" {
		msg += " for sku " + e.SKU
	}
	if e.Store != "" {
		msg += " at store " + e.Store
	}
	return msg + ": " + e.Detail
}

func invariantName(err error) string {
	var v *InvariantViolation
	if errors.As(err, &v) {
		return v.Invariant
	}
	return "unknown"
}

// Verify checks stock, store capacity, tier caps and that nothing is
// allocated where Step 1 decided against placement.
func Verify(reg *Registry, tiers *Tiers, cov *Coverage, x Matrix) error {
	if len(x) != reg.NumSKUs() {
		return &InvariantViolation{Invariant: InvariantNonNeg, Detail: fmt.Sprintf("matrix has %d rows, want %d", len(x), reg.NumSKUs())}
	}
	for i := range x {
		sku := reg.SKU(i)
		if len(x[i]) != reg.NumStores() {
			return &InvariantViolation{Invariant: InvariantNonNeg, SKU: sku.ID, Detail: "row has wrong length"}
		}
		for j, q := range x[i] {
			store := reg.Store(j)
			if q < 0 {
				return &InvariantViolation{Invariant: InvariantNonNeg, SKU: sku.ID, Store: store.ID, Detail: fmt.Sprintf("quantity %d", q)}
			}
			if c := tiers.MaxPerSKU(j); c > 0 && q > c {
				return &InvariantViolation{Invariant: InvariantTierCap, SKU: sku.ID, Store: store.ID,
					Detail: fmt.Sprintf("quantity %d exceeds tier %d cap %d", q, tiers.Tier(j), c)}
			}
			if q > 0 && cov.Applies(i) && !cov.Covered(i, j) {
				return &InvariantViolation{Invariant: InvariantCoverage, SKU: sku.ID, Store: store.ID, Detail: "allocated without coverage"}
			}
		}
		if total := x.SKUTotal(i); total > sku.Stock {
			return &InvariantViolation{Invariant: InvariantStock, SKU: sku.ID, Detail: fmt.Sprintf("allocated %d of %d", total, sku.Stock)}
		}
	}
	for j := 0; j < reg.NumStores(); j++ {
		store := reg.Store(j)
		if total := x.StoreTotal(j); total > store.Capacity {
			return &InvariantViolation{Invariant: InvariantCapacity, Store: store.ID, Detail: fmt.Sprintf("allocated %d of capacity %d", total, store.Capacity)}
		}
	}
	return nil
}

func (p *problem) verify(x Matrix) error {
	return Verify(p.reg, p.tiers, p.cov, x)
}
