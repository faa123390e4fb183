package optimizer

import (
	"time"

	"github.com/kosarica/allocation-service/internal/solver"
)

// SKU is a stock keeping unit with the stock available for allocation.
type SKU struct {
	ID    string // Usually style, color and size joined with underscores
	Style string // Product style the SKU belongs to (may be empty)
	Color string
	Size  string
	Stock int // Units available, A[i] >= 0
}

// Store is an allocation target.
type Store struct {
	ID       string
	Capacity int     // Maximum units the store can absorb across all SKUs
	QtySum   float64 // Historical demand weight (QTY_SUM)
}

// Matrix is an allocation indexed [sku][store] by registry position.
type Matrix [][]int

// NewMatrix creates a zero allocation.
func NewMatrix(skus, stores int) Matrix {
	m := make(Matrix, skus)
	for i := range m {
		m[i] = make([]int, stores)
	}
	return m
}

// Clone returns a deep copy of the matrix.
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// SKUTotal returns the units of SKU i allocated across all stores.
func (m Matrix) SKUTotal(i int) int {
	total := 0
	for _, q := range m[i] {
		total += q
	}
	return total
}

// StoreTotal returns the units allocated to store j across all SKUs.
func (m Matrix) StoreTotal(j int) int {
	total := 0
	for _, row := range m {
		total += row[j]
	}
	return total
}

// Total returns all allocated units.
func (m Matrix) Total() int {
	total := 0
	for i := range m {
		total += m.SKUTotal(i)
	}
	return total
}

// Coverage holds the Step 1 placement decisions y[i][j].
// Rows are nil for SKUs the coverage decision does not govern.
type Coverage struct {
	// Enforced is false when Step 1 degraded; placement is then
	// unconstrained for every SKU.
	Enforced bool
	Y        [][]bool
}

// Applies reports whether coverage decisions constrain SKU i.
func (c *Coverage) Applies(i int) bool {
	return c != nil && c.Enforced && i < len(c.Y) && c.Y[i] != nil
}

// Covered reports y[i][j]. SKUs not governed by coverage are covered everywhere.
func (c *Coverage) Covered(i, j int) bool {
	if !c.Applies(i) {
		return true
	}
	return c.Y[i][j]
}

// Algorithm names recorded in stage reports.
const (
	AlgorithmSkipped           = "skipped"
	AlgorithmExact             = "exact"
	AlgorithmDegraded          = "degraded"
	AlgorithmGreedyTimeout     = "greedy_timeout_fallback"
	AlgorithmGreedyInfeasible  = "greedy_infeasible_fallback"
	AlgorithmGreedyError       = "greedy_error_fallback"
	AlgorithmGreedyOversize    = "greedy_oversize_fallback"
	AlgorithmGreedyInvariant   = "greedy_invariant_fallback"
	AlgorithmGreedyCircuitOpen = "greedy_circuit_open"
)

// StageReport describes how one optimizer stage finished.
type StageReport struct {
	Status      solver.Status `json:"status,omitempty"`
	Algorithm   string        `json:"algorithm"`
	Degraded    bool          `json:"degraded"`
	Objective   float64       `json:"objective"`
	Variables   int           `json:"variables"`
	Constraints int           `json:"constraints"`
	Nodes       int           `json:"nodes"`
	Duration    time.Duration `json:"-"`
	DurationMs  float64       `json:"duration_ms"`
	Message     string        `json:"message,omitempty"`
	Diagnostics []string      `json:"diagnostics,omitempty"`
}

func (r *StageReport) finish(start time.Time) {
	r.Duration = time.Since(start)
	r.DurationMs = float64(r.Duration) / float64(time.Millisecond)
}
