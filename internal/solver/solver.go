package solver

import (
	"context"
	"errors"
	"math"
	"time"
)

// Status is the outcome of a solve.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusInfeasible Status = "infeasible"
	StatusTimeout    Status = "timeout"
)

// HasSolution reports whether the status carries an assignment.
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Solution is the result of a solve. Values is nil unless the status has a solution.
type Solution struct {
	Status    Status
	Objective float64
	Values    []float64
	Nodes     int
	Elapsed   time.Duration
}

// Value returns the value of variable v.
func (s *Solution) Value(v int) float64 {
	if s == nil || v < 0 || v >= len(s.Values) {
		return 0
	}
	return s.Values[v]
}

// IntValue returns the value of variable v rounded to the nearest integer.
func (s *Solution) IntValue(v int) int {
	return int(math.Round(s.Value(v)))
}

// ErrModelTooLarge is returned when a model exceeds the solver's size limit.
var ErrModelTooLarge = errors.New("solver: model exceeds size limit")

// Solver solves mixed-integer linear programs within a time limit.
//
// Implementations return StatusOptimal or StatusFeasible with an assignment,
// StatusInfeasible when no assignment exists, or StatusTimeout when the limit
// elapsed before any assignment was found. A non-nil error means the solver
// could not run at all.
type Solver interface {
	Solve(ctx context.Context, model *Model, timeLimit time.Duration) (*Solution, error)
}
