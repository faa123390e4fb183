// Package solver defines the mixed-integer programming capability used by the
// allocation optimizer, together with a branch-and-bound implementation.
//
// Callers build a Model (bounded variables, a linear objective and linear
// constraints) and hand it to a Solver with a time limit. The Solver reports
// one of four statuses and, when it found one, an assignment.
package solver

import (
	"errors"
	"fmt"
	"math"
)

// VarKind is the domain of a model variable.
type VarKind int

const (
	Continuous VarKind = iota
	Integer
	Binary
)

// String returns the string representation of the variable kind.
func (k VarKind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Sense is the comparison of a linear constraint.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

// Variable is a bounded decision variable. Bounds must be finite.
type Variable struct {
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64
}

// Term is a coefficient applied to the variable at index Var.
type Term struct {
	Var  int
	Coef float64
}

// Constraint is sum(Terms) <Sense> RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is a mixed-integer linear program.
type Model struct {
	Name        string
	Variables   []Variable
	Objective   []Term
	Maximize    bool
	Constraints []Constraint

	// Start holds known values for some variables, typically every integer
	// one. A solver may complete and use it as the first incumbent.
	Start map[int]float64
}

// ErrInvalidModel is returned when a model is malformed.
var ErrInvalidModel = errors.New("solver: invalid model")

// NewModel creates an empty model.
func NewModel(name string, maximize bool) *Model {
	return &Model{Name: name, Maximize: maximize}
}

// AddVariable appends a variable and returns its index.
// Binary variables are always bounded to [0, 1].
func (m *Model) AddVariable(name string, kind VarKind, lower, upper float64) int {
	if kind == Binary {
		lower, upper = 0, 1
	}
	m.Variables = append(m.Variables, Variable{Name: name, Kind: kind, Lower: lower, Upper: upper})
	return len(m.Variables) - 1
}

// AddBinary adds a 0/1 variable.
func (m *Model) AddBinary(name string) int {
	return m.AddVariable(name, Binary, 0, 1)
}

// AddInteger adds an integer variable bounded to [lower, upper].
func (m *Model) AddInteger(name string, lower, upper int) int {
	return m.AddVariable(name, Integer, float64(lower), float64(upper))
}

// AddContinuous adds a real variable bounded to [lower, upper].
func (m *Model) AddContinuous(name string, lower, upper float64) int {
	return m.AddVariable(name, Continuous, lower, upper)
}

// AddObjective adds coef*x[v] to the objective.
func (m *Model) AddObjective(v int, coef float64) {
	if coef == 0 {
		return
	}
	m.Objective = append(m.Objective, Term{Var: v, Coef: coef})
}

// AddConstraint appends a linear constraint.
func (m *Model) AddConstraint(name string, terms []Term, sense Sense, rhs float64) {
	m.Constraints = append(m.Constraints, Constraint{Name: name, Terms: terms, Sense: sense, RHS: rhs})
}

// SetStart records value as the starting value of variable v.
func (m *Model) SetStart(v int, value float64) {
	if m.Start == nil {
		m.Start = make(map[int]float64)
	}
	m.Start[v] = value
}

// NumVariables returns the number of variables in the model.
func (m *Model) NumVariables() int {
	return len(m.Variables)
}

// Validate checks bounds and term indices.
func (m *Model) Validate() error {
	for i, v := range m.Variables {
		if math.IsInf(v.Lower, 0) || math.IsInf(v.Upper, 0) || math.IsNaN(v.Lower) || math.IsNaN(v.Upper) {
			return fmt.Errorf("%w: variable %s has non-finite bounds", ErrInvalidModel, v.Name)
		}
		if v.Lower > v.Upper {
			return fmt.Errorf("%w: variable %d (%s) has lower bound %g above upper bound %g",
				ErrInvalidModel, i, v.Name, v.Lower, v.Upper)
		}
	}
	for _, t := range m.Objective {
		if t.Var < 0 || t.Var >= len(m.Variables) {
			return fmt.Errorf("%w: objective references variable %d", ErrInvalidModel, t.Var)
		}
	}
	for _, c := range m.Constraints {
		for _, t := range c.Terms {
			if t.Var < 0 || t.Var >= len(m.Variables) {
				return fmt.Errorf("%w: constraint %s references variable %d", ErrInvalidModel, c.Name, t.Var)
			}
		}
	}
	for v, x := range m.Start {
		if v < 0 || v >= len(m.Variables) || math.IsNaN(x) {
			return fmt.Errorf("%w: start value for variable %d", ErrInvalidModel, v)
		}
	}
	return nil
}

// Evaluate returns the objective value of an assignment.
func (m *Model) Evaluate(values []float64) float64 {
	total := 0.0
	for _, t := range m.Objective {
		total += t.Coef * values[t.Var]
	}
	return total
}

// Check reports the first bound, integrality or constraint violation of an
// assignment, or nil when it is feasible within tol.
func (m *Model) Check(values []float64, tol float64) error {
	if len(values) != len(m.Variables) {
		return fmt.Errorf("assignment has %d values, model has %d variables", len(values), len(m.Variables))
	}
	for i, v := range m.Variables {
		x := values[i]
		if x < v.Lower-tol || x > v.Upper+tol {
			return fmt.Errorf("variable %s = %g outside [%g, %g]", v.Name, x, v.Lower, v.Upper)
		}
		if v.Kind != Continuous && math.Abs(x-math.Round(x)) > tol {
			return fmt.Errorf("variable %s = %g is not integral", v.Name, x)
		}
	}
	for _, c := range m.Constraints {
		lhs := 0.0
		for _, t := range c.Terms {
			lhs += t.Coef * values[t.Var]
		}
		if !satisfied(lhs, c.Sense, c.RHS, tol) {
			return fmt.Errorf("constraint %s violated: lhs %g, rhs %g", c.Name, lhs, c.RHS)
		}
	}
	return nil
}

func satisfied(lhs float64, sense Sense, rhs, tol float64) bool {
	switch sense {
	case LessEqual:
		return lhs <= rhs+tol
	case GreaterEqual:
		return lhs >= rhs-tol
	default:
		return math.Abs(lhs-rhs) <= tol
	}
}
