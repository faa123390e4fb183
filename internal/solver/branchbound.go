package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Config holds the limits of the branch-and-bound solver.
type Config struct {
	// MaxVariables rejects larger models with ErrModelTooLarge (0 = no limit).
	MaxVariables int `mapstructure:"max_variables"`

	// MaxCells rejects models whose dense relaxation matrix would hold more
	// entries than this with ErrModelTooLarge (0 = no limit).
	MaxCells int `mapstructure:"max_cells"`

	// MaxNodes stops the search after this many nodes (0 = no limit).
	MaxNodes int `mapstructure:"max_nodes"`

	// RelativeGap ends the search as optimal once no open node can improve
	// the incumbent by more than this fraction of its objective.
	RelativeGap float64 `mapstructure:"relative_gap"`

	// Tolerance is passed to the simplex and used for feasibility checks.
	Tolerance float64 `mapstructure:"tolerance"`

	// IntegralityTolerance is how far from an integer a value may be and
	// still count as integral.
	IntegralityTolerance float64 `mapstructure:"integrality_tolerance"`
}

// DefaultConfig returns the default solver limits.
func DefaultConfig() Config {
	return Config{
		MaxVariables:         1500,
		MaxCells:             6_000_000,
		MaxNodes:             20000,
		RelativeGap:          1e-4,
		Tolerance:            1e-9,
		IntegralityTolerance: 1e-6,
	}
}

var errNodeInfeasible = errors.New("solver: relaxation infeasible")

type simplexFunc func(c []float64, A mat.Matrix, b []float64, tol float64, initialBasic []int) (float64, []float64, error)

// BranchAndBound is a depth-first branch-and-bound solver over the LP
// relaxation solved by gonum's simplex. A Model.Start that completes to a
// feasible assignment becomes the first incumbent, so a time-limited solve
// returns at least that assignment.
type BranchAndBound struct {
	cfg     Config
	logger  zerolog.Logger
	simplex simplexFunc
}

// NewBranchAndBound creates a branch-and-bound solver.
func NewBranchAndBound(cfg Config) *BranchAndBound {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultConfig().Tolerance
	}
	if cfg.IntegralityTolerance <= 0 {
		cfg.IntegralityTolerance = DefaultConfig().IntegralityTolerance
	}
	if cfg.RelativeGap < 0 {
		cfg.RelativeGap = 0
	}
	return &BranchAndBound{
		cfg:     cfg,
		logger:  log.With().Str("component", "branch_and_bound").Logger(),
		simplex: lp.Simplex,
	}
}

type bbNode struct {
	lower []float64
	upper []float64
	// bound is the parent's relaxation score, +Inf at the root.
	bound float64
}

func (n bbNode) clone() bbNode {
	lower := make([]float64, len(n.lower))
	upper := make([]float64, len(n.upper))
	copy(lower, n.lower)
	copy(upper, n.upper)
	return bbNode{lower: lower, upper: upper, bound: n.bound}
}

// Solve implements Solver.
func (b *BranchAndBound) Solve(ctx context.Context, model *Model, timeLimit time.Duration) (*Solution, error) {
	start := time.Now()
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if b.cfg.MaxVariables > 0 && model.NumVariables() > b.cfg.MaxVariables {
		return nil, fmt.Errorf("%w: %d variables (limit %d)", ErrModelTooLarge, model.NumVariables(), b.cfg.MaxVariables)
	}
	if cells := denseCells(model); b.cfg.MaxCells > 0 && cells > b.cfg.MaxCells {
		return nil, fmt.Errorf("%w: %d matrix cells (limit %d)", ErrModelTooLarge, cells, b.cfg.MaxCells)
	}

	if timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeLimit)
		defer cancel()
	}

	if model.NumVariables() == 0 {
		sol := &Solution{Status: StatusInfeasible, Elapsed: time.Since(start)}
		if model.Check(nil, b.cfg.Tolerance) == nil {
			sol.Status = StatusOptimal
			sol.Values = []float64{}
		}
		return sol, nil
	}

	// score is the objective in maximization form, so larger is always better.
	sign := 1.0
	if !model.Maximize {
		sign = -1.0
	}

	root := bbNode{
		lower: make([]float64, model.NumVariables()),
		upper: make([]float64, model.NumVariables()),
		bound: math.Inf(1),
	}
	for i, v := range model.Variables {
		root.lower[i] = v.Lower
		root.upper[i] = v.Upper
		if v.Kind != Continuous {
			root.lower[i] = math.Ceil(v.Lower - b.cfg.IntegralityTolerance)
			root.upper[i] = math.Floor(v.Upper + b.cfg.IntegralityTolerance)
		}
	}

	var (
		best      []float64
		bestScore = math.Inf(-1)
		nodes     int
		exhausted = true
		warm      bool
		stack     = []bbNode{root}
	)

	accept := func(values []float64) {
		score := sign * model.Evaluate(values)
		if best == nil || score > bestScore+b.cfg.Tolerance {
			best = values
			bestScore = score
		}
	}

	if len(model.Start) > 0 {
		if values, ok := b.startAssignment(ctx, model, root); ok {
			accept(values)
			warm = true
		}
	}

search:
	for len(stack) > 0 {
		if ctx.Err() != nil {
			exhausted = false
			break
		}
		if b.cfg.MaxNodes > 0 && nodes >= b.cfg.MaxNodes {
			exhausted = false
			break
		}
		if best != nil && openBound(stack) <= b.pruneLimit(bestScore) {
			break
		}

		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if best != nil && node.bound <= b.pruneLimit(bestScore) {
			continue
		}
		nodes++

		bound, x, err := b.solveRelaxation(ctx, model, node)
		switch {
		case errors.Is(err, errNodeInfeasible):
			continue
		case ctx.Err() != nil:
			exhausted = false
			break search
		case err != nil && nodes == 1 && best == nil:
			return nil, fmt.Errorf("root relaxation failed: %w", err)
		case err != nil:
			// An unsolved subtree means the search can no longer prove optimality.
			b.logger.Debug().Err(err).Int("node", nodes).Msg("Relaxation failed, pruning node")
			exhausted = false
			continue
		}

		score := sign * bound
		if best != nil && score <= b.pruneLimit(bestScore) {
			continue
		}

		branchVar := b.mostFractional(model, x)
		if branchVar < 0 {
			accept(b.roundIntegers(model, x))
			continue
		}

		if rounded := b.roundIntegers(model, x); model.Check(rounded, b.cfg.Tolerance) == nil {
			accept(rounded)
		}

		v := x[branchVar]
		down := node.clone()
		down.upper[branchVar] = math.Floor(v)
		down.bound = score
		up := node.clone()
		up.lower[branchVar] = math.Ceil(v)
		up.bound = score

		// The side nearer to the relaxed value is explored first.
		if v-math.Floor(v) >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	sol := &Solution{Nodes: nodes, Elapsed: time.Since(start)}
	switch {
	case best != nil && exhausted:
		sol.Status = StatusOptimal
	case best != nil:
		sol.Status = StatusFeasible
	case exhausted:
		sol.Status = StatusInfeasible
	default:
		sol.Status = StatusTimeout
	}
	if best != nil {
		sol.Values = best
		sol.Objective = model.Evaluate(best)
	}

	b.logger.Debug().
		Str("model", model.Name).
		Str("status", string(sol.Status)).
		Int("variables", model.NumVariables()).
		Int("constraints", len(model.Constraints)).
		Int("nodes", nodes).
		Bool("warm_start", warm).
		Dur("elapsed", sol.Elapsed).
		Msg("Branch and bound finished")

	return sol, nil
}

// pruneLimit is the score a node must beat to be worth exploring.
func (b *BranchAndBound) pruneLimit(bestScore float64) float64 {
	return bestScore + max(b.cfg.Tolerance, b.cfg.RelativeGap*max(1, math.Abs(bestScore)))
}

func openBound(stack []bbNode) float64 {
	bound := math.Inf(-1)
	for _, n := range stack {
		bound = max(bound, n.bound)
	}
	return bound
}

// startAssignment fixes the variables named in model.Start and solves the
// relaxation over the rest. It reports false when the start is out of
// bounds or does not complete to a feasible assignment.
func (b *BranchAndBound) startAssignment(ctx context.Context, model *Model, root bbNode) ([]float64, bool) {
	node := root.clone()
	for v, x := range model.Start {
		if model.Variables[v].Kind != Continuous {
			x = math.Round(x)
		}
		if x < node.lower[v]-b.cfg.Tolerance || x > node.upper[v]+b.cfg.Tolerance {
			return nil, false
		}
		x = min(max(x, node.lower[v]), node.upper[v])
		node.lower[v], node.upper[v] = x, x
	}
	_, x, err := b.solveRelaxation(ctx, model, node)
	if err != nil {
		return nil, false
	}
	values := b.roundIntegers(model, x)
	if err := model.Check(values, b.cfg.Tolerance); err != nil {
		b.logger.Debug().Err(err).Str("model", model.Name).Msg("Start assignment rejected")
		return nil, false
	}
	return values, true
}

// solveRelaxation runs relax on its own goroutine so that ctx can end the
// wait. A dense simplex call cannot be interrupted; an abandoned call
// finishes in the background and its result is dropped.
func (b *BranchAndBound) solveRelaxation(ctx context.Context, model *Model, node bbNode) (float64, []float64, error) {
	type result struct {
		value float64
		x     []float64
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("simplex: %v", r)}
			}
		}()
		value, x, err := b.relax(model, node)
		done <- result{value: value, x: x, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.x, r.err
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

// denseCells is the size of the root relaxation matrix built by relax.
func denseCells(model *Model) int {
	n := model.NumVariables()
	slacks := n
	for _, c := range model.Constraints {
		if c.Sense != Equal {
			slacks++
		}
	}
	return (len(model.Constraints) + n) * (n + slacks)
}

// relax solves the LP relaxation of model under the node's bounds and returns
// its objective value (in the model's own sense) and the relaxed assignment.
//
// Variables whose bounds coincide are substituted as constants. The others
// are shifted to x' = x - lower so that x' >= 0, every bound and inequality
// gets its own slack column, and the result is passed to the simplex in
// standard form: minimize c'x subject to Ax = b, x >= 0.
func (b *BranchAndBound) relax(model *Model, node bbNode) (float64, []float64, error) {
	n := model.NumVariables()
	col := make([]int, n)
	free := 0
	for i := 0; i < n; i++ {
		if node.lower[i] > node.upper[i]+b.cfg.Tolerance {
			return 0, nil, errNodeInfeasible
		}
		if node.upper[i]-node.lower[i] <= b.cfg.Tolerance {
			col[i] = -1
			continue
		}
		col[i] = free
		free++
	}

	type row struct {
		coefs map[int]float64 // by column
		slack float64         // +1 for <=, -1 for >=, 0 for =
		rhs   float64
	}
	rows := make([]row, 0, len(model.Constraints)+free)

	for _, c := range model.Constraints {
		coefs := make(map[int]float64, len(c.Terms))
		rhs := c.RHS
		for _, t := range c.Terms {
			rhs -= t.Coef * node.lower[t.Var]
			if k := col[t.Var]; k >= 0 {
				coefs[k] += t.Coef
			}
		}
		for k, v := range coefs {
			if v == 0 {
				delete(coefs, k)
			}
		}
		if len(coefs) == 0 {
			if !satisfied(0, c.Sense, rhs, b.cfg.Tolerance) {
				return 0, nil, errNodeInfeasible
			}
			continue
		}
		r := row{coefs: coefs, rhs: rhs}
		switch c.Sense {
		case LessEqual:
			r.slack = 1
		case GreaterEqual:
			r.slack = -1
		}
		rows = append(rows, r)
	}
	for i := 0; i < n; i++ {
		if col[i] < 0 {
			continue
		}
		rows = append(rows, row{
			coefs: map[int]float64{col[i]: 1},
			slack: 1,
			rhs:   node.upper[i] - node.lower[i],
		})
	}

	cost := make([]float64, free)
	offset := 0.0
	for _, t := range model.Objective {
		offset += t.Coef * node.lower[t.Var]
		if k := col[t.Var]; k >= 0 {
			if model.Maximize {
				cost[k] -= t.Coef
			} else {
				cost[k] += t.Coef
			}
		}
	}

	x := make([]float64, n)
	copy(x, node.lower)
	if free == 0 {
		return offset, x, nil
	}

	slackCount := 0
	for _, r := range rows {
		if r.slack != 0 {
			slackCount++
		}
	}
	cols := free + slackCount
	A := mat.NewDense(len(rows), cols, nil)
	rhs := make([]float64, len(rows))
	slackCol := free
	for i, r := range rows {
		if r.rhs < 0 {
			for k, v := range r.coefs {
				r.coefs[k] = -v
			}
			r.slack, r.rhs = -r.slack, -r.rhs
		}
		for k, v := range r.coefs {
			A.Set(i, k, v)
		}
		if r.slack != 0 {
			A.Set(i, slackCol, r.slack)
			slackCol++
		}
		rhs[i] = r.rhs
	}
	c := make([]float64, cols)
	copy(c, cost)

	optF, optX, err := b.simplex(c, A, rhs, b.cfg.Tolerance, nil)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			return 0, nil, errNodeInfeasible
		}
		return 0, nil, err
	}

	for i := 0; i < n; i++ {
		if k := col[i]; k >= 0 {
			x[i] += optX[k]
		}
	}
	value := optF
	if model.Maximize {
		value = -optF
	}
	return value + offset, x, nil
}

// mostFractional returns the integer variable farthest from an integral
// value, or -1 when all integer variables are integral. Ties keep the lowest index.
func (b *BranchAndBound) mostFractional(model *Model, x []float64) int {
	bestVar := -1
	bestDist := b.cfg.IntegralityTolerance
	for i, v := range model.Variables {
		if v.Kind == Continuous {
			continue
		}
		dist := math.Abs(x[i] - math.Round(x[i]))
		if dist > bestDist {
			bestVar = i
			bestDist = dist
		}
	}
	return bestVar
}

func (b *BranchAndBound) roundIntegers(model *Model, x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range model.Variables {
		out[i] = x[i]
		if v.Kind != Continuous {
			out[i] = math.Round(x[i])
		}
		if out[i] < v.Lower {
			out[i] = v.Lower
		}
		if out[i] > v.Upper {
			out[i] = v.Upper
		}
	}
	return out
}
