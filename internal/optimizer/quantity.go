package optimizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kosarica/allocation-service/internal/solver"
)

// ErrAllocationFailed is returned when neither the exact model nor the
// greedy fallback produced an allocation that satisfies the hard invariants.
var ErrAllocationFailed = errors.New("allocation failed")

// QuantityAllocator runs Step 2: integer quantities per (SKU, store).
type QuantityAllocator struct {
	solver  solver.Solver
	metrics *MetricsRecorder
	logger  zerolog.Logger
}

// NewQuantityAllocator creates a Step 2 allocator.
func NewQuantityAllocator(s solver.Solver, metrics *MetricsRecorder) *QuantityAllocator {
	return &QuantityAllocator{
		solver:  s,
		metrics: metrics,
		logger:  log.With().Str("component", "quantity_allocator").Logger(),
	}
}

type quantityModel struct {
	model *solver.Model
	x     [][]int       // variable index per (sku, store), -1 when ub is 0
	floor []map[int]int // floor indicator per sku, keyed by store
}

func buildQuantityModel(p *problem) *quantityModel {
	reg, sc := p.reg, p.sc
	nSKU, nStore := reg.NumSKUs(), reg.NumStores()
	qm := &quantityModel{
		model: solver.NewModel("step2_quantity", true),
		x:     make([][]int, nSKU),
		floor: make([]map[int]int, nSKU),
	}
	m := qm.model

	for i := 0; i < nSKU; i++ {
		qm.x[i] = make([]int, nStore)
		for j := 0; j < nStore; j++ {
			qm.x[i][j] = -1
			if p.ub[i][j] <= 0 {
				continue
			}
			v := m.AddInteger(fmt.Sprintf("x[%s,%s]", reg.SKU(i).ID, reg.Store(j).ID), p.lb[i][j], p.ub[i][j])
			m.AddObjective(v, 1+reg.StoreRatio(j))
			qm.x[i][j] = v
		}
	}

	// Stock per SKU.
	for i := 0; i < nSKU; i++ {
		row := qm.row(i, 1)
		reachable := 0
		for j := 0; j < nStore; j++ {
			reachable += p.ub[i][j]
		}
		if len(row) > 0 && reachable > reg.SKU(i).Stock {
			m.AddConstraint("stock["+reg.SKU(i).ID+"]", row, solver.LessEqual, float64(reg.SKU(i).Stock))
		}
	}

	// Capacity and store ranges.
	for j := 0; j < nStore; j++ {
		col := qm.col(j, 1)
		if len(col) == 0 {
			continue
		}
		reachable := 0
		for i := 0; i < nSKU; i++ {
			reachable += p.ub[i][j]
		}
		id := reg.Store(j).ID
		if reachable > p.storeMax[j] {
			m.AddConstraint("capacity["+id+"]", col, solver.LessEqual, float64(p.storeMax[j]))
		}
		if p.storeMin[j] > 0 {
			m.AddConstraint("range_min["+id+"]", col, solver.GreaterEqual, float64(p.storeMin[j]))
		}
	}

	// Minimum store floors: at least floorCount[i] stores receive floorUnits.
	for i := 0; i < nSKU; i++ {
		if p.floorCount[i] == 0 {
			continue
		}
		var picks []solver.Term
		qm.floor[i] = make(map[int]int, len(p.candidates[i]))
		for _, j := range p.candidates[i] {
			pv := m.AddBinary(fmt.Sprintf("floor[%s,%s]", reg.SKU(i).ID, reg.Store(j).ID))
			qm.floor[i][j] = pv
			m.AddConstraint(fmt.Sprintf("floor_link[%s,%s]", reg.SKU(i).ID, reg.Store(j).ID),
				[]solver.Term{{Var: qm.x[i][j], Coef: 1}, {Var: pv, Coef: -float64(p.floorUnits)}},
				solver.GreaterEqual, 0)
			picks = append(picks, solver.Term{Var: pv, Coef: 1})
		}
		m.AddConstraint("floor_count["+reg.SKU(i).ID+"]", picks, solver.GreaterEqual, float64(p.floorCount[i]))
	}

	if sc.CoverageWeight > 0 {
		for i := 0; i < nSKU; i++ {
			for j := 0; j < nStore; j++ {
				// A pair with a positive lower bound is always covered.
				if qm.x[i][j] < 0 || p.lb[i][j] >= 1 {
					continue
				}
				// c <= x and c <= 1 make c the 0/1 cover indicator of an integral x.
				c := m.AddContinuous(fmt.Sprintf("cover[%s,%s]", reg.SKU(i).ID, reg.Store(j).ID), 0, 1)
				m.AddObjective(c, sc.CoverageWeight)
				m.AddConstraint(fmt.Sprintf("cover_link[%s,%s]", reg.SKU(i).ID, reg.Store(j).ID),
					[]solver.Term{{Var: c, Coef: 1}, {Var: qm.x[i][j], Coef: -1}}, solver.LessEqual, 0)
			}
		}
	}

	if sc.AllocationPenalty > 0 {
		for j := 0; j < nStore; j++ {
			e := p.env.StoreExpected(j)
			col := qm.col(j, 1)
			if e <= 0 || len(col) == 0 {
				continue
			}
			reachable := 0.0
			for i := 0; i < nSKU; i++ {
				reachable += float64(p.ub[i][j])
			}
			id := reg.Store(j).ID
			u := m.AddContinuous("deviation["+id+"]", 0, max(e, reachable))
			m.AddObjective(u, -sc.AllocationPenalty)
			m.AddConstraint("deviation_pos["+id+"]", append([]solver.Term{{Var: u, Coef: 1}}, negate(col)...), solver.GreaterEqual, -e)
			m.AddConstraint("deviation_neg["+id+"]", append([]solver.Term{{Var: u, Coef: 1}}, col...), solver.GreaterEqual, e)
		}
	}

	if sc.BalancePenalty > 0 {
		addFillBalance(qm, p)
	}

	if sc.SKUDistributionPenalty > 0 {
		for i := 0; i < nSKU; i++ {
			stock := float64(reg.SKU(i).Stock)
			if stock <= 0 {
				continue
			}
			z := -1
			for j := 0; j < nStore; j++ {
				if qm.x[i][j] < 0 || float64(p.ub[i][j]) <= p.env.Expected(i, j) {
					continue
				}
				if z < 0 {
					z = m.AddContinuous("excess["+reg.SKU(i).ID+"]", 0, 1)
					m.AddObjective(z, -sc.SKUDistributionPenalty)
				}
				m.AddConstraint(fmt.Sprintf("excess_link[%s,%s]", reg.SKU(i).ID, reg.Store(j).ID),
					[]solver.Term{{Var: z, Coef: 1}, {Var: qm.x[i][j], Coef: -1 / stock}},
					solver.GreaterEqual, -p.env.Expected(i, j)/stock)
			}
		}
	}
	return qm
}

// addFillBalance penalizes the L1 deviation of each store's fill ratio
// T[j]/E[j] from the mean fill ratio of its tier.
func addFillBalance(qm *quantityModel, p *problem) {
	m := qm.model
	reg := p.reg
	for tier := 1; tier <= 3; tier++ {
		var stores []int
		for _, j := range p.tiers.Members(tier) {
			if p.env.StoreExpected(j) > 0 && len(qm.col(j, 1)) > 0 {
				stores = append(stores, j)
			}
		}
		if len(stores) < 2 {
			continue
		}

		mean := make(map[int]float64)
		maxRatio := 0.0
		for _, k := range stores {
			e := p.env.StoreExpected(k)
			for _, t := range qm.col(k, 1/e) {
				mean[t.Var] += t.Coef / float64(len(stores))
			}
			reach := 0.0
			for i := range p.ub {
				reach += float64(p.ub[i][k]) / e
			}
			maxRatio = max(maxRatio, reach)
		}

		for _, j := range stores {
			id := reg.Store(j).ID
			coefs := make(map[int]float64, len(mean))
			for v, c := range mean {
				coefs[v] = -c
			}
			for _, t := range qm.col(j, 1/p.env.StoreExpected(j)) {
				coefs[t.Var] += t.Coef
			}
			v := m.AddContinuous("fill_dev["+id+"]", 0, maxRatio)
			m.AddObjective(v, -p.sc.BalancePenalty)

			pos := []solver.Term{{Var: v, Coef: 1}}
			neg := []solver.Term{{Var: v, Coef: 1}}
			for _, k := range sortedVarKeys(coefs) {
				pos = append(pos, solver.Term{Var: k, Coef: -coefs[k]})
				neg = append(neg, solver.Term{Var: k, Coef: coefs[k]})
			}
			m.AddConstraint("fill_pos["+id+"]", pos, solver.GreaterEqual, 0)
			m.AddConstraint("fill_neg["+id+"]", neg, solver.GreaterEqual, 0)
		}
	}
}

// setStart hints the assignment x to the solver, with each floor indicator
// set where x reaches the floor.
func (qm *quantityModel) setStart(p *problem, x Matrix) {
	for i := range qm.x {
		for j, v := range qm.x[i] {
			if v >= 0 {
				qm.model.SetStart(v, float64(x[i][j]))
			}
		}
		for j, pv := range qm.floor[i] {
			if x[i][j] >= p.floorUnits {
				qm.model.SetStart(pv, 1)
			} else {
				qm.model.SetStart(pv, 0)
			}
		}
	}
}

func (qm *quantityModel) row(i int, coef float64) []solver.Term {
	var terms []solver.Term
	for _, v := range qm.x[i] {
		if v >= 0 {
			terms = append(terms, solver.Term{Var: v, Coef: coef})
		}
	}
	return terms
}

func (qm *quantityModel) col(j int, coef float64) []solver.Term {
	var terms []solver.Term
	for i := range qm.x {
		if v := qm.x[i][j]; v >= 0 {
			terms = append(terms, solver.Term{Var: v, Coef: coef})
		}
	}
	return terms
}

func negate(terms []solver.Term) []solver.Term {
	out := make([]solver.Term, len(terms))
	for k, t := range terms {
		out[k] = solver.Term{Var: t.Var, Coef: -t.Coef}
	}
	return out
}

func sortedVarKeys(m map[int]float64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func (qm *quantityModel) extract(p *problem, sol *solver.Solution) Matrix {
	x := NewMatrix(p.reg.NumSKUs(), p.reg.NumStores())
	for i := range qm.x {
		for j, v := range qm.x[i] {
			if v >= 0 {
				x[i][j] = sol.IntValue(v)
			}
		}
	}
	return x
}

// Allocate solves Step 2. The exact model is tried first unless skipExact is
// set; any timeout, infeasibility, solver error or invariant violation falls
// back to the deterministic greedy allocator.
func (a *QuantityAllocator) Allocate(ctx context.Context, p *problem, skipExact bool) (_ Matrix, report StageReport, _ error) {
	start := time.Now()
	defer func() {
		report.finish(start)
		a.metrics.RecordStage(StageQuantity, report.Algorithm, report.Duration)
	}()

	// The greedy allocation is both the warm start and the fallback.
	fallback := greedyAllocate(p)

	if skipExact {
		report.Algorithm = AlgorithmGreedyCircuitOpen
		report.Message = "exact solver circuit open"
		x, err := a.greedy(p, fallback, &report)
		return x, report, err
	}

	qm := buildQuantityModel(p)
	qm.setStart(p, fallback)
	report.Variables = qm.model.NumVariables()
	report.Constraints = len(qm.model.Constraints)
	a.metrics.RecordModelSize(StageQuantity, report.Variables)

	sol, err := a.solver.Solve(ctx, qm.model, p.sc.Step2Timeout)
	switch {
	case errors.Is(err, solver.ErrModelTooLarge):
		report.Algorithm = AlgorithmGreedyOversize
		report.Message = err.Error()
	case err != nil:
		report.Algorithm = AlgorithmGreedyError
		report.Message = err.Error()
	default:
		report.Status = sol.Status
		report.Nodes = sol.Nodes
		a.metrics.RecordSolverStatus(StageQuantity, string(sol.Status))
		switch {
		case sol.Status.HasSolution():
			x := qm.extract(p, sol)
			if verr := p.verify(x); verr != nil {
				report.Algorithm = AlgorithmGreedyInvariant
				report.Message = verr.Error()
				a.metrics.RecordInvariantFailure(invariantName(verr))
				break
			}
			report.Algorithm = AlgorithmExact
			report.Objective = sol.Objective
			return x, report, nil
		case sol.Status == solver.StatusInfeasible:
			report.Algorithm = AlgorithmGreedyInfeasible
			report.Message = "quantity model infeasible"
			report.Diagnostics = diagnose(p)
		default:
			report.Algorithm = AlgorithmGreedyTimeout
			report.Message = fmt.Sprintf("no integer solution within %s", p.sc.Step2Timeout)
		}
	}

	a.metrics.RecordFallback(report.Algorithm)
	a.logger.Warn().
		Str("scenario", p.sc.Name).
		Str("algorithm", report.Algorithm).
		Str("status", string(report.Status)).
		Str("reason", report.Message).
		Msg("Falling back to greedy allocation")

	x, gerr := a.greedy(p, fallback, &report)
	return x, report, gerr
}

func (a *QuantityAllocator) greedy(p *problem, x Matrix, report *StageReport) (Matrix, error) {
	if err := p.verify(x); err != nil {
		a.metrics.RecordInvariantFailure(invariantName(err))
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailed, err)
	}
	report.Objective = evaluateAllocation(p, x)
	return x, nil
}

// evaluateAllocation scores x with the efficiency term of the exact model.
func evaluateAllocation(p *problem, x Matrix) float64 {
	score := 0.0
	for i := range x {
		for j, q := range x[i] {
			score += float64(q) * (1 + p.reg.StoreRatio(j))
		}
	}
	return score
}
