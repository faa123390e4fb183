package optimizer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kosarica/allocation-service/internal/solver"
)

// coverageTieBreak rewards every placement slightly so that, with a zero
// coverage weight, feasible placements are still preferred over none.
const coverageTieBreak = 1e-3

// CoverageOptimizer runs Step 1: choosing which stores carry each scarce SKU.
type CoverageOptimizer struct {
	solver  solver.Solver
	metrics *MetricsRecorder
	logger  zerolog.Logger
}

// NewCoverageOptimizer creates a Step 1 optimizer.
func NewCoverageOptimizer(s solver.Solver, metrics *MetricsRecorder) *CoverageOptimizer {
	return &CoverageOptimizer{
		solver:  s,
		metrics: metrics,
		logger:  log.With().Str("component", "coverage_optimizer").Logger(),
	}
}

type coverageModel struct {
	model *solver.Model
	y     [][]int // variable index per (sku, store), -1 when ineligible
	any   bool
}

func eligibleForCoverage(reg *Registry, env *Envelope, i, j int) bool {
	return reg.SKU(i).Stock > 0 && reg.Store(j).Capacity > 0 && env.Upper(i, j) >= 1
}

func (o *CoverageOptimizer) buildModel(reg *Registry, cls *Classification, env *Envelope, sc *Scenario) *coverageModel {
	nStore := reg.NumStores()
	cm := &coverageModel{
		model: solver.NewModel("step1_coverage", true),
		y:     make([][]int, reg.NumSKUs()),
	}
	m := cm.model
	target := reg.NumTargetStores()

	for _, i := range cls.Scarce() {
		sku := reg.SKU(i)
		cm.y[i] = make([]int, nStore)
		var row []solver.Term
		for j := 0; j < nStore; j++ {
			cm.y[i][j] = -1
			if !eligibleForCoverage(reg, env, i, j) {
				continue
			}
			v := m.AddBinary(fmt.Sprintf("y[%s,%s]", sku.ID, reg.Store(j).ID))
			m.AddObjective(v, sc.CoverageWeight+coverageTieBreak)
			cm.y[i][j] = v
			row = append(row, solver.Term{Var: v, Coef: 1})
		}
		if len(row) == 0 {
			continue
		}
		cm.any = true

		if len(row) > sku.Stock {
			m.AddConstraint("supply["+sku.ID+"]", row, solver.LessEqual, float64(sku.Stock))
		}
		if sc.MinCoverageThreshold > 0 {
			required := min(ceilTol(sc.MinCoverageThreshold*float64(target)), sku.Stock, len(row))
			if required > 0 {
				m.AddConstraint("footprint["+sku.ID+"]", row, solver.GreaterEqual, float64(required))
			}
		}
	}

	for j := 0; j < nStore; j++ {
		var col []solver.Term
		for _, i := range cls.Scarce() {
			if cm.y[i] != nil && cm.y[i][j] >= 0 {
				col = append(col, solver.Term{Var: cm.y[i][j], Coef: 1})
			}
		}
		if limit := storeCoverageLimit(reg, sc, j); len(col) > limit {
			m.AddConstraint("store_limit["+reg.Store(j).ID+"]", col, solver.LessEqual, float64(limit))
		}
	}

	if sc.BalancePenalty > 0 && cm.any {
		o.addBalanceTerms(cm, reg, cls, sc)
	}
	if cm.any {
		cm.setStart(reg, cls, sc)
	}
	return cm
}

// storeCoverageLimit is the number of scarce SKUs store j may carry: its
// capacity, or the diversity cap when that is lower.
func storeCoverageLimit(reg *Registry, sc *Scenario, j int) int {
	limit := reg.Store(j).Capacity
	if sc.CoverageDiversityCap > 0 {
		limit = min(limit, sc.CoverageDiversityCap)
	}
	return limit
}

// setStart hints a greedy placement: each scarce SKU in turn takes up to its
// stock in stores, preferring the stores with the most room left under
// their limit. The solver drops the hint when it misses a footprint.
func (cm *coverageModel) setStart(reg *Registry, cls *Classification, sc *Scenario) {
	room := make([]int, reg.NumStores())
	for j := range room {
		room[j] = storeCoverageLimit(reg, sc, j)
	}
	order := make([]int, reg.NumStores())
	for _, i := range cls.Scarce() {
		if cm.y[i] == nil {
			continue
		}
		for j := range order {
			order[j] = j
		}
		slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(room[b], room[a]) })

		left := reg.SKU(i).Stock
		for _, j := range order {
			v := cm.y[i][j]
			if v < 0 {
				continue
			}
			if left > 0 && room[j] > 0 {
				cm.model.SetStart(v, 1)
				room[j]--
				left--
				continue
			}
			cm.model.SetStart(v, 0)
		}
	}
}

// addBalanceTerms penalizes, per store, the gap between the share of scarce
// colors and the share of scarce sizes it carries.
func (o *CoverageOptimizer) addBalanceTerms(cm *coverageModel, reg *Registry, cls *Classification, sc *Scenario) {
	m := cm.model
	colors := make(map[string]struct{})
	sizes := make(map[string]struct{})
	for _, i := range cls.Scarce() {
		if cm.y[i] == nil {
			continue
		}
		colors[reg.SKU(i).Color] = struct{}{}
		sizes[reg.SKU(i).Size] = struct{}{}
	}
	colorKeys, sizeKeys := sortedKeys(colors), sortedKeys(sizes)
	if len(colorKeys) < 2 && len(sizeKeys) < 2 {
		return
	}

	for j := 0; j < reg.NumStores(); j++ {
		byColor := make(map[string][]int)
		bySize := make(map[string][]int)
		for _, i := range cls.Scarce() {
			if cm.y[i] == nil || cm.y[i][j] < 0 {
				continue
			}
			byColor[reg.SKU(i).Color] = append(byColor[reg.SKU(i).Color], cm.y[i][j])
			bySize[reg.SKU(i).Size] = append(bySize[reg.SKU(i).Size], cm.y[i][j])
		}
		if len(byColor) == 0 {
			continue
		}
		storeID := reg.Store(j).ID

		var gap []solver.Term
		indicator := func(kind, key string, ys []int, coef float64) {
			// c is pinned to 0 or 1 by the y it links, so it need not be integer.
			c := m.AddContinuous(fmt.Sprintf("%s[%s,%s]", kind, storeID, key), 0, 1)
			sum := []solver.Term{{Var: c, Coef: 1}}
			for _, y := range ys {
				m.AddConstraint(fmt.Sprintf("%s_lb[%s,%s]", kind, storeID, key),
					[]solver.Term{{Var: y, Coef: 1}, {Var: c, Coef: -1}}, solver.LessEqual, 0)
				sum = append(sum, solver.Term{Var: y, Coef: -1})
			}
			m.AddConstraint(fmt.Sprintf("%s_ub[%s,%s]", kind, storeID, key), sum, solver.LessEqual, 0)
			gap = append(gap, solver.Term{Var: c, Coef: coef})
		}
		for _, k := range colorKeys {
			if ys := byColor[k]; len(ys) > 0 {
				indicator("color", k, ys, 1/float64(len(colorKeys)))
			}
		}
		for _, k := range sizeKeys {
			if ys := bySize[k]; len(ys) > 0 {
				indicator("size", k, ys, -1/float64(len(sizeKeys)))
			}
		}

		d := m.AddContinuous("balance["+storeID+"]", 0, 1)
		m.AddObjective(d, -sc.BalancePenalty)
		upper := []solver.Term{{Var: d, Coef: 1}}
		lower := []solver.Term{{Var: d, Coef: 1}}
		for _, t := range gap {
			upper = append(upper, solver.Term{Var: t.Var, Coef: -t.Coef})
			lower = append(lower, solver.Term{Var: t.Var, Coef: t.Coef})
		}
		m.AddConstraint("balance_pos["+storeID+"]", upper, solver.GreaterEqual, 0)
		m.AddConstraint("balance_neg["+storeID+"]", lower, solver.GreaterEqual, 0)
	}
}

// Optimize solves Step 1. It never fails: on infeasibility, timeout or a
// solver error it degrades to unconstrained placement.
func (o *CoverageOptimizer) Optimize(ctx context.Context, reg *Registry, cls *Classification, env *Envelope, sc *Scenario) (_ *Coverage, report StageReport) {
	start := time.Now()
	report = StageReport{Algorithm: AlgorithmSkipped}
	cov := &Coverage{Enforced: true, Y: make([][]bool, reg.NumSKUs())}
	defer func() {
		report.finish(start)
		o.metrics.RecordStage(StageCoverage, report.Algorithm, report.Duration)
	}()

	if !sc.EnforceCoverage {
		report.Message = "coverage enforcement disabled"
		return &Coverage{Y: cov.Y}, report
	}
	if len(cls.Scarce()) == 0 {
		report.Message = "no scarce skus"
		return cov, report
	}

	cm := o.buildModel(reg, cls, env, sc)
	if !cm.any {
		report.Message = "no eligible store for any scarce sku"
		return cov, report
	}
	report.Variables = cm.model.NumVariables()
	report.Constraints = len(cm.model.Constraints)
	o.metrics.RecordModelSize(StageCoverage, report.Variables)

	sol, err := o.solver.Solve(ctx, cm.model, sc.Step1Timeout)
	if err != nil {
		report.Message = err.Error()
		if errors.Is(err, solver.ErrModelTooLarge) {
			report.Message = "model too large: " + err.Error()
		}
		o.logger.Warn().Err(err).Str("scenario", sc.Name).Msg("Coverage solve failed, degrading")
		return o.degrade(reg, cls, env, cm, &report), report
	}

	report.Status = sol.Status
	report.Nodes = sol.Nodes
	o.metrics.RecordSolverStatus(StageCoverage, string(sol.Status))
	if !sol.Status.HasSolution() {
		report.Message = "coverage model " + string(sol.Status)
		o.logger.Warn().
			Str("scenario", sc.Name).
			Str("status", string(sol.Status)).
			Msg("Coverage model has no solution, degrading")
		return o.degrade(reg, cls, env, cm, &report), report
	}

	report.Algorithm = AlgorithmExact
	report.Objective = sol.Objective
	for _, i := range cls.Scarce() {
		if cm.y[i] == nil {
			continue
		}
		cov.Y[i] = make([]bool, reg.NumStores())
		for j, v := range cm.y[i] {
			if v >= 0 {
				cov.Y[i][j] = sol.Value(v) >= 0.5
			}
		}
	}

	o.logger.Debug().
		Str("scenario", sc.Name).
		Str("status", string(sol.Status)).
		Int("variables", report.Variables).
		Int("nodes", sol.Nodes).
		Msg("Coverage solved")
	return cov, report
}

func (o *CoverageOptimizer) degrade(reg *Registry, cls *Classification, env *Envelope, cm *coverageModel, report *StageReport) *Coverage {
	report.Algorithm = AlgorithmDegraded
	report.Degraded = true
	o.metrics.RecordDegraded(StageCoverage)

	cov := &Coverage{Enforced: false, Y: make([][]bool, reg.NumSKUs())}
	for _, i := range cls.Scarce() {
		if cm.y[i] == nil {
			continue
		}
		cov.Y[i] = make([]bool, reg.NumStores())
		for j := range cov.Y[i] {
			cov.Y[i][j] = eligibleForCoverage(reg, env, i, j)
		}
	}
	return cov
}
