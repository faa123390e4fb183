package optimizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kosarica/allocation-service/internal/solver"
)

// fakeSolver is a hand-written solver double. respond builds the answer for
// each model; calls records the model names in order.
type fakeSolver struct {
	mu      sync.Mutex
	respond func(m *solver.Model) (*solver.Solution, error)
	calls   []string
}

func newFakeSolver(respond func(m *solver.Model) (*solver.Solution, error)) *fakeSolver {
	return &fakeSolver{respond: respond}
}

func (f *fakeSolver) Solve(ctx context.Context, m *solver.Model, timeLimit time.Duration) (*solver.Solution, error) {
	f.mu.Lock()
	f.calls = append(f.calls, m.Name)
	f.mu.Unlock()
	return f.respond(m)
}

func (f *fakeSolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func statusSolver(status solver.Status) *fakeSolver {
	return newFakeSolver(func(*solver.Model) (*solver.Solution, error) {
		return &solver.Solution{Status: status}, nil
	})
}

func errorSolver(err error) *fakeSolver {
	return newFakeSolver(func(*solver.Model) (*solver.Solution, error) {
		return nil, err
	})
}

// boundSolver answers every model with each variable at its lower (or upper) bound.
func boundSolver(upper bool) *fakeSolver {
	return newFakeSolver(func(m *solver.Model) (*solver.Solution, error) {
		values := make([]float64, m.NumVariables())
		for k, v := range m.Variables {
			values[k] = v.Lower
			if upper {
				values[k] = v.Upper
			}
		}
		return &solver.Solution{Status: solver.StatusFeasible, Values: values, Objective: m.Evaluate(values)}, nil
	})
}

// twoStoreRegistry is one SKU with 100 units and stores weighted 1000 and 500.
func twoStoreRegistry() *Registry {
	reg, err := NewRegistry(
		[]SKU{{ID: "S1_RED_M", Style: "S1", Color: "RED", Size: "M", Stock: 100}},
		[]Store{
			{ID: "A", Capacity: 100, QtySum: 1000},
			{ID: "B", Capacity: 100, QtySum: 500},
		},
	)
	if err != nil {
		panic(err)
	}
	return reg
}

func proportionalScenario() Scenario {
	sc := DefaultScenario()
	sc.Name = "proportional_test"
	sc.UseProportionalAllocation = true
	sc.MinAllocationMultiplier = 0.8
	sc.MaxAllocationMultiplier = 1.2
	return sc
}

// tenStoreRegistry has stores ST01..ST10 with QTY_SUM 100..1000 and the given
// SKU stocks, one color and size per SKU.
func tenStoreRegistry(capacity int, stocks ...int) *Registry {
	stores := make([]Store, 10)
	for j := range stores {
		stores[j] = Store{ID: fmt.Sprintf("ST%02d", j+1), Capacity: capacity, QtySum: float64(100 * (j + 1))}
	}
	colors := []string{"RED", "BLUE", "BLACK"}
	sizes := []string{"S", "M", "L"}
	skus := make([]SKU, len(stocks))
	for i, stock := range stocks {
		c, s := colors[i%len(colors)], sizes[(i/len(colors))%len(sizes)]
		skus[i] = SKU{ID: fmt.Sprintf("P1_%s_%s_%d", c, s, i), Style: "P1", Color: c, Size: s, Stock: stock}
	}
	reg, err := NewRegistry(skus, stores)
	if err != nil {
		panic(err)
	}
	return reg
}

func verifyResult(reg *Registry, sc *Scenario, res *Result) error {
	tiers := AssignTiers(reg, sc.TierConfig())
	return Verify(reg, tiers, &Coverage{}, res.Matrix)
}
