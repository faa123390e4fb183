package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kosarica/allocation-service/internal/optimizer"
	"github.com/kosarica/allocation-service/internal/storage"
	"github.com/kosarica/allocation-service/internal/types"
)

// fakeRunner allocates one unit of every SKU to the first store and fails
// scenarios named "broken".
type fakeRunner struct {
	calls   atomic.Int32
	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeRunner) Run(ctx context.Context, reg *optimizer.Registry, sc *optimizer.Scenario) (*optimizer.Result, error) {
	f.calls.Add(1)
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if sc.Name == "broken" {
		return nil, errors.New("no solution")
	}
	m := optimizer.NewMatrix(reg.NumSKUs(), reg.NumStores())
	records := make([]optimizer.AllocationRecord, 0, reg.NumSKUs())
	for i := 0; i < reg.NumSKUs(); i++ {
		m[i][0] = 1
		records = append(records, optimizer.AllocationRecord{SKUID: reg.SKU(i).ID, StoreID: reg.Store(0).ID, Quantity: 1})
	}
	return &optimizer.Result{
		Metadata: optimizer.RunMetadata{RunID: "run-" + sc.Name, Scenario: sc.Name},
		Totals:   optimizer.Totals{TotalAllocated: reg.NumSKUs(), TotalStock: reg.TotalStock()},
		Records:  records,
		Matrix:   m,
	}, nil
}

func writeInputs(t *testing.T) Inputs {
	t.Helper()
	dir := t.TempDir()
	skus := filepath.Join(dir, "skus.csv")
	stores := filepath.Join(dir, "stores.csv")
	require.NoError(t, os.WriteFile(skus, []byte("PART_CD,COLOR_CD,SIZE_CD,ORD_QTY\nS1,BK,M,10\nS1,WH,M,4\nS1,WH,L,oops\n"), 0o644))
	require.NoError(t, os.WriteFile(stores, []byte("SHOP_ID,QTY_SUM,capacity\nA,60,20\nB,40,\n"), 0o644))
	return Inputs{SKUFile: skus, StoreFile: stores}
}

func scenario(name string) optimizer.Scenario {
	sc := optimizer.DefaultScenario()
	sc.Name = name
	return sc
}

// TestParsePhaseSkipsBadRows builds a registry from the valid rows.
func TestParsePhaseSkipsBadRows(t *testing.T) {
	parsed, err := ParsePhase(context.Background(), writeInputs(t))
	require.NoError(t, err)

	assert.Equal(t, 2, parsed.Registry.NumSKUs())
	assert.Len(t, parsed.SKUs.Errors, 1)
	assert.Equal(t, 20, parsed.Registry.Store(0).Capacity)
	assert.Equal(t, 14, parsed.Registry.Store(1).Capacity, "missing capacity defaults to total stock")
}

// TestParsePhaseStrict fails on any row error.
func TestParsePhaseStrict(t *testing.T) {
	in := writeInputs(t)
	in.Strict = true
	_, err := ParsePhase(context.Background(), in)
	assert.Error(t, err)
}

// TestBuildRegistryDefaultCapacity applies the configured default.
func TestBuildRegistryDefaultCapacity(t *testing.T) {
	reg, err := BuildRegistry(
		[]types.SKURecord{{ID: "X", Stock: 5}},
		[]types.StoreRecord{{ID: "A", QtySum: 1}, {ID: "B", QtySum: 1, Capacity: types.IntPtr(0)}},
		3,
	)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Store(0).Capacity)
	assert.Equal(t, 0, reg.Store(1).Capacity)
}

// TestPipelineRunPersistsEveryFormat runs scenarios concurrently and
// writes the per-run and batch files.
func TestPipelineRunPersistsEveryFormat(t *testing.T) {
	parsed, err := ParsePhase(context.Background(), writeInputs(t))
	require.NoError(t, err)

	store := storage.NewMemoryStorage()
	runner := &fakeRunner{}
	p := New(runner, store, Config{Concurrency: 2, Formats: []string{FormatJSON, FormatCSV, FormatXLSX}})

	batch, err := p.Run(context.Background(), parsed.Registry, []optimizer.Scenario{scenario("a"), scenario("broken"), scenario("c")})
	require.NoError(t, err)

	assert.EqualValues(t, 3, runner.calls.Load())
	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
	assert.Equal(t, 1, batch.Failed())
	require.Len(t, batch.Comparison, 3)
	assert.Equal(t, []string{"a", "broken", "c"}, []string{batch.Comparison[0].Scenario, batch.Comparison[1].Scenario, batch.Comparison[2].Scenario})
	assert.Equal(t, "no solution", batch.Comparison[1].Error)

	require.Len(t, batch.Runs[0].Files, 3)
	assert.Empty(t, batch.Runs[1].Files)
	assert.Len(t, batch.Files, 2)

	csvKey := batch.Runs[0].Files[1]
	assert.True(t, strings.HasSuffix(csvKey, "/a/run-a/allocations.csv"))
	content, err := store.Get(context.Background(), csvKey)
	require.NoError(t, err)
	assert.Contains(t, string(content), "S1_BK_M,A,,,,1,0,false,false")

	xlsxContent, err := store.Get(context.Background(), batch.Runs[0].Files[2])
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(xlsxContent))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"summary", "matrix", "stores", "skus"}, f.GetSheetList())
	v, err := f.GetCellValue("matrix", "B2")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	v, err = f.GetCellValue("matrix", "C1")
	require.NoError(t, err)
	assert.Equal(t, "B", v)
}

// TestPipelineRunWithoutPersistence needs no storage.
func TestPipelineRunWithoutPersistence(t *testing.T) {
	parsed, err := ParsePhase(context.Background(), writeInputs(t))
	require.NoError(t, err)

	batch, err := New(&fakeRunner{}, nil, Config{}).Run(context.Background(), parsed.Registry, []optimizer.Scenario{scenario("a")})
	require.NoError(t, err)
	assert.Empty(t, batch.Files)
	assert.Equal(t, 0, batch.Failed())

	_, err = New(&fakeRunner{}, nil, Config{Formats: []string{FormatJSON}}).Run(context.Background(), parsed.Registry, []optimizer.Scenario{scenario("a")})
	assert.Error(t, err)

	_, err = New(&fakeRunner{}, nil, Config{}).Run(context.Background(), parsed.Registry, nil)
	assert.Error(t, err)
}

// TestWriteTable renders one line per run plus the header.
func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, []ComparisonRow{{Scenario: "a", AllocationRate: 0.5}, {Scenario: "b", Error: "failed"}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "scenario"))
	assert.Contains(t, lines[1], "0.500")
	assert.Contains(t, lines[2], "failed")
}
