package xlsx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kosarica/allocation-service/internal/types"
)

func workbook(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// TestParseStoresFromSheet reads store records from a named sheet.
func TestParseStoresFromSheet(t *testing.T) {
	content := workbook(t, "stores", [][]any{
		{"SHOP_ID", "QTY_SUM", "Capacity"},
		{"S01", 120, 30},
		{"S02", 80.5, nil},
		{"", 10, 1},
	})

	opts := DefaultOptions(types.KindStores)
	opts.Sheet = "stores"
	result, err := NewParser(opts).Parse(content)
	require.NoError(t, err)

	require.Len(t, result.Stores, 2)
	assert.Equal(t, "S01", result.Stores[0].ID)
	assert.Equal(t, 120.0, result.Stores[0].QtySum)
	assert.Equal(t, 30, *result.Stores[0].Capacity)
	assert.Equal(t, 80.5, result.Stores[1].QtySum)
	assert.Nil(t, result.Stores[1].Capacity)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, *result.Errors[0].RowNumber)
}

// TestParseSKUsFirstSheet defaults to the first sheet.
func TestParseSKUsFirstSheet(t *testing.T) {
	content := workbook(t, "Sheet1", [][]any{
		{"sku_id", "stock"},
		{"A", 5},
		{"B", 0},
	})

	result, err := NewParser(DefaultOptions(types.KindSKUs)).Parse(content)
	require.NoError(t, err)
	assert.Equal(t, []types.SKURecord{{ID: "A", Stock: 5, RowNumber: 2}, {ID: "B", Stock: 0, RowNumber: 3}}, result.SKUs)
}

// TestParseMissingSheet reports the available sheets.
func TestParseMissingSheet(t *testing.T) {
	content := workbook(t, "Sheet1", [][]any{{"sku_id", "stock"}})

	opts := DefaultOptions(types.KindSKUs)
	opts.Sheet = "skus"
	result, err := NewParser(opts).Parse(content)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "Sheet1")
}

// TestParseInvalidWorkbook reports unreadable content in the result.
func TestParseInvalidWorkbook(t *testing.T) {
	result, err := NewParser(DefaultOptions(types.KindSKUs)).Parse([]byte("not a workbook"))
	require.NoError(t, err)
	assert.True(t, result.HasErrors())
}

// TestParseDetectsHeaderBelowTitle skips title rows above the table.
func TestParseDetectsHeaderBelowTitle(t *testing.T) {
	content := workbook(t, "Sheet1", [][]any{
		{"Spring drop, warehouse export"},
		{},
		{"sku_id", "stock"},
		{"A", 4},
	})

	result, err := NewParser(DefaultOptions(types.KindSKUs)).Parse(content)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []types.SKURecord{{ID: "A", Stock: 4, RowNumber: 4}}, result.SKUs)
}

// TestParseExplicitHeaderRow uses the configured row even when it is wrong.
func TestParseExplicitHeaderRow(t *testing.T) {
	content := workbook(t, "Sheet1", [][]any{
		{"title"},
		{"sku_id", "stock"},
		{"A", 4},
	})

	opts := DefaultOptions(types.KindSKUs)
	opts.HeaderRow = 1
	result, err := NewParser(opts).Parse(content)
	require.NoError(t, err)
	assert.True(t, result.HasErrors())
	assert.Empty(t, result.SKUs)
}
