package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/allocation-service/internal/types"
)

// TestParseNumber accepts both thousands conventions.
func TestParseNumber(t *testing.T) {
	tests := map[string]float64{
		"12":        12,
		"12.5":      12.5,
		"12,5":      12.5,
		"1,234":     1234,
		"1,234,567": 1234567,
		"1.234,5":   1234.5,
		"1,234.5":   1234.5,
		"1 200":     1200,
	}
	for in, want := range tests {
		got, err := ParseNumber(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "abc", "NaN", "Inf"} {
		_, err := ParseNumber(in)
		assert.Error(t, err, in)
	}
}

// TestParseQuantity rejects fractional units.
func TestParseQuantity(t *testing.T) {
	n, err := ParseQuantity("40.0")
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	_, err = ParseQuantity("2.5")
	assert.Error(t, err)
}

// TestResolveAliases matches headers case-insensitively across separators.
func TestResolveAliases(t *testing.T) {
	idx := DefaultMapping().Resolve([]string{"\ufeffShop-ID", "Qty Sum", "CAPACITY"})
	assert.Equal(t, 0, idx.StoreID)
	assert.Equal(t, 1, idx.QtySum)
	assert.Equal(t, 2, idx.Capacity)
	assert.Equal(t, InvalidIndex, idx.SKUID)
	assert.NoError(t, idx.Check(types.KindStores))
	assert.Error(t, idx.Check(types.KindSKUs))
}

// TestMapPrefersExplicitID keeps the sku column over the composed id.
func TestMapPrefersExplicitID(t *testing.T) {
	result := Map(
		[]string{"sku", "style", "color", "size", "stock"},
		[][]string{{"X1", "S", "BK", "M", "4"}, {"", "S", "WH", "M", "2"}, {"", "S", "", "M", "1"}},
		2,
		Options{Kind: types.KindSKUs, Mapping: DefaultMapping(), SkipEmptyRows: true},
	)

	require.Len(t, result.SKUs, 2)
	assert.Equal(t, "X1", result.SKUs[0].ID)
	assert.Equal(t, "S_WH_M", result.SKUs[1].ID)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, *result.Errors[0].RowNumber)
}

// TestMapZeroCapacityWarns keeps the store and warns.
func TestMapZeroCapacityWarns(t *testing.T) {
	result := Map([]string{"store_id", "qty_sum", "capacity"}, [][]string{{"S1", "5", "0"}}, 2,
		Options{Kind: types.KindStores, Mapping: DefaultMapping()})

	require.Len(t, result.Stores, 1)
	assert.Equal(t, 0, *result.Stores[0].Capacity)
	assert.Len(t, result.Warnings, 1)
}

// TestMapNormalizesIDs folds decomposed accents into the precomposed form.
func TestMapNormalizesIDs(t *testing.T) {
	result := Map([]string{"store_id", "qty_sum"}, [][]string{{"Zagreb-Trešnjevka", "3"}, {"Café", "1"}}, 2,
		Options{Kind: types.KindStores, Mapping: DefaultMapping()})

	require.Len(t, result.Stores, 2)
	assert.Equal(t, "Zagreb-Trešnjevka", result.Stores[0].ID)
	assert.Equal(t, "Café", result.Stores[1].ID)
}
