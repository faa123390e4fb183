package parsers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/allocation-service/internal/types"
)

// TestDetectFileType maps extensions to parsers.
func TestDetectFileType(t *testing.T) {
	ft, err := DetectFileType("stores.CSV")
	require.NoError(t, err)
	assert.Equal(t, types.FileTypeCSV, ft)

	ft, err = DetectFileType("dir/skus.xlsx")
	require.NoError(t, err)
	assert.Equal(t, types.FileTypeXLSX, ft)

	_, err = DetectFileType("skus.xml")
	assert.Error(t, err)
}

// TestParseFile reads a CSV file from disk.
func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skus.csv")
	require.NoError(t, os.WriteFile(path, []byte("sku,stock\nA,3\n"), 0o644))

	result, err := ParseFile(path, types.KindSKUs)
	require.NoError(t, err)
	assert.Equal(t, []types.SKURecord{{ID: "A", Stock: 3, RowNumber: 2}}, result.SKUs)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.csv"), types.KindSKUs)
	assert.Error(t, err)
}
