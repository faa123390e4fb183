package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderAllocationGroup(t *testing.T) {
	data, err := render(groups[0])
	require.NoError(t, err)

	var doc struct {
		ID    string                     `json:"$id"`
		Title string                     `json:"title"`
		Defs  map[string]json.RawMessage `json:"$defs"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, schemaBaseURL+"allocation.json", doc.ID)
	assert.Equal(t, "Allocation API Types", doc.Title)
	for _, name := range []string{"AllocateRequest", "SKUInput", "StoreInput", "Result", "AllocationRecord"} {
		assert.Contains(t, doc.Defs, name)
	}
}

func TestRunCheckDetectsStaleFiles(t *testing.T) {
	dir := t.TempDir()
	assert.ErrorIs(t, run(dir, true), errStale)

	require.NoError(t, run(dir, false))
	require.NoError(t, run(dir, true))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenarios.json"), []byte("{}"), 0o644))
	assert.ErrorIs(t, run(dir, true), errStale)
}
