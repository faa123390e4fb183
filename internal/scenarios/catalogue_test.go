package scenarios

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleCatalogue = `
defaults:
  step1_timeout: 30
  step2_timeout: 1m
scenarios:
  - name: wide
    description: wide ranges
    coverage_weight: 2
    allocation_range_min: 0.2
    allocation_range_max: 4
  - name: wide_tiered
    base: wide
    tier_max_per_sku: [3, 2, 1]
  - name: hybrid_proportional
    base: hybrid
    use_proportional_allocation: true
    min_allocation_multiplier: 0.5
    max_allocation_multiplier: 1.5
`

// TestLoadResolvesBases applies defaults, catalogue bases and presets.
func TestLoadResolvesBases(t *testing.T) {
	cat, err := Load(writeFile(t, "scenarios.yaml", sampleCatalogue))
	require.NoError(t, err)

	assert.Equal(t, []string{"wide", "wide_tiered", "hybrid_proportional"}, cat.Custom())

	wide, err := cat.Get("wide")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, wide.Step1Timeout)
	assert.Equal(t, time.Minute, wide.Step2Timeout)
	assert.Equal(t, 2.0, wide.CoverageWeight)

	tiered, err := cat.Get("wide_tiered")
	require.NoError(t, err)
	assert.Equal(t, "wide", tiered.Base)
	assert.Equal(t, 2.0, tiered.CoverageWeight)
	assert.Equal(t, []int{3, 2, 1}, tiered.TierMaxPerSKU)
	assert.Empty(t, tiered.Description)

	hp, err := cat.Get("hybrid_proportional")
	require.NoError(t, err)
	assert.Equal(t, 0.5, hp.CoverageWeight, "inherited from the hybrid preset")
	assert.True(t, hp.UseProportionalAllocation)
	// Presets start from the built-in defaults, not the file defaults.
	assert.Equal(t, 300*time.Second, hp.Step1Timeout)
}

// TestLoadRejectsBadCatalogues covers unknown keys and invalid values.
func TestLoadRejectsBadCatalogues(t *testing.T) {
	tests := map[string]string{
		"unknown option":    "scenarios:\n  - name: a\n    coverage_wieght: 1\n",
		"unknown top level": "scenario:\n  - name: a\n",
		"missing name":      "scenarios:\n  - coverage_weight: 1\n",
		"duplicate":         "scenarios:\n  - name: a\n  - name: a\n",
		"unknown base":      "scenarios:\n  - name: a\n    base: nope\n",
		"invalid value":     "scenarios:\n  - name: a\n    min_coverage_threshold: 2\n",
		"bad duration":      "scenarios:\n  - name: a\n    step1_timeout: later\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", content))
			assert.Error(t, err)
		})
	}
}

// TestCatalogueGetFallsBackToPresets resolves preset names.
func TestCatalogueGetFallsBackToPresets(t *testing.T) {
	cat := NewCatalogue()

	sc, err := cat.Get("baseline")
	require.NoError(t, err)
	assert.Equal(t, 0.3, sc.AllocationRangeMin)

	_, err = cat.Get("nope")
	assert.True(t, errors.Is(err, ErrScenarioNotFound))
	assert.Contains(t, cat.Names(), "tiered")
}

// TestExportRoundTrip writes scenarios that Load reads back unchanged.
func TestExportRoundTrip(t *testing.T) {
	cat, err := Load(writeFile(t, "scenarios.yaml", sampleCatalogue))
	require.NoError(t, err)
	want, err := cat.Resolve([]string{"wide_tiered", "coverage_focused"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, want))

	again, err := Load(writeFile(t, "export.yaml", buf.String()))
	require.NoError(t, err)
	got, err := again.Resolve([]string{"wide_tiered", "coverage_focused"})
	require.NoError(t, err)

	for k := range want {
		want[k].Base = ""
	}
	assert.Equal(t, want, got)
}
