package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

// TestLoadDefaults loads without a config file.
func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Runner.Concurrency)
	assert.Equal(t, []string{"json", "csv", "xlsx"}, cfg.Runner.Formats)
	assert.Equal(t, 1500, cfg.Solver.MaxVariables)
	assert.Equal(t, 1e-4, cfg.Solver.RelativeGap)
	assert.Equal(t, 3, cfg.Breaker.MaxFailures)
	assert.Equal(t, 5*time.Minute, cfg.Breaker.ResetTimeout)
	assert.Equal(t, "hybrid", cfg.Scenarios.Default)
	assert.Same(t, cfg, Get())
}

// TestLoadFileAndEnv layers a YAML file, .env and prefixed variables.
func TestLoadFileAndEnv(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "allocator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
  rate_limit:
    requests_per_second: 5
runner:
  concurrency: 4
  formats: [json]
solver:
  max_variables: 1000
scenarios:
  file: scenarios.yaml
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("# local\nINTERNAL_API_KEY=\"secret\"\n"), 0o644))
	t.Setenv("ALLOCATOR_RUNNER_CONCURRENCY", "8")
	t.Setenv("INTERNAL_API_KEY", "")
	os.Unsetenv("INTERNAL_API_KEY")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5.0, cfg.Server.RateLimit.RequestsPerSecond)
	assert.Equal(t, 8, cfg.Runner.Concurrency, "env overrides the file")
	assert.Equal(t, []string{"json"}, cfg.Runner.Formats)
	assert.Equal(t, 1000, cfg.Solver.MaxVariables)
	assert.Equal(t, "scenarios.yaml", cfg.Scenarios.File)
	assert.Equal(t, "secret", cfg.Server.InternalAPIKey)
}

// TestLoadMissingExplicitFile fails when the named file does not exist.
func TestLoadMissingExplicitFile(t *testing.T) {
	chdirTemp(t)
	_, err := Load("missing.yaml")
	assert.Error(t, err)
}

// TestValidate rejects unusable values.
func TestValidate(t *testing.T) {
	chdirTemp(t)
	base, err := Load("")
	require.NoError(t, err)

	tests := map[string]func(c *Config){
		"port":        func(c *Config) { c.Server.Port = 0 },
		"concurrency": func(c *Config) { c.Runner.Concurrency = 0 },
		"format":      func(c *Config) { c.Runner.Formats = []string{"pdf"} },
		"storage":     func(c *Config) { c.Storage.Type = "s3" },
		"breaker":     func(c *Config) { c.Breaker.MaxFailures = 0 },
		"capacity":    func(c *Config) { c.Runner.DefaultCapacity = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			var invalid ErrInvalidConfig
			assert.True(t, errors.As(c.Validate(), &invalid))
		})
	}
}
