package main

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosarica/allocation-service/config"
	"github.com/kosarica/allocation-service/internal/types"
)

func TestNewLoggerLevels(t *testing.T) {
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "warn", Format: "json"}}

	assert.Equal(t, zerolog.WarnLevel, newLogger(cfg, "", &bytes.Buffer{}).GetLevel())
	assert.Equal(t, zerolog.DebugLevel, newLogger(cfg, "debug", &bytes.Buffer{}).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger(nil, "", &bytes.Buffer{}).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, newLogger(nil, "loud", &bytes.Buffer{}).GetLevel())
}

func TestNewLoggerJSONGoesToWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "info", Format: "json"}}
	newLogger(cfg, "", &buf).Info().Str("scenario", "hybrid").Msg("hello")

	assert.Contains(t, buf.String(), `"scenario":"hybrid"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestWriteParseReport(t *testing.T) {
	row, field, value := 3, "stock", "x"
	result := &types.ParseResult{
		Kind:      types.KindSKUs,
		TotalRows: 3,
		ValidRows: 1,
		SKUs:      []types.SKURecord{{ID: "A", Stock: 5}},
		Errors: []types.ParseError{
			{RowNumber: &row, Field: &field, OriginalValue: &value, Message: "invalid quantity"},
			{Message: "second"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeParseReport(&buf, "skus.csv", result, 1))
	out := buf.String()
	assert.Contains(t, out, "skus.csv (skus)")
	assert.Contains(t, out, "invalid quantity")
	assert.NotContains(t, out, "second")
	assert.Contains(t, out, "1 more")
	assert.Contains(t, out, "A")
}
