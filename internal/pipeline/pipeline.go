// Package pipeline runs a batch of scenarios over one set of inputs,
// persists each result and compares the runs.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kosarica/allocation-service/internal/optimizer"
	"github.com/kosarica/allocation-service/internal/storage"
)

// Config controls a batch
type Config struct {
	// Concurrency bounds the scenarios solved at once.
	Concurrency int
	// Formats lists the result files written per run; empty disables persistence.
	Formats []string
}

// ScenarioRun is the outcome of one scenario
type ScenarioRun struct {
	Scenario string            `json:"scenario"`
	Result   *optimizer.Result `json:"-"`
	Files    []string          `json:"files,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// BatchResult is the outcome of a batch
type BatchResult struct {
	BatchID    string          `json:"batch_id"`
	StartedAt  time.Time       `json:"started_at"`
	DurationMs float64         `json:"duration_ms"`
	Runs       []ScenarioRun   `json:"runs"`
	Comparison []ComparisonRow `json:"comparison"`
	Files      []string        `json:"files,omitempty"`
}

// Failed returns the number of runs that produced no result
func (b *BatchResult) Failed() int {
	n := 0
	for _, r := range b.Runs {
		if r.Result == nil {
			n++
		}
	}
	return n
}

// Pipeline runs scenarios through a Runner and persists the results
type Pipeline struct {
	runner optimizer.Runner
	store  storage.Storage
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a pipeline. store may be nil when cfg.Formats is empty.
func New(runner optimizer.Runner, store storage.Storage, cfg Config) *Pipeline {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Pipeline{
		runner: runner,
		store:  store,
		cfg:    cfg,
		logger: log.With().Str("component", "pipeline").Logger(),
		now:    time.Now,
	}
}

// Run solves every scenario against reg. A failing scenario is recorded in
// its ScenarioRun and does not stop the others; only context cancellation
// and persistence failures abort the batch.
func (p *Pipeline) Run(ctx context.Context, reg *optimizer.Registry, scenarios []optimizer.Scenario) (*BatchResult, error) {
	if len(scenarios) == 0 {
		return nil, errors.New("no scenarios to run")
	}
	if len(p.cfg.Formats) > 0 && p.store == nil {
		return nil, errors.New("result formats configured without storage")
	}

	batch := &BatchResult{
		BatchID:   uuid.NewString(),
		StartedAt: p.now(),
		Runs:      make([]ScenarioRun, len(scenarios)),
	}
	logger := p.logger.With().Str("batch_id", batch.BatchID).Logger()
	logger.Info().Int("scenarios", len(scenarios)).Int("concurrency", p.cfg.Concurrency).Msg("Starting batch")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for k := range scenarios {
		k := k
		sc := scenarios[k].Clone()
		g.Go(func() error {
			run := ScenarioRun{Scenario: sc.Name}
			defer func() { batch.Runs[k] = run }()

			result, err := p.runner.Run(gctx, reg, &sc)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				run.Error = err.Error()
				logger.Warn().Err(err).Str("scenario", sc.Name).Msg("Scenario failed")
				return nil
			}
			run.Result = result

			if len(p.cfg.Formats) > 0 {
				files, err := PersistPhase(gctx, p.store, batch.StartedAt, reg, result, p.cfg.Formats)
				run.Files = files
				if err != nil {
					return fmt.Errorf("persist scenario %s: %w", sc.Name, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch.Comparison = Compare(batch.Runs)
	if len(p.cfg.Formats) > 0 {
		files, err := p.persistBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		batch.Files = files
	}
	batch.DurationMs = float64(p.now().Sub(batch.StartedAt).Microseconds()) / 1000

	logger.Info().
		Int("scenarios", len(batch.Runs)).
		Int("failed", batch.Failed()).
		Float64("duration_ms", batch.DurationMs).
		Msg("Batch complete")
	return batch, nil
}

func (p *Pipeline) persistBatch(ctx context.Context, batch *BatchResult) ([]string, error) {
	summary, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode batch summary: %w", err)
	}
	table, err := encodeComparisonCSV(batch.Comparison)
	if err != nil {
		return nil, fmt.Errorf("encode comparison: %w", err)
	}

	files := []struct {
		name        string
		content     []byte
		contentType string
	}{
		{"batch.json", summary, contentTypeJSON},
		{"comparison.csv", table, contentTypeCSV},
	}
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key := storage.BuildBatchKey(batch.StartedAt, batch.BatchID, f.name)
		if err := p.store.Put(ctx, key, f.content, &storage.Metadata{
			ContentType: f.contentType,
			RunID:       batch.BatchID,
		}); err != nil {
			return nil, fmt.Errorf("store %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
