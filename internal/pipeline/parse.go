package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kosarica/allocation-service/internal/optimizer"
	"github.com/kosarica/allocation-service/internal/parsers"
	"github.com/kosarica/allocation-service/internal/types"
)

// Inputs names the SKU and store files of a run
type Inputs struct {
	SKUFile   string
	StoreFile string
	// DefaultCapacity applies to stores without a capacity value.
	// 0 means the total stock, which leaves the store unconstrained.
	DefaultCapacity int
	// Strict fails the parse phase on any row error.
	Strict bool
}

// ParseResult holds the parsed inputs and the registry built from them
type ParseResult struct {
	Registry *optimizer.Registry
	SKUs     *types.ParseResult
	Stores   *types.ParseResult
}

// ParsePhase reads both input files and builds the registry. Invalid rows
// are logged and skipped unless in.Strict is set.
func ParsePhase(ctx context.Context, in Inputs) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	skus, err := parseInput(in.SKUFile, types.KindSKUs, in.Strict)
	if err != nil {
		return nil, err
	}
	stores, err := parseInput(in.StoreFile, types.KindStores, in.Strict)
	if err != nil {
		return nil, err
	}

	reg, err := BuildRegistry(skus.SKUs, stores.Stores, in.DefaultCapacity)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("skus", reg.NumSKUs()).
		Int("stores", reg.NumStores()).
		Int("total_stock", reg.TotalStock()).
		Msg("Built registry")

	return &ParseResult{Registry: reg, SKUs: skus, Stores: stores}, nil
}

func parseInput(path string, kind types.RecordKind, strict bool) (*types.ParseResult, error) {
	log.Info().Str("filename", path).Str("kind", string(kind)).Msg("Parsing file")

	result, err := parsers.ParseFile(path, kind)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("total_rows", result.TotalRows).
		Int("valid_rows", result.ValidRows).
		Str("filename", path).
		Msg("Parsed file")

	if len(result.Errors) > 0 {
		logParseErrors(path, result.Errors)
		if strict || result.ValidRows == 0 {
			return nil, fmt.Errorf("%s: %d parse errors, first: %s", path, len(result.Errors), result.Errors[0].Message)
		}
	}
	return result, nil
}

// logParseErrors logs the first five errors of a file
func logParseErrors(path string, errs []types.ParseError) {
	log.Warn().
		Int("error_count", len(errs)).
		Str("filename", path).
		Msg("Parse errors found")

	limit := min(len(errs), 5)
	for _, e := range errs[:limit] {
		event := log.Warn().
			Str("error", e.Message).
			Str("filename", path)
		if e.RowNumber != nil {
			event = event.Int("row_number", *e.RowNumber)
		}
		if e.Field != nil {
			event = event.Str("field", *e.Field)
		}
		event.Msg("Parse error")
	}
}

// BuildRegistry converts parsed records into a registry. Stores without a
// capacity get defaultCapacity, or the total stock when that is 0.
func BuildRegistry(skuRecords []types.SKURecord, storeRecords []types.StoreRecord, defaultCapacity int) (*optimizer.Registry, error) {
	skus := make([]optimizer.SKU, len(skuRecords))
	totalStock := 0
	for i, r := range skuRecords {
		skus[i] = optimizer.SKU{ID: r.ID, Style: r.Style, Color: r.Color, Size: r.Size, Stock: r.Stock}
		totalStock += r.Stock
	}

	if defaultCapacity <= 0 {
		defaultCapacity = totalStock
	}
	stores := make([]optimizer.Store, len(storeRecords))
	for j, r := range storeRecords {
		capacity := defaultCapacity
		if r.Capacity != nil {
			capacity = *r.Capacity
		}
		stores[j] = optimizer.Store{ID: r.ID, Capacity: capacity, QtySum: r.QtySum}
	}

	return optimizer.NewRegistry(skus, stores)
}
