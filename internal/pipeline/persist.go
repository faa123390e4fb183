package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/kosarica/allocation-service/internal/optimizer"
	"github.com/kosarica/allocation-service/internal/storage"
)

// Result file formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	contentTypeJSON = "application/json"
	contentTypeCSV  = "text/csv"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// PersistPhase writes a run's result files and returns their keys
func PersistPhase(ctx context.Context, store storage.Storage, date time.Time, reg *optimizer.Registry, result *optimizer.Result, formats []string) ([]string, error) {
	keys := make([]string, 0, len(formats))
	for _, format := range formats {
		var (
			content     []byte
			filename    string
			contentType string
			err         error
		)
		switch format {
		case FormatJSON:
			filename, contentType = "result.json", contentTypeJSON
			content, err = json.MarshalIndent(result, "", "  ")
		case FormatCSV:
			filename, contentType = "allocations.csv", contentTypeCSV
			content, err = encodeAllocationsCSV(result)
		case FormatXLSX:
			filename, contentType = "allocations.xlsx", contentTypeXLSX
			content, err = encodeWorkbook(reg, result)
		default:
			return keys, fmt.Errorf("unknown result format %q", format)
		}
		if err != nil {
			return keys, fmt.Errorf("encode %s: %w", filename, err)
		}

		key := storage.BuildRunKey(date, result.Metadata.Scenario, result.Metadata.RunID, filename)
		if err := store.Put(ctx, key, content, &storage.Metadata{
			ContentType: contentType,
			RunID:       result.Metadata.RunID,
			Scenario:    result.Metadata.Scenario,
			Format:      format,
		}); err != nil {
			return keys, fmt.Errorf("store %s: %w", key, err)
		}
		keys = append(keys, key)
	}

	log.Debug().
		Str("scenario", result.Metadata.Scenario).
		Str("run_id", result.Metadata.RunID).
		Strs("keys", keys).
		Msg("Persisted run result")
	return keys, nil
}

func encodeAllocationsCSV(result *optimizer.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"sku_id", "store_id", "style", "color", "size", "quantity", "tier", "scarce", "covered"}); err != nil {
		return nil, err
	}
	for _, r := range result.Records {
		if err := w.Write([]string{
			r.SKUID, r.StoreID, r.Style, r.Color, r.Size,
			strconv.Itoa(r.Quantity),
			strconv.Itoa(r.Tier),
			strconv.FormatBool(r.Scarce),
			strconv.FormatBool(r.Covered),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// encodeWorkbook writes a summary sheet, the SKU by store matrix and the
// per-store and per-SKU summaries.
func encodeWorkbook(reg *optimizer.Registry, result *optimizer.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	t := result.Totals
	rows := [][]any{
		{"scenario", result.Metadata.Scenario},
		{"run_id", result.Metadata.RunID},
		{"step1_algorithm", result.Metadata.Step1.Algorithm},
		{"step2_algorithm", result.Metadata.Step2.Algorithm},
		{"total_stock", t.TotalStock},
		{"total_allocated", t.TotalAllocated},
		{"allocation_rate", t.AllocationRate},
		{"stores_covered", t.StoresCovered},
		{"target_stores", t.TargetStores},
		{"scarce_skus", t.ScarceSKUs},
		{"avg_color_coverage", t.AvgColorCoverage},
		{"avg_size_coverage", t.AvgSizeCoverage},
		{"store_totals_gini", t.StoreTotalsGini},
		{"envelope_shortfalls", t.EnvelopeShortfalls},
		{"envelope_excesses", t.EnvelopeExcesses},
	}
	if err := writeRows(f, summary, rows); err != nil {
		return nil, err
	}

	const matrix = "matrix"
	if _, err := f.NewSheet(matrix); err != nil {
		return nil, err
	}
	header := []any{"sku_id"}
	for _, s := range reg.Stores() {
		header = append(header, s.ID)
	}
	rows = [][]any{header}
	for i, sku := range reg.SKUs() {
		row := []any{sku.ID}
		for j := range reg.Stores() {
			row = append(row, result.Matrix[i][j])
		}
		rows = append(rows, row)
	}
	if err := writeRows(f, matrix, rows); err != nil {
		return nil, err
	}

	const stores = "stores"
	if _, err := f.NewSheet(stores); err != nil {
		return nil, err
	}
	rows = [][]any{{"store_id", "tier", "capacity", "qty_sum", "allocated", "expected", "fill_ratio", "sku_count", "color_coverage", "size_coverage"}}
	for _, s := range result.Stores {
		rows = append(rows, []any{s.StoreID, s.Tier, s.Capacity, s.QtySum, s.Allocated, s.Expected, s.FillRatio, s.SKUCount, s.ColorCoverage, s.SizeCoverage})
	}
	if err := writeRows(f, stores, rows); err != nil {
		return nil, err
	}

	const skus = "skus"
	if _, err := f.NewSheet(skus); err != nil {
		return nil, err
	}
	rows = [][]any{{"sku_id", "style", "color", "size", "scarce", "stock", "allocated", "store_count", "max_per_store"}}
	for _, s := range result.SKUs {
		rows = append(rows, []any{s.SKUID, s.Style, s.Color, s.Size, s.Scarce, s.Stock, s.Allocated, s.StoreCount, s.MaxPerStore})
	}
	if err := writeRows(f, skus, rows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
