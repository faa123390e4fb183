// Package records maps tabular rows from CSV or XLSX input onto SKU and
// store records.
package records

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/kosarica/allocation-service/internal/types"
)

// InvalidIndex marks a column that is not present in the header
const InvalidIndex = -1

// ColumnMapping lists accepted header names per field. Header matching
// ignores case, surrounding spaces, and the difference between '_', '-' and ' '.
type ColumnMapping struct {
	SKUID    []string `json:"sku_id" mapstructure:"sku_id"`
	Style    []string `json:"style" mapstructure:"style"`
	Color    []string `json:"color" mapstructure:"color"`
	Size     []string `json:"size" mapstructure:"size"`
	Stock    []string `json:"stock" mapstructure:"stock"`
	StoreID  []string `json:"store_id" mapstructure:"store_id"`
	QtySum   []string `json:"qty_sum" mapstructure:"qty_sum"`
	Capacity []string `json:"capacity" mapstructure:"capacity"`
}

// DefaultMapping accepts both the plain column names and the merchandising
// system export names (PART_CD, COLOR_CD, SIZE_CD, ORD_QTY, SHOP_ID, QTY_SUM).
func DefaultMapping() ColumnMapping {
	return ColumnMapping{
		SKUID:    []string{"sku_id", "sku"},
		Style:    []string{"style", "part_cd"},
		Color:    []string{"color", "colour", "color_cd"},
		Size:     []string{"size", "size_cd"},
		Stock:    []string{"stock", "supply", "ord_qty"},
		StoreID:  []string{"store_id", "store", "shop_id"},
		QtySum:   []string{"qty_sum", "sales", "demand"},
		Capacity: []string{"capacity", "cap"},
	}
}

// Indices holds resolved column positions
type Indices struct {
	SKUID, Style, Color, Size, Stock int
	StoreID, QtySum, Capacity        int
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer("-", "_", " ", "_").Replace(h)
}

// Resolve finds the column of every field in headers
func (m ColumnMapping) Resolve(headers []string) Indices {
	pos := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if _, dup := pos[key]; !dup {
			pos[key] = i
		}
	}
	find := func(aliases []string) int {
		for _, a := range aliases {
			if i, ok := pos[normalizeHeader(a)]; ok {
				return i
			}
		}
		return InvalidIndex
	}
	return Indices{
		SKUID:    find(m.SKUID),
		Style:    find(m.Style),
		Color:    find(m.Color),
		Size:     find(m.Size),
		Stock:    find(m.Stock),
		StoreID:  find(m.StoreID),
		QtySum:   find(m.QtySum),
		Capacity: find(m.Capacity),
	}
}

// Check returns an error naming the first required column that is missing.
// SKU files need a stock column and either an id column or the
// style, color and size columns the id is composed from.
func (idx Indices) Check(kind types.RecordKind) error {
	switch kind {
	case types.KindSKUs:
		if idx.SKUID == InvalidIndex && (idx.Style == InvalidIndex || idx.Color == InvalidIndex || idx.Size == InvalidIndex) {
			return fmt.Errorf("missing required column: sku_id (or style, color and size)")
		}
		if idx.Stock == InvalidIndex {
			return fmt.Errorf("missing required column: stock")
		}
	case types.KindStores:
		if idx.StoreID == InvalidIndex {
			return fmt.Errorf("missing required column: store_id")
		}
		if idx.QtySum == InvalidIndex {
			return fmt.Errorf("missing required column: qty_sum")
		}
	default:
		return fmt.Errorf("unknown record kind %q", kind)
	}
	return nil
}

// Options controls row mapping
type Options struct {
	Kind          types.RecordKind
	Mapping       ColumnMapping
	SkipEmptyRows bool
}

// Map converts a header and data rows into records. firstRow is the
// 1-based line number of rows[0] in the source file.
func Map(headers []string, rows [][]string, firstRow int, opts Options) *types.ParseResult {
	result := &types.ParseResult{
		Kind:     opts.Kind,
		Errors:   make([]types.ParseError, 0),
		Warnings: make([]types.ParseWarning, 0),
	}

	idx := opts.Mapping.Resolve(headers)
	if err := idx.Check(opts.Kind); err != nil {
		result.Errors = append(result.Errors, types.ParseError{Message: err.Error()})
		result.TotalRows = len(rows)
		return result
	}

	for k, raw := range rows {
		rowNumber := firstRow + k
		if opts.SkipEmptyRows && isEmptyRow(raw) {
			continue
		}
		result.TotalRows++

		var errs []types.ParseError
		switch opts.Kind {
		case types.KindSKUs:
			rec, rowErrs := mapSKU(raw, rowNumber, idx)
			if errs = rowErrs; len(errs) == 0 {
				result.SKUs = append(result.SKUs, rec)
			}
		case types.KindStores:
			rec, rowErrs, warns := mapStore(raw, rowNumber, idx)
			result.Warnings = append(result.Warnings, warns...)
			if errs = rowErrs; len(errs) == 0 {
				result.Stores = append(result.Stores, rec)
			}
		}
		if len(errs) > 0 {
			result.Errors = append(result.Errors, errs...)
			continue
		}
		result.ValidRows++
	}
	return result
}

// cell returns the trimmed NFC form of a cell, so decomposed and
// precomposed spellings of an id are the same id.
func cell(row []string, i int) string {
	if i == InvalidIndex || i >= len(row) {
		return ""
	}
	return norm.NFC.String(strings.TrimSpace(row[i]))
}

func rowError(rowNumber int, field, message, value string) types.ParseError {
	e := types.ParseError{
		RowNumber: types.IntPtr(rowNumber),
		Field:     types.StringPtr(field),
		Message:   message,
	}
	if value != "" {
		e.OriginalValue = types.StringPtr(value)
	}
	return e
}

func mapSKU(row []string, rowNumber int, idx Indices) (types.SKURecord, []types.ParseError) {
	var errs []types.ParseError
	rec := types.SKURecord{
		Style:     cell(row, idx.Style),
		Color:     cell(row, idx.Color),
		Size:      cell(row, idx.Size),
		RowNumber: rowNumber,
	}

	rec.ID = cell(row, idx.SKUID)
	if rec.ID == "" && rec.Style != "" && rec.Color != "" && rec.Size != "" {
		rec.ID = rec.Style + "_" + rec.Color + "_" + rec.Size
	}
	if rec.ID == "" {
		errs = append(errs, rowError(rowNumber, "sku_id", "missing SKU identifier", ""))
	}

	raw := cell(row, idx.Stock)
	stock, err := ParseQuantity(raw)
	switch {
	case err != nil:
		errs = append(errs, rowError(rowNumber, "stock", err.Error(), raw))
	case stock < 0:
		errs = append(errs, rowError(rowNumber, "stock", "stock must be non-negative", raw))
	}
	rec.Stock = stock
	return rec, errs
}

func mapStore(row []string, rowNumber int, idx Indices) (types.StoreRecord, []types.ParseError, []types.ParseWarning) {
	var (
		errs  []types.ParseError
		warns []types.ParseWarning
	)
	rec := types.StoreRecord{ID: cell(row, idx.StoreID), RowNumber: rowNumber}
	if rec.ID == "" {
		errs = append(errs, rowError(rowNumber, "store_id", "missing store identifier", ""))
	}

	raw := cell(row, idx.QtySum)
	qty, err := ParseNumber(raw)
	switch {
	case err != nil:
		errs = append(errs, rowError(rowNumber, "qty_sum", err.Error(), raw))
	case qty < 0:
		errs = append(errs, rowError(rowNumber, "qty_sum", "qty_sum must be non-negative", raw))
	}
	rec.QtySum = qty

	if capRaw := cell(row, idx.Capacity); capRaw != "" {
		capacity, err := ParseQuantity(capRaw)
		switch {
		case err != nil:
			errs = append(errs, rowError(rowNumber, "capacity", err.Error(), capRaw))
		case capacity < 0:
			errs = append(errs, rowError(rowNumber, "capacity", "capacity must be non-negative", capRaw))
		default:
			rec.Capacity = types.IntPtr(capacity)
			if capacity == 0 {
				warns = append(warns, types.ParseWarning{
					RowNumber: types.IntPtr(rowNumber),
					Field:     types.StringPtr("capacity"),
					Message:   "store has zero capacity and receives nothing",
				})
			}
		}
	}
	return rec, errs, warns
}

// ParseNumber parses a decimal value. Thousands separators are accepted
// in either the "1,234.5" or the "1.234,5" convention.
func ParseNumber(value string) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty value")
	}
	cleaned := strings.ReplaceAll(value, " ", "")

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastDot == -1 && lastComma != -1 && len(cleaned)-lastComma == 4:
		// "1,234" groups thousands
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case lastComma > lastDot:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case lastDot > lastComma:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	return v, nil
}

// ParseQuantity parses a whole number of units. "12.0" is accepted, "12.5" is not.
func ParseQuantity(value string) (int, error) {
	if n, err := strconv.Atoi(value); err == nil {
		return n, nil
	}
	v, err := ParseNumber(value)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("quantity %q is not a whole number", value)
	}
	return int(v), nil
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
