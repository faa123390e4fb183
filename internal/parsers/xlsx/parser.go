package xlsx

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/kosarica/allocation-service/internal/parsers/records"
	"github.com/kosarica/allocation-service/internal/types"
)

// headerScanRows bounds the header search when HeaderRow is 0.
const headerScanRows = 10

// Parser reads SKU or store records from one worksheet
type Parser struct {
	options XlsxParserOptions
}

// NewParser creates a new XLSX parser
func NewParser(options XlsxParserOptions) *Parser {
	if options.HeaderRow < 0 {
		options.HeaderRow = 0
	}
	return &Parser{options: options}
}

// Parse never fails on bad input. An unreadable workbook or a missing
// sheet is reported as a ParseError in the result.
func (p *Parser) Parse(content []byte) (*types.ParseResult, error) {
	fail := func(format string, args ...any) (*types.ParseResult, error) {
		return &types.ParseResult{
			Kind:     p.options.Kind,
			Errors:   []types.ParseError{{Message: fmt.Sprintf(format, args...)}},
			Warnings: []types.ParseWarning{},
		}, nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return fail("Failed to parse Excel file: %v", err)
	}
	defer f.Close()

	sheet, err := p.sheet(f)
	if err != nil {
		return fail("%v", err)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fail("Failed to read worksheet %q: %v", sheet, err)
	}

	header := p.headerIndex(rows)
	if header >= len(rows) {
		return &types.ParseResult{
			Kind:     p.options.Kind,
			Errors:   []types.ParseError{},
			Warnings: []types.ParseWarning{{Message: fmt.Sprintf("worksheet %q has no header row", sheet)}},
		}, nil
	}

	headers := make([]string, len(rows[header]))
	for i, h := range rows[header] {
		headers[i] = strings.TrimSpace(h)
	}
	result := records.Map(headers, rows[header+1:], header+2, records.Options{
		Kind:          p.options.Kind,
		Mapping:       p.options.ColumnMapping,
		SkipEmptyRows: p.options.SkipEmptyRows,
	})

	log.Debug().
		Str("kind", string(p.options.Kind)).
		Str("sheet", sheet).
		Int("header_row", header+1).
		Int("total_rows", result.TotalRows).
		Int("valid_rows", result.ValidRows).
		Int("errors", len(result.Errors)).
		Msg("Parsed XLSX")
	return result, nil
}

// headerIndex returns the 0-based header row. With HeaderRow unset it is
// the first of the leading rows whose cells resolve every required column,
// so title rows above the table are skipped. It defaults to the first row.
func (p *Parser) headerIndex(rows [][]string) int {
	if p.options.HeaderRow > 0 {
		return p.options.HeaderRow - 1
	}
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		if p.options.ColumnMapping.Resolve(rows[i]).Check(p.options.Kind) == nil {
			return i
		}
	}
	return 0
}

func (p *Parser) sheet(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	switch {
	case len(sheets) == 0:
		return "", fmt.Errorf("workbook has no sheets")
	case p.options.Sheet == "":
		return sheets[0], nil
	case slices.Contains(sheets, p.options.Sheet):
		return p.options.Sheet, nil
	}
	return "", fmt.Errorf("sheet %q not found. Available sheets: %s", p.options.Sheet, strings.Join(sheets, ", "))
}
