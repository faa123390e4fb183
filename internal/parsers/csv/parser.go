package csv

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kosarica/allocation-service/internal/parsers/charset"
	"github.com/kosarica/allocation-service/internal/parsers/records"
	"github.com/kosarica/allocation-service/internal/types"
)

// Parser implements CSV parsing with encoding detection and column mapping
type Parser struct {
	options CsvParserOptions
}

// NewParser creates a new CSV parser with the given options
func NewParser(options CsvParserOptions) *Parser {
	if options.QuoteChar == 0 {
		options.QuoteChar = '"'
	}
	return &Parser{options: options}
}

// Parse parses CSV content into records. The first non-empty line is the header.
func (p *Parser) Parse(content []byte) (*types.ParseResult, error) {
	opts := p.options

	if opts.Encoding == "" {
		opts.Encoding = charset.DetectEncoding(content)
	}
	decoded, err := charset.Decode(content, opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}

	if opts.Delimiter == "" {
		opts.Delimiter = DetectDelimiter(decoded)
	}

	rows, lineErrs := p.parseCSV(decoded, opts)

	// Skip leading blank lines before the header
	start := 0
	for start < len(rows) && isBlank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return &types.ParseResult{
			Kind:     opts.Kind,
			Warnings: []types.ParseWarning{{Message: "CSV file is empty"}},
		}, nil
	}

	result := records.Map(rows[start], rows[start+1:], start+2, records.Options{
		Kind:          opts.Kind,
		Mapping:       opts.ColumnMapping,
		SkipEmptyRows: opts.SkipEmptyRows,
	})
	result.Errors = append(result.Errors, lineErrs...)

	log.Debug().
		Str("kind", string(opts.Kind)).
		Str("encoding", string(opts.Encoding)).
		Str("delimiter", string(opts.Delimiter)).
		Int("total_rows", result.TotalRows).
		Int("valid_rows", result.ValidRows).
		Int("errors", len(result.Errors)).
		Msg("Parsed CSV")

	return result, nil
}

// parseCSV parses CSV content into raw rows, one per line. A line that
// cannot be split becomes an empty row and a row error.
func (p *Parser) parseCSV(content string, opts CsvParserOptions) ([][]string, []types.ParseError) {
	lines := splitLines(content)
	// A trailing newline does not start a row.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	rows := make([][]string, 0, len(lines))
	var errs []types.ParseError
	delimRune := rune(opts.Delimiter[0])
	for n, line := range lines {
		if line == "" {
			rows = append(rows, []string{})
			continue
		}
		fields, err := SplitCSVLine(line, delimRune, opts.QuoteChar)
		if err != nil {
			errs = append(errs, types.ParseError{
				RowNumber:     types.IntPtr(n + 1),
				Message:       err.Error(),
				OriginalValue: types.StringPtr(line),
			})
			rows = append(rows, []string{})
			continue
		}
		for i, f := range fields {
			fields[i] = strings.TrimSpace(f)
		}
		rows = append(rows, fields)
	}
	return rows, errs
}

// splitLines splits content into lines handling different line endings
func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.Split(content, "\n")
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
