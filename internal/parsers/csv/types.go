package csv

import (
	"github.com/kosarica/allocation-service/internal/parsers/charset"
	"github.com/kosarica/allocation-service/internal/parsers/records"
	"github.com/kosarica/allocation-service/internal/types"
)

// CsvDelimiter represents supported CSV delimiters
type CsvDelimiter string

const (
	DelimiterComma     CsvDelimiter = ","
	DelimiterSemicolon CsvDelimiter = ";"
	DelimiterTab       CsvDelimiter = "\t"
	DelimiterPipe      CsvDelimiter = "|"
)

// CsvParserOptions represents CSV parser options. An empty Delimiter or
// Encoding is detected from the content.
type CsvParserOptions struct {
	Kind          types.RecordKind      `json:"kind"`
	Delimiter     CsvDelimiter          `json:"delimiter,omitempty"`
	Encoding      charset.Encoding      `json:"encoding,omitempty"`
	ColumnMapping records.ColumnMapping `json:"columnMapping"`
	SkipEmptyRows bool                  `json:"skipEmptyRows,omitempty"`
	QuoteChar     rune                  `json:"quoteChar,omitempty"`
}

// DefaultOptions returns default CSV parser options for kind
func DefaultOptions(kind types.RecordKind) CsvParserOptions {
	return CsvParserOptions{
		Kind:          kind,
		ColumnMapping: records.DefaultMapping(),
		SkipEmptyRows: true,
		QuoteChar:     '"',
	}
}
