package xlsx

import (
	"github.com/kosarica/allocation-service/internal/parsers/records"
	"github.com/kosarica/allocation-service/internal/types"
)

// XlsxParserOptions represents XLSX parser options
type XlsxParserOptions struct {
	Kind types.RecordKind `json:"kind"`
	// Sheet is the worksheet name; empty selects the first sheet.
	Sheet string `json:"sheet,omitempty"`
	// HeaderRow is the 1-based row holding the column names; 0 detects it.
	HeaderRow     int                   `json:"headerRow,omitempty"`
	ColumnMapping records.ColumnMapping `json:"columnMapping"`
	SkipEmptyRows bool                  `json:"skipEmptyRows,omitempty"`
}

// DefaultOptions returns default XLSX parser options for kind
func DefaultOptions(kind types.RecordKind) XlsxParserOptions {
	return XlsxParserOptions{
		Kind:          kind,
		ColumnMapping: records.DefaultMapping(),
		SkipEmptyRows: true,
	}
}
