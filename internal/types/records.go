package types

// FileType is the format of an input file
type FileType string

const (
	FileTypeCSV  FileType = "csv"
	FileTypeXLSX FileType = "xlsx"
)

// RecordKind selects which records a file holds
type RecordKind string

const (
	KindSKUs   RecordKind = "skus"
	KindStores RecordKind = "stores"
)

// SKURecord is one parsed SKU row
type SKURecord struct {
	ID        string `json:"sku"`
	Style     string `json:"style,omitempty"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	Stock     int    `json:"stock"`
	RowNumber int    `json:"rowNumber"`
}

// StoreRecord is one parsed store row. Capacity is nil when the input has
// no capacity column or the cell is empty.
type StoreRecord struct {
	ID        string  `json:"store"`
	QtySum    float64 `json:"qtySum"`
	Capacity  *int    `json:"capacity,omitempty"`
	RowNumber int     `json:"rowNumber"`
}

// ParseError represents an error during parsing
type ParseError struct {
	RowNumber     *int    `json:"rowNumber,omitempty"`
	Field         *string `json:"field,omitempty"`
	Message       string  `json:"message"`
	OriginalValue *string `json:"originalValue,omitempty"`
}

// ParseWarning represents a warning during parsing
type ParseWarning struct {
	RowNumber *int    `json:"rowNumber,omitempty"`
	Field     *string `json:"field,omitempty"`
	Message   string  `json:"message"`
}

// ParseResult holds the records of one file. Row-level problems are
// collected in Errors and never abort the parse.
type ParseResult struct {
	Kind      RecordKind     `json:"kind"`
	SKUs      []SKURecord    `json:"skus,omitempty"`
	Stores    []StoreRecord  `json:"stores,omitempty"`
	Errors    []ParseError   `json:"errors,omitempty"`
	Warnings  []ParseWarning `json:"warnings,omitempty"`
	TotalRows int            `json:"totalRows"`
	ValidRows int            `json:"validRows"`
}

// HasErrors reports whether any row failed to parse
func (r *ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// IntPtr returns a pointer to an int
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to a string
func StringPtr(s string) *string { return &s }
