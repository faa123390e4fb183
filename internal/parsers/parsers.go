// Package parsers reads SKU and store records from CSV and XLSX files.
package parsers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kosarica/allocation-service/internal/parsers/csv"
	"github.com/kosarica/allocation-service/internal/parsers/xlsx"
	"github.com/kosarica/allocation-service/internal/types"
)

// DetectFileType infers the file type from the extension
func DetectFileType(filename string) (types.FileType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", ".tsv":
		return types.FileTypeCSV, nil
	case ".xlsx", ".xlsm":
		return types.FileTypeXLSX, nil
	}
	return "", fmt.Errorf("unsupported input file %q: expected .csv or .xlsx", filename)
}

// Parse parses content of the given type with default options
func Parse(content []byte, fileType types.FileType, kind types.RecordKind) (*types.ParseResult, error) {
	switch fileType {
	case types.FileTypeCSV:
		return csv.NewParser(csv.DefaultOptions(kind)).Parse(content)
	case types.FileTypeXLSX:
		return xlsx.NewParser(xlsx.DefaultOptions(kind)).Parse(content)
	}
	return nil, fmt.Errorf("unsupported file type %q", fileType)
}

// ParseFile reads and parses one input file
func ParseFile(path string, kind types.RecordKind) (*types.ParseResult, error) {
	fileType, err := DetectFileType(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	result, err := Parse(content, fileType, kind)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return result, nil
}
