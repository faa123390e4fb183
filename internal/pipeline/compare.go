package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
)

// ComparisonRow summarizes one scenario of a batch
type ComparisonRow struct {
	Scenario         string  `json:"scenario"`
	Step1Algorithm   string  `json:"step1_algorithm"`
	Step2Algorithm   string  `json:"step2_algorithm"`
	Degraded         bool    `json:"degraded"`
	TotalAllocated   int     `json:"total_allocated"`
	AllocationRate   float64 `json:"allocation_rate"`
	StoresCovered    int     `json:"stores_covered"`
	AvgColorCoverage float64 `json:"avg_color_coverage"`
	AvgSizeCoverage  float64 `json:"avg_size_coverage"`
	Gini             float64 `json:"store_totals_gini"`
	DurationMs       float64 `json:"duration_ms"`
	Error            string  `json:"error,omitempty"`
}

// Compare builds one comparison row per run, in run order
func Compare(runs []ScenarioRun) []ComparisonRow {
	rows := make([]ComparisonRow, 0, len(runs))
	for _, run := range runs {
		row := ComparisonRow{Scenario: run.Scenario, Error: run.Error}
		if r := run.Result; r != nil {
			row.Step1Algorithm = r.Metadata.Step1.Algorithm
			row.Step2Algorithm = r.Metadata.Step2.Algorithm
			row.Degraded = r.Metadata.Step1.Degraded || r.Metadata.Step2.Degraded
			row.TotalAllocated = r.Totals.TotalAllocated
			row.AllocationRate = r.Totals.AllocationRate
			row.StoresCovered = r.Totals.StoresCovered
			row.AvgColorCoverage = r.Totals.AvgColorCoverage
			row.AvgSizeCoverage = r.Totals.AvgSizeCoverage
			row.Gini = r.Totals.StoreTotalsGini
			row.DurationMs = r.Metadata.TotalDurationMs
		}
		rows = append(rows, row)
	}
	return rows
}

var comparisonHeader = []string{"scenario", "step1", "step2", "allocated", "rate", "stores", "color_cov", "size_cov", "gini", "ms", "error"}

func (r ComparisonRow) fields() []string {
	return []string{
		r.Scenario,
		r.Step1Algorithm,
		r.Step2Algorithm,
		strconv.Itoa(r.TotalAllocated),
		strconv.FormatFloat(r.AllocationRate, 'f', 3, 64),
		strconv.Itoa(r.StoresCovered),
		strconv.FormatFloat(r.AvgColorCoverage, 'f', 3, 64),
		strconv.FormatFloat(r.AvgSizeCoverage, 'f', 3, 64),
		strconv.FormatFloat(r.Gini, 'f', 3, 64),
		strconv.FormatFloat(r.DurationMs, 'f', 0, 64),
		r.Error,
	}
}

// WriteTable renders rows as an aligned text table
func WriteTable(w io.Writer, rows []ComparisonRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeLine := func(fields []string) {
		for k, f := range fields {
			if k > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, f)
		}
		fmt.Fprintln(tw)
	}
	writeLine(comparisonHeader)
	for _, r := range rows {
		writeLine(r.fields())
	}
	return tw.Flush()
}

func encodeComparisonCSV(rows []ComparisonRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(comparisonHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(r.fields()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
