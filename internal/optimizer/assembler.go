package optimizer

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// AllocationRecord is one non-zero allocation.
type AllocationRecord struct {
	SKUID    string `json:"sku_id"`
	StoreID  string `json:"store_id"`
	Style    string `json:"style,omitempty"`
	Color    string `json:"color"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
	Tier     int    `json:"tier"`
	Scarce   bool   `json:"scarce"`
	Covered  bool   `json:"covered"`
}

// StoreSummary aggregates one store.
type StoreSummary struct {
	StoreID       string  `json:"store_id"`
	Tier          int     `json:"tier"`
	Capacity      int     `json:"capacity"`
	QtySum        float64 `json:"qty_sum"`
	Allocated     int     `json:"allocated"`
	Utilization   float64 `json:"utilization"`
	Expected      float64 `json:"expected"`
	FillRatio     float64 `json:"fill_ratio"`
	SKUCount      int     `json:"sku_count"`
	ColorCoverage float64 `json:"color_coverage"`
	SizeCoverage  float64 `json:"size_coverage"`
}

// SKUSummary aggregates one SKU.
type SKUSummary struct {
	SKUID       string  `json:"sku_id"`
	Style       string  `json:"style,omitempty"`
	Color       string  `json:"color"`
	Size        string  `json:"size"`
	Scarce      bool    `json:"scarce"`
	Stock       int     `json:"stock"`
	Allocated   int     `json:"allocated"`
	Remaining   int     `json:"remaining"`
	StoreCount  int     `json:"store_count"`
	StoreReach  float64 `json:"store_reach"`
	MaxPerStore int     `json:"max_per_store"`
	Shortfalls  int     `json:"envelope_shortfalls"`
	Excesses    int     `json:"envelope_excesses"`
}

// Totals are run-wide figures.
type Totals struct {
	TotalStock         int     `json:"total_stock"`
	TotalAllocated     int     `json:"total_allocated"`
	AllocationRate     float64 `json:"allocation_rate"`
	TargetStores       int     `json:"target_stores"`
	StoresCovered      int     `json:"stores_covered"`
	ScarceSKUs         int     `json:"scarce_skus"`
	AbundantSKUs       int     `json:"abundant_skus"`
	AvgColorCoverage   float64 `json:"avg_color_coverage"`
	AvgSizeCoverage    float64 `json:"avg_size_coverage"`
	StoreTotalsGini    float64 `json:"store_totals_gini"`
	StoreTotalsStdDev  float64 `json:"store_totals_std_dev"`
	EnvelopeShortfalls int     `json:"envelope_shortfalls"`
	EnvelopeExcesses   int     `json:"envelope_excesses"`
	CoverageShortfalls int     `json:"coverage_shortfalls"`
	TierCounts         [3]int  `json:"tier_counts"`
}

// RunMetadata describes how a run was produced.
type RunMetadata struct {
	RunID           string         `json:"run_id"`
	Scenario        string         `json:"scenario"`
	Options         map[string]any `json:"options"`
	StartedAt       time.Time      `json:"started_at"`
	Step1           StageReport    `json:"step1"`
	Step2           StageReport    `json:"step2"`
	TotalDurationMs float64        `json:"total_duration_ms"`
}

// Result is the assembled output of one run.
type Result struct {
	Metadata RunMetadata        `json:"metadata"`
	Totals   Totals             `json:"totals"`
	Records  []AllocationRecord `json:"allocations"`
	Stores   []StoreSummary     `json:"stores"`
	SKUs     []SKUSummary       `json:"skus"`
	Matrix   Matrix             `json:"-"`
}

// AssembleInput carries everything the assembler reads.
type AssembleInput struct {
	Registry       *Registry
	Classification *Classification
	Tiers          *Tiers
	Envelope       *Envelope
	Coverage       *Coverage
	Matrix         Matrix
	Metadata       RunMetadata
}

// Assemble turns an allocation matrix into records and summaries. Records
// are ordered by SKU then store in registry order.
func Assemble(in AssembleInput) *Result {
	reg, x := in.Registry, in.Matrix
	nSKU, nStore := reg.NumSKUs(), reg.NumStores()
	res := &Result{Metadata: in.Metadata, Matrix: x.Clone()}

	for i := 0; i < nSKU; i++ {
		sku := reg.SKU(i)
		for j := 0; j < nStore; j++ {
			if q := x[i][j]; q > 0 {
				res.Records = append(res.Records, AllocationRecord{
					SKUID:    sku.ID,
					StoreID:  reg.Store(j).ID,
					Style:    sku.Style,
					Color:    sku.Color,
					Size:     sku.Size,
					Quantity: q,
					Tier:     in.Tiers.Tier(j),
					Scarce:   in.Classification.IsScarce(i),
					Covered:  in.Coverage.Applies(i) && in.Coverage.Covered(i, j),
				})
			}
		}
	}

	colorTotal, sizeTotal := len(reg.Colors()), len(reg.Sizes())
	targets := reg.TargetStores()
	storeTotals := make([]float64, 0, len(targets))
	var colorSum, sizeSum float64
	for j := 0; j < nStore; j++ {
		store := reg.Store(j)
		colors := make(map[string]struct{})
		sizes := make(map[string]struct{})
		skuCount := 0
		for i := 0; i < nSKU; i++ {
			if x[i][j] > 0 {
				skuCount++
				colors[reg.SKU(i).Color] = struct{}{}
				sizes[reg.SKU(i).Size] = struct{}{}
			}
		}
		s := StoreSummary{
			StoreID:       store.ID,
			Tier:          in.Tiers.Tier(j),
			Capacity:      store.Capacity,
			QtySum:        store.QtySum,
			Allocated:     x.StoreTotal(j),
			Expected:      in.Envelope.StoreExpected(j),
			SKUCount:      skuCount,
			ColorCoverage: ratio(len(colors), colorTotal),
			SizeCoverage:  ratio(len(sizes), sizeTotal),
		}
		s.Utilization = ratio(s.Allocated, store.Capacity)
		if s.Expected > 0 {
			s.FillRatio = float64(s.Allocated) / s.Expected
		}
		res.Stores = append(res.Stores, s)
		if store.Capacity > 0 {
			storeTotals = append(storeTotals, float64(s.Allocated))
			colorSum += s.ColorCoverage
			sizeSum += s.SizeCoverage
			if s.Allocated > 0 {
				res.Totals.StoresCovered++
			}
		}
	}

	for i := 0; i < nSKU; i++ {
		sku := reg.SKU(i)
		s := SKUSummary{
			SKUID:     sku.ID,
			Style:     sku.Style,
			Color:     sku.Color,
			Size:      sku.Size,
			Scarce:    in.Classification.IsScarce(i),
			Stock:     sku.Stock,
			Allocated: x.SKUTotal(i),
		}
		s.Remaining = sku.Stock - s.Allocated
		for j := 0; j < nStore; j++ {
			q := x[i][j]
			if q > 0 {
				s.StoreCount++
			}
			s.MaxPerStore = max(s.MaxPerStore, q)
			if q == 0 && in.Coverage.Applies(i) && in.Coverage.Covered(i, j) {
				res.Totals.CoverageShortfalls++
			}
			if in.Envelope.Enabled() {
				if q < in.Envelope.Lower(i, j) {
					s.Shortfalls++
				}
				if q > in.Envelope.Upper(i, j) {
					s.Excesses++
				}
			}
		}
		s.StoreReach = ratio(s.StoreCount, len(targets))
		res.SKUs = append(res.SKUs, s)
		res.Totals.EnvelopeShortfalls += s.Shortfalls
		res.Totals.EnvelopeExcesses += s.Excesses
		if s.Scarce {
			res.Totals.ScarceSKUs++
		} else {
			res.Totals.AbundantSKUs++
		}
	}

	res.Totals.TotalStock = reg.TotalStock()
	res.Totals.TotalAllocated = x.Total()
	res.Totals.AllocationRate = ratio(res.Totals.TotalAllocated, res.Totals.TotalStock)
	res.Totals.TargetStores = len(targets)
	if len(targets) > 0 {
		res.Totals.AvgColorCoverage = colorSum / float64(len(targets))
		res.Totals.AvgSizeCoverage = sizeSum / float64(len(targets))
	}
	res.Totals.StoreTotalsGini = gini(storeTotals)
	if len(storeTotals) > 0 {
		res.Totals.StoreTotalsStdDev = stat.PopStdDev(storeTotals, nil)
	}
	res.Totals.TierCounts = in.Tiers.Counts()
	return res
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// gini returns the Gini coefficient of non-negative values, 0 for an empty
// or all-zero input.
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	sum, weighted := 0.0, 0.0
	for k, v := range sorted {
		sum += v
		weighted += float64(k+1) * v
	}
	if sum == 0 {
		return 0
	}
	return 2*weighted/(float64(n)*sum) - float64(n+1)/float64(n)
}
