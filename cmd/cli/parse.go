package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kosarica/allocation-service/internal/parsers"
	"github.com/kosarica/allocation-service/internal/types"
)

var (
	parseKind      string
	parseOutput    string
	parseShowLimit int
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a SKU or store file and report what was read",
	Long: `parse reads a CSV or XLSX file as SKU or store records. Encoding, delimiter
and header row are detected and columns are matched by their known aliases.
Row problems are listed rather than aborting the parse.`,
	Example: `  allocator parse ./data/skus.csv --kind skus
  allocator parse ./data/stores.xlsx --kind stores --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	f := parseCmd.Flags()
	f.StringVar(&parseKind, "kind", "", "record kind: skus or stores (required)")
	f.StringVar(&parseOutput, "output", "table", "output format: table or json")
	f.IntVar(&parseShowLimit, "show", 10, "rows of errors and records shown in table output")
	_ = parseCmd.MarkFlagRequired("kind")
}

func runParse(cmd *cobra.Command, args []string) error {
	kind := types.RecordKind(strings.ToLower(parseKind))
	if kind != types.KindSKUs && kind != types.KindStores {
		return fmt.Errorf("invalid kind %q (use skus or stores)", parseKind)
	}

	logger.Info().Str("file", args[0]).Str("kind", string(kind)).Msg("Parsing file")
	result, err := parsers.ParseFile(args[0], kind)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(parseOutput) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "table":
		return writeParseReport(out, args[0], result, parseShowLimit)
	}
	return fmt.Errorf("invalid output format %q (use table or json)", parseOutput)
}

func writeParseReport(out io.Writer, file string, result *types.ParseResult, limit int) error {
	limit = max(limit, 0)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s (%s)\n\n", file, result.Kind)
	fmt.Fprintf(w, "rows\t%d\nvalid\t%d\ninvalid\t%d\nerrors\t%d\nwarnings\t%d\n",
		result.TotalRows, result.ValidRows, result.TotalRows-result.ValidRows,
		len(result.Errors), len(result.Warnings))

	if len(result.Errors) > 0 {
		fmt.Fprintln(w, "\nROW\tFIELD\tVALUE\tERROR")
		for _, e := range result.Errors[:min(len(result.Errors), limit)] {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", intOrDash(e.RowNumber), strOrDash(e.Field), strOrDash(e.OriginalValue), e.Message)
		}
		if n := len(result.Errors) - limit; n > 0 {
			fmt.Fprintf(w, "...\t\t\t%d more\n", n)
		}
	}

	switch result.Kind {
	case types.KindSKUs:
		if len(result.SKUs) > 0 {
			fmt.Fprintln(w, "\nSKU\tSTYLE\tCOLOR\tSIZE\tSTOCK")
			for _, s := range result.SKUs[:min(len(result.SKUs), limit)] {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", s.ID, s.Style, s.Color, s.Size, s.Stock)
			}
		}
	case types.KindStores:
		if len(result.Stores) > 0 {
			fmt.Fprintln(w, "\nSTORE\tQTY_SUM\tCAPACITY")
			for _, s := range result.Stores[:min(len(result.Stores), limit)] {
				fmt.Fprintf(w, "%s\t%g\t%s\n", s.ID, s.QtySum, intOrDash(s.Capacity))
			}
		}
	}
	return w.Flush()
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func strOrDash(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}
