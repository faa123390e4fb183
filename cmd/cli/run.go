package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kosarica/allocation-service/internal/optimizer"
	"github.com/kosarica/allocation-service/internal/pipeline"
	"github.com/kosarica/allocation-service/internal/scenarios"
	"github.com/kosarica/allocation-service/internal/solver"
	"github.com/kosarica/allocation-service/internal/storage"
)

var (
	runSKUs          string
	runStores        string
	runScenarios     []string
	runScenariosFile string
	runOutput        string
	runPersist       bool
	runStrict        bool
	runConcurrency   int
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Allocate stock for one or more scenarios",
	Long: `Run reads the SKU and store files, resolves the requested scenarios from the
catalogue and the built-in presets, and allocates stock for each scenario.
Scenarios run concurrently; a failing scenario is reported and does not stop
the others. With --persist, result files are written to the configured storage.`,
	Example: `  allocator run --skus skus.csv --stores stores.csv
  allocator run --skus skus.xlsx --stores stores.csv --scenario baseline,tiered --output json
  allocator run --skus skus.csv --stores stores.csv --scenarios-file scenarios.yaml --persist`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runSKUs, "skus", "", "SKU file, CSV or XLSX (required)")
	runCmd.Flags().StringVar(&runStores, "stores", "", "Store file, CSV or XLSX (required)")
	runCmd.Flags().StringSliceVar(&runScenarios, "scenario", nil, "Scenario names, comma separated (default: configured default)")
	runCmd.Flags().StringVar(&runScenariosFile, "scenarios-file", "", "Scenario catalogue file (overrides scenarios.file)")
	runCmd.Flags().StringVar(&runOutput, "output", "table", "Output format: table or json")
	runCmd.Flags().BoolVar(&runPersist, "persist", false, "Write result files to storage")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "Fail on any row level parse error")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Scenarios solved at once (default: runner.concurrency)")
	runCmd.MarkFlagRequired("skus")
	runCmd.MarkFlagRequired("stores")
}

func runRun(cmd *cobra.Command, args []string) error {
	output := strings.ToLower(runOutput)
	if output != "table" && output != "json" {
		return fmt.Errorf("invalid output format: %s (use 'table' or 'json')", runOutput)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	parsed, err := pipeline.ParsePhase(ctx, pipeline.Inputs{
		SKUFile:         runSKUs,
		StoreFile:       runStores,
		DefaultCapacity: cfg.Runner.DefaultCapacity,
		Strict:          runStrict,
	})
	if err != nil {
		return err
	}

	catalogue, err := loadCatalogue(runScenariosFile)
	if err != nil {
		return err
	}
	names := runScenarios
	if len(names) == 0 {
		names = []string{cfg.Scenarios.Default}
	}
	selected, err := catalogue.Resolve(names)
	if err != nil {
		return err
	}

	var (
		store   storage.Storage
		formats []string
	)
	if runPersist {
		store, err = storage.New(storage.StorageType(cfg.Storage.Type), cfg.Storage.BasePath)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		formats = cfg.Runner.Formats
	}

	concurrency := cfg.Runner.Concurrency
	if runConcurrency > 0 {
		concurrency = runConcurrency
	}

	p := pipeline.New(newRunner(), store, pipeline.Config{Concurrency: concurrency, Formats: formats})
	batch, err := p.Run(ctx, parsed.Registry, selected)
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	if output == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(batch); err != nil {
			return err
		}
	} else {
		fmt.Printf("\nBatch %s: %d SKUs, %d stores\n", batch.BatchID, parsed.Registry.NumSKUs(), parsed.Registry.NumStores())
		fmt.Println(strings.Repeat("-", 60))
		if err := pipeline.WriteTable(os.Stdout, batch.Comparison); err != nil {
			return err
		}
		for _, run := range batch.Runs {
			if run.Error != "" {
				fmt.Printf("%s: %s\n", run.Scenario, run.Error)
			}
		}
		if len(batch.Files) > 0 {
			fmt.Printf("\nResults written under %s\n", cfg.Storage.BasePath)
		}
	}

	if batch.Failed() == len(batch.Runs) {
		return fmt.Errorf("all %d scenarios failed", len(batch.Runs))
	}
	return nil
}

func newRunner() optimizer.Runner {
	metrics := optimizer.NewMetricsRecorder()
	breaker := optimizer.NewCircuitBreaker("exact_solver", &cfg.Breaker, metrics, logger)
	return optimizer.NewTwoStepOptimizer(
		solver.NewBranchAndBound(cfg.Solver),
		metrics,
		optimizer.WithCircuitBreaker(breaker),
	)
}

// loadCatalogue loads path, or the configured catalogue when path is
// empty. Presets are available either way.
func loadCatalogue(path string) (*scenarios.Catalogue, error) {
	if path == "" && cfg != nil {
		path = cfg.Scenarios.File
	}
	if path == "" {
		return scenarios.NewCatalogue(), nil
	}
	return scenarios.Load(path)
}
