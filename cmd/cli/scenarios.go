package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kosarica/allocation-service/internal/optimizer"
	"github.com/kosarica/allocation-service/internal/scenarios"
)

var (
	scenariosFile   string
	sensitivityBase string
)

// scenariosCmd groups the scenario catalogue commands
var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Inspect, validate and export scenarios",
}

var scenariosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogue scenarios and built-in presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalogue, err := loadCatalogue(scenariosFile)
		if err != nil {
			return err
		}
		custom := make(map[string]bool)
		for _, name := range catalogue.Custom() {
			custom[name] = true
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "Name\tSource\tDescription\n")
		fmt.Fprintf(w, "----\t------\t-----------\n")
		for _, name := range catalogue.Names() {
			sc, err := catalogue.Get(name)
			if err != nil {
				return err
			}
			source := "preset"
			if custom[name] {
				source = "catalogue"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, source, sc.Description)
		}
		return w.Flush()
	},
}

var scenariosShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a resolved scenario as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalogue, err := loadCatalogue(scenariosFile)
		if err != nil {
			return err
		}
		sc, err := catalogue.Get(args[0])
		if err != nil {
			return err
		}
		return scenarios.Export(os.Stdout, []optimizer.Scenario{sc})
	},
}

var scenariosValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a scenario catalogue file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalogue, err := scenarios.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d scenarios OK\n", args[0], len(catalogue.Custom()))
		return nil
	},
}

var scenariosExportCmd = &cobra.Command{
	Use:   "export [name...]",
	Short: "Write scenarios as a catalogue file",
	Long: `Export writes the named scenarios, or every catalogue scenario and preset when
no names are given, as YAML that "scenarios validate" and --scenarios-file accept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalogue, err := loadCatalogue(scenariosFile)
		if err != nil {
			return err
		}
		selected, err := catalogue.Resolve(args)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			selected = scenarios.SortedByName(selected)
		}
		return scenarios.Export(os.Stdout, selected)
	},
}

var scenariosSensitivityCmd = &cobra.Command{
	Use:   "sensitivity",
	Short: "Export one-at-a-time variations of a base scenario",
	Example: `  allocator scenarios sensitivity --base hybrid > sensitivity.yaml
  allocator run --skus skus.csv --stores stores.csv --scenarios-file sensitivity.yaml --scenario hybrid_coverage_weight_0.5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalogue, err := loadCatalogue(scenariosFile)
		if err != nil {
			return err
		}
		base, err := catalogue.Get(sensitivityBase)
		if err != nil {
			return err
		}
		return scenarios.Export(os.Stdout, optimizer.SensitivityScenarios(base))
	},
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
	scenariosCmd.AddCommand(scenariosListCmd, scenariosShowCmd, scenariosValidateCmd, scenariosExportCmd, scenariosSensitivityCmd)

	scenariosCmd.PersistentFlags().StringVar(&scenariosFile, "scenarios-file", "", "Scenario catalogue file (overrides scenarios.file)")
	scenariosSensitivityCmd.Flags().StringVar(&sensitivityBase, "base", "", "Base scenario (required)")
	scenariosSensitivityCmd.MarkFlagRequired("base")
}
