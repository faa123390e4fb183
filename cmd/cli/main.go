package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kosarica/allocation-service/config"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
	logger   *zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "allocator",
	Short: "Two-stage SKU allocation across stores",
	Long: `allocator reads SKU and store files (CSV or XLSX), solves one or more
scenarios through the coverage and quantity stages, prints a comparison and
optionally persists each result.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./config/config.yaml or ./config.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "override logging.level")
}

// setup loads the config and installs the logger before every command.
// Commands other than run only warn when the config cannot be loaded.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	var loadErr error
	cfg, loadErr = config.Load(cfgFile)

	logger = newLogger(cfg, logLevel, os.Stderr)
	log.Logger = *logger

	if loadErr != nil {
		if cmd.Name() == "run" {
			return fmt.Errorf("load config: %w", loadErr)
		}
		logger.Warn().Err(loadErr).Msg("Config not loaded, using built-in defaults")
	}
	return nil
}

// newLogger writes to w so table and JSON output stay alone on stdout.
func newLogger(cfg *config.Config, level string, w io.Writer) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	format, noColor := "console", false
	if cfg != nil {
		format, noColor = cfg.Logging.Format, cfg.Logging.NoColor
		if level == "" {
			level = cfg.Logging.Level
		}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, NoColor: noColor}
	}
	l := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return &l
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
