// Package cli provides the command-line interface for whitelister.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/whitelister/internal/catalog"
	"github.com/raphaelgruber/whitelister/internal/config"
	"github.com/raphaelgruber/whitelister/internal/ingest"
	"github.com/raphaelgruber/whitelister/internal/metrics"
	"github.com/raphaelgruber/whitelister/internal/task"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Set up once per process in PersistentPreRunE
	cfg       config.Config
	logger    *slog.Logger
	logBuf    *config.LogBuffer
	logPath   string
	closeLog  func() error
	collector *metrics.Collector
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "whitelister",
	Short: "Ingest enrolment exports into a typed table",
	Long: `Whitelister reads UTF-16LE tab-separated enrolment exports deposited in the
application's data directory, validates their columns and converts the
enrolment date column to timestamps.

Run without arguments in a terminal to open the interactive UI.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("stdout is not a terminal; use 'whitelister ingest' for non-interactive runs")
		}
		return runUI()
	},
}

// setup loads config, prepares the application directory and installs the logger.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" {
		return nil
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}

	if err := config.Bootstrap(cfg); err != nil {
		return fmt.Errorf("initialize application directory: %w", err)
	}

	// The interactive UI owns the terminal, so logs only go to the file and buffer
	var console io.Writer = os.Stderr
	if cmd == rootCmd || cmd == runCmd {
		console = nil
	}

	logBuf = config.NewLogBuffer(cfg.LogLines)
	logger, logPath, closeLog = config.SetupLogger(cfg.LogsDir(), cfg.LogLevel, console, logBuf)
	slog.SetDefault(logger)
	collector = metrics.NewCollector()

	logger.Info("app data directory", "path", cfg.Root)
	logger.Debug("directories ready", "data", cfg.DataDir(), "logs", cfg.LogsDir())
	return nil
}

// newCatalog creates the catalog over the configured data directory.
func newCatalog() *catalog.Catalog {
	return catalog.New(cfg.DataDir(), cfg.Extension, catalog.WithLogger(logger))
}

// newOrchestrator wires catalog, ingestor and metrics from the loaded config.
func newOrchestrator() *task.Orchestrator {
	opts := ingest.DefaultOptions()
	opts.IDColumn = cfg.IDColumn
	opts.DateColumn = cfg.DateColumn
	opts.DateLayout = cfg.DateLayout

	in := ingest.New(opts, ingest.WithLogger(logger), ingest.WithMetrics(collector))
	return task.New(newCatalog(), in, logger)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentPreRunE = setup

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(pathsCmd)
}
