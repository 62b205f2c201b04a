// Package cli provides the command-line interface for the replay trainer.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/checkpoint"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/config"
	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/metrics"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	cfgFile      string
	logLevelFlag string
	logFileFlag  string

	// Global config, logger and checkpoint store
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	store      *checkpoint.SQLiteStore
	collector  *metrics.Collector
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "replay",
	Short: "Lifelong text classification with sparse experience replay",
	Long: `Replay trains a text classifier over a stream of tasks while pushing
every seen example through an episodic memory. At a fixed step interval
the trainer swaps the live batch for a uniform sample from memory, so
earlier tasks keep contributing gradient signal long after their data
has gone by.

Training state is checkpointed per task order and epoch into a local
SQLite database, from which saved models can be evaluated or resumed.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// Load config, optionally from a file
		var err error
		if cfgFile != "" {
			cfg, err = config.LoadFile(cfgFile)
			if err != nil {
				return err
			}
		} else {
			cfg = config.Load()
		}
		if logLevelFlag != "" {
			cfg.LogLevel = config.ParseLevel(logLevelFlag)
		}
		if logFileFlag != "" {
			cfg.LogFile = logFileFlag
		}

		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		collector = metrics.NewCollector()

		// Open the checkpoint store
		if dir := filepath.Dir(cfg.CheckpointDB); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create checkpoint directory: %w", err)
			}
		}
		store, err = checkpoint.NewSQLiteStore(cfg.CheckpointDB)
		if err != nil {
			return fmt.Errorf("open checkpoint store: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close checkpoint store: %v\n", err)
			}
		}
		if logCleanup != nil {
			if err := logCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "log file path")

	// Add subcommands
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(checkpointsCmd)
}
