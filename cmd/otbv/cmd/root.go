package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/OpenTraceLab/OpenTraceBV/internal/config"
	"github.com/OpenTraceLab/OpenTraceBV/internal/diag"
	"github.com/OpenTraceLab/OpenTraceBV/pkg/netrefs"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string
	logLevel   string
	dataDir    string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "otbv",
	Short: "OpenTraceBV - Boardview ingestion and net guardrails",
	Long: `OpenTraceBV (otbv) reads boardview files and keeps a per-board fact base
of nets and the components on them:
  - format detection and decoding of text, BRD, encrypted and compressed boardviews
  - per-board caches with ranked probe points
  - net name validation and correction against the parsed board

Examples:
  otbv detect board.bvr                          # Show the detected format
  otbv parse --json board.brd                    # Decode and dump the result
  otbv ingest --board 820-02020 ./820-02020/     # Build the board caches
  otbv points --board 820-02020 PP3V3_S5         # Best places to measure a net
  otbv guard --board 820-02020 "check PP3V3_S0"  # Validate net names in text`,
	Version:           "0.9.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "cache directory (overrides config)")
}

// setup loads the configuration and builds the logger before any command
// runs. Flags win over the config file and environment.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg = config.DefaultConfig()
		cfg.ApplyEnv(os.Getenv)
		err = cfg.Validate()
	}
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	switch {
	case logLevel != "":
		cfg.Log.Level = logLevel
	case verbose:
		cfg.Log.Level = "debug"
	}
	logger, err = diag.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	return err
}

func store() *netrefs.Store {
	return netrefs.NewStore(cfg.DataDir)
}
