package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pixl-ae/leadflow/internal/config"
	"github.com/pixl-ae/leadflow/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "leadflow",
	Short: "Lead-qualification chat engine for Pixl.ae",
	Long: `leadflow walks website visitors through persona-specific scripted flows,
collects their contact details and answers everything else with a streamed
language model.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("flow", "", "Flow table YAML file (default: embedded table)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("flow") {
		cfg.Flow.File, _ = cmd.Flags().GetString("flow")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(level), nil
}
