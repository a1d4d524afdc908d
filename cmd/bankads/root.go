package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bankads/internal/config"
	"github.com/jackzampolin/bankads/internal/home"
	"github.com/jackzampolin/bankads/version"
)

var (
	cfgFile      string
	outputDir    string
	logLevel     string
	periodStart  string
	periodEnd    string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "bankads",
	Short: "Bank ad creatives pipeline with LLM-powered OCR and classification",
	Long: `Bankads collects the display ads a fixed set of banks ran during a reporting
period and turns them into a BI datasource.

The pipeline includes:
  - Creative discovery through the ad-transparency search API
  - Image download and vision-model OCR with product classification
  - CSV and Parquet export of the result table
  - Tableau datasource publish and a Slack leaderboard summary`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./bankads.yaml or ~/.bankads/bankads.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputDir, "output-dir", "", "output directory (default: out)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVar(
		&periodStart, "start", "", "period start as YYYYMMDD (overrides config)",
	)
	rootCmd.PersistentFlags().StringVar(
		&periodEnd, "end", "", "period end as YYYYMMDD (overrides config)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format for runs and config: yaml or json",
	)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(logLevel))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", logLevel)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger, nil
}

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := cm.Get()
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if periodStart != "" {
		cfg.Period.Start = periodStart
	}
	if periodEnd != "" {
		cfg.Period.End = periodEnd
	}
	if used := cm.ConfigFileUsed(); used != "" {
		slog.Debug("loaded config", "path", used)
	}
	return cfg, nil
}

func openHome(cfg *config.Config) (*home.Dir, error) {
	dir, err := home.New(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := dir.EnsureExists(); err != nil {
		return nil, err
	}
	return dir, nil
}
