package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bankads/internal/export"
	"github.com/jackzampolin/bankads/internal/home"
	"github.com/jackzampolin/bankads/internal/report"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the leaderboard summary from the saved CSV",
	Long: `Print the message a run would post, computed from the period's saved CSV.
Nothing is published or posted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reportDate, err := cfg.ReportDate()
		if err != nil {
			return err
		}
		dir, err := home.New(cfg.OutputDir)
		if err != nil {
			return err
		}

		path := dir.CSVPath(reportDate)
		message := report.Fallback(cfg.Period.Start, cfg.Period.End)
		if home.Exists(path) {
			rows, err := export.ReadCSV(path)
			if err != nil {
				return err
			}
			message = report.Summary(rows, cfg.Categories)
		}
		fmt.Fprintln(cmd.OutOrStdout(), message)
		return nil
	},
}
