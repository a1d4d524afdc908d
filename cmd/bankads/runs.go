package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bankads/internal/home"
	"github.com/jackzampolin/bankads/internal/ledger"
)

var (
	runsStatus string
	runsLimit  int
)

type runView struct {
	ID         string         `json:"id" yaml:"id"`
	Mode       string         `json:"mode" yaml:"mode"`
	Period     string         `json:"period" yaml:"period"`
	ReportDate string         `json:"report_date" yaml:"report_date"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	Duration   string         `json:"duration,omitempty" yaml:"duration,omitempty"`
	Status     string         `json:"status" yaml:"status"`
	Rows       int            `json:"rows" yaml:"rows"`
	Outcomes   map[string]int `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`
}

type itemView struct {
	Bank     string `json:"bank" yaml:"bank"`
	URL      string `json:"url" yaml:"url"`
	Outcome  string `json:"outcome" yaml:"outcome"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Cached   bool   `json:"cached,omitempty" yaml:"cached,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded runs, or the items of one run",
	Long: `List runs recorded in the run ledger, newest first, with per-outcome counts.
Given a run id, list that run's items in processing order.

Examples:
  bankads runs                      # Recent runs
  bankads runs --status failed      # Only failed runs
  bankads runs 5f0c... -o json      # Items of one run`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir, err := home.New(cfg.OutputDir)
		if err != nil {
			return err
		}
		if err := dir.EnsureExists(); err != nil {
			return err
		}
		l, err := ledger.Open(dir.LedgerPath())
		if err != nil {
			return err
		}
		defer func() {
			_ = l.Close()
		}()

		if len(args) == 1 {
			items, err := l.Items(ctx, args[0])
			if err != nil {
				return err
			}
			views := make([]itemView, len(items))
			for i, it := range items {
				views[i] = itemView{Bank: it.Bank, URL: it.URL, Outcome: it.Outcome, Category: it.Category, Cached: it.Cached, Error: it.Error}
			}
			return writeOutput(cmd.OutOrStdout(), views)
		}

		runs, err := l.ListRuns(ctx, ledger.Filter{Status: runsStatus, Limit: runsLimit})
		if err != nil {
			return err
		}
		views := make([]runView, 0, len(runs))
		for _, r := range runs {
			v := runView{
				ID:         r.ID,
				Mode:       r.Mode,
				Period:     r.PeriodStart + "-" + r.PeriodEnd,
				ReportDate: r.ReportDate,
				StartedAt:  r.StartedAt,
				Status:     r.Status,
				Rows:       r.Rows,
				Error:      r.Error,
			}
			if !r.FinishedAt.IsZero() {
				v.Duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
			}
			if v.Outcomes, err = l.OutcomeBreakdown(ctx, r.ID); err != nil {
				return err
			}
			views = append(views, v)
		}
		return writeOutput(cmd.OutOrStdout(), views)
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "only runs with this status: running, ok or failed")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs (0 = all)")
}
