package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/bankads/internal/export"
	"github.com/jackzampolin/bankads/internal/home"
	"github.com/jackzampolin/bankads/internal/ledger"
	"github.com/jackzampolin/bankads/internal/report"
)

// Run executes one refresh. The returned report is non-nil even on error and
// describes how far the run got.
func (r *Runner) Run(ctx context.Context) (rep *Report, err error) {
	rep = &Report{
		RunID:         uuid.NewString(),
		Mode:          r.resolveMode(),
		ReportDate:    r.cfg.ReportDate,
		StartedAt:     time.Now(),
		CSVPath:       r.cfg.Dir.CSVPath(r.cfg.ReportDate),
		AnalyticsPath: r.cfg.Dir.AnalyticsPath(r.cfg.ReportDate),
	}
	logger := r.logger.With("run_id", rep.RunID)

	if err := r.cfg.Dir.EnsureExists(); err != nil {
		return rep, err
	}

	if r.deps.Ledger != nil {
		run := ledger.Run{
			ID:          rep.RunID,
			Mode:        string(rep.Mode),
			PeriodStart: r.cfg.PeriodStart,
			PeriodEnd:   r.cfg.PeriodEnd,
			ReportDate:  r.cfg.ReportDate,
			StartedAt:   rep.StartedAt,
		}
		if err := r.deps.Ledger.StartRun(ctx, run); err != nil {
			logger.Warn("ledger start failed", "err", err)
		}
	}
	defer func() {
		rep.Duration = time.Since(rep.StartedAt)
		if r.deps.Ledger != nil {
			if lerr := r.deps.Ledger.FinishRun(context.WithoutCancel(ctx), rep.RunID, rep.Rows, err); lerr != nil {
				logger.Warn("ledger finish failed", "err", lerr)
			}
		}
		if err == nil {
			r.deps.Metrics.MarkSuccess(rep.Rows, time.Now())
		}
		r.pushMetrics(context.WithoutCancel(ctx))
	}()

	logger.Info("run started", "mode", rep.Mode, "period_start", r.cfg.PeriodStart, "period_end", r.cfg.PeriodEnd)

	if rep.Mode == ModePublish {
		err = r.publishOnly(ctx, rep)
	} else {
		err = r.collectAndPublish(ctx, rep)
	}
	if err != nil {
		logger.Error("run failed", "err", err)
		return rep, err
	}
	logger.Info("run finished", "rows", rep.Rows, "duration", time.Since(rep.StartedAt).Round(time.Millisecond))
	return rep, nil
}

func (r *Runner) resolveMode() Mode {
	if r.cfg.Mode != ModeAuto {
		return r.cfg.Mode
	}
	if home.Exists(r.cfg.Dir.AnalyticsPath(r.cfg.ReportDate)) {
		return ModePublish
	}
	return ModeCollect
}

func (r *Runner) collectAndPublish(ctx context.Context, rep *Report) error {
	start := time.Now()
	rows, err := r.collect(ctx, rep)
	r.deps.Metrics.ObserveStage("collect", time.Since(start))
	if err != nil {
		return err
	}
	rep.Rows = len(rows)
	if len(rows) == 0 {
		return ErrNoRows
	}

	start = time.Now()
	if err := export.WriteCSV(rep.CSVPath, rows); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	r.logger.Info("saved csv", "path", rep.CSVPath, "rows", len(rows))
	if err := export.WriteParquet(rep.AnalyticsPath, r.cfg.Table, rows); err != nil {
		return fmt.Errorf("export analytics file: %w", err)
	}
	r.logger.Info("saved analytics file", "path", rep.AnalyticsPath, "table", r.cfg.Table)
	r.deps.Metrics.ObserveStage("export", time.Since(start))

	if r.deps.Warehouse != nil {
		if _, err := r.deps.Warehouse.Replace(ctx, r.cfg.ReportDate, rows); err != nil {
			r.logger.Warn("warehouse load failed", "err", err)
		}
	}

	return r.publishAndNotify(ctx, rep, report.Summary(rows, r.cfg.Categories))
}

// publishOnly republishes the saved analytics file. The summary comes from the
// saved CSV when it exists, otherwise from a generic message naming the period.
func (r *Runner) publishOnly(ctx context.Context, rep *Report) error {
	if !home.Exists(rep.AnalyticsPath) {
		return fmt.Errorf("%w: %s", ErrNoAnalyticsFile, rep.AnalyticsPath)
	}
	r.logger.Info("publish-only mode", "path", rep.AnalyticsPath)

	message := report.Fallback(r.cfg.PeriodStart, r.cfg.PeriodEnd)
	if home.Exists(rep.CSVPath) {
		rows, err := export.ReadCSV(rep.CSVPath)
		if err != nil {
			return fmt.Errorf("read saved csv: %w", err)
		}
		rep.Rows = len(rows)
		message = report.Summary(rows, r.cfg.Categories)
	}
	return r.publishAndNotify(ctx, rep, message)
}

func (r *Runner) publishAndNotify(ctx context.Context, rep *Report, message string) error {
	rep.Message = message

	start := time.Now()
	ds, err := r.deps.Publisher.Publish(ctx, rep.AnalyticsPath)
	r.deps.Metrics.ObserveStage("publish", time.Since(start))
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	rep.Datasource = ds

	start = time.Now()
	if err := r.deps.Notifier.Notify(ctx, message); err != nil {
		r.logger.Warn("notification failed", "err", err)
	}
	r.deps.Metrics.ObserveStage("notify", time.Since(start))
	return nil
}

func (r *Runner) pushMetrics(ctx context.Context) {
	if r.cfg.PushgatewayURL == "" {
		return
	}
	if err := r.deps.Metrics.Push(ctx, r.cfg.PushgatewayURL, r.cfg.MetricsJob); err != nil {
		r.logger.Warn("metrics push failed", "err", err)
	}
}

// isCanceled reports whether err came from ctx being done.
func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
