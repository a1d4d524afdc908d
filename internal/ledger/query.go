package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Filter narrows ListRuns.
type Filter struct {
	Status     string
	ReportDate string
	Limit      int // 0 = no limit
}

// ListRuns returns runs matching f, newest first.
func (l *Ledger) ListRuns(ctx context.Context, f Filter) ([]Run, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.ReportDate != "" {
		where = append(where, "report_date = ?")
		args = append(args, f.ReportDate)
	}

	q := `SELECT id, mode, period_start, period_end, report_date, started_at, finished_at, status, row_count, error FROM runs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished sql.NullString
		if err := rows.Scan(&r.ID, &r.Mode, &r.PeriodStart, &r.PeriodEnd, &r.ReportDate,
			&started, &finished, &r.Status, &r.Rows, &r.Error); err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Items returns the items of a run in processing order.
func (l *Ledger) Items(ctx context.Context, runID string) ([]Item, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT advertiser_id, bank, url, path, outcome, category, cached, error
		 FROM items WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.AdvertiserID, &it.Bank, &it.URL, &it.Path, &it.Outcome,
			&it.Category, &it.Cached, &it.Error); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// OutcomeBreakdown counts a run's items by outcome.
func (l *Ledger) OutcomeBreakdown(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM items WHERE run_id = ? GROUP BY outcome`, runID)
	if err != nil {
		return nil, fmt.Errorf("outcome breakdown: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	breakdown := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		breakdown[outcome] = n
	}
	return breakdown, rows.Err()
}
