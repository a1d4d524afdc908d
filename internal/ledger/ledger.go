// Package ledger keeps an append-only SQLite record of pipeline runs and the
// outcome of every creative they processed.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	mode         TEXT NOT NULL,
	period_start TEXT NOT NULL,
	period_end   TEXT NOT NULL,
	report_date  TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT,
	status       TEXT NOT NULL,
	row_count    INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS items (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	seq           INTEGER NOT NULL,
	advertiser_id TEXT NOT NULL,
	bank          TEXT NOT NULL,
	url           TEXT NOT NULL,
	path          TEXT NOT NULL DEFAULT '',
	outcome       TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	cached        INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// Run is one pipeline invocation.
type Run struct {
	ID          string
	Mode        string // "collect" or "publish"
	PeriodStart string
	PeriodEnd   string
	ReportDate  string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running
	Status      string
	Rows        int
	Error       string
}

// Item is the outcome of one creative within a run.
type Item struct {
	AdvertiserID string
	Bank         string
	URL          string
	Path         string
	Outcome      string
	Category     string
	Cached       bool
	Error        string
}

// Ledger is a SQLite-backed run log.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// One writer at a time keeps SQLite from reporting SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// StartRun inserts run with status running.
func (l *Ledger) StartRun(ctx context.Context, run Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, period_start, period_end, report_date, started_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Mode, run.PeriodStart, run.PeriodEnd, run.ReportDate,
		formatTime(run.StartedAt), StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun stores the final status of a run. A non-nil runErr marks it failed.
func (l *Ledger) FinishRun(ctx context.Context, id string, rows int, runErr error) error {
	status, msg := StatusOK, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, row_count = ?, error = ? WHERE id = ?`,
		formatTime(time.Now()), status, rows, msg, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %s", id)
	}
	return nil
}

// RecordItems appends items to a run in one transaction, preserving order.
func (l *Ledger) RecordItems(ctx context.Context, runID string, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) + 1 FROM items WHERE run_id = ?`, runID).Scan(&next); err != nil {
		return fmt.Errorf("next item seq: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (run_id, seq, advertiser_id, bank, url, path, outcome, category, cached, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, it := range items {
		if _, err := stmt.ExecContext(ctx, runID, next+i, it.AdvertiserID, it.Bank, it.URL, it.Path,
			it.Outcome, it.Category, it.Cached, it.Error); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
