// Package warehouse mirrors the result table into Postgres.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jackzampolin/bankads/internal/export"
)

// DefaultTable is the destination table when none is configured.
const DefaultTable = "bank_ads"

var columns = []string{"bank", "text", "type", "date"}

// txBeginner is the slice of *pgxpool.Pool the sink needs.
type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Sink replaces one report date's rows in a Postgres table.
type Sink struct {
	db     txBeginner
	pool   *pgxpool.Pool // nil when built on a bare txBeginner
	table  pgx.Identifier
	logger *slog.Logger
}

// Connect opens a pool for dsn and verifies the server answers. table may be
// schema-qualified ("analytics.bank_ads").
func Connect(ctx context.Context, dsn, table string, logger *slog.Logger) (*Sink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("warehouse pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("warehouse ping: %w", err)
	}
	s := newSink(pool, table, logger)
	s.pool = pool
	return s, nil
}

func newSink(db txBeginner, table string, logger *slog.Logger) *Sink {
	if table == "" {
		table = DefaultTable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{db: db, table: pgx.Identifier(strings.Split(table, ".")), logger: logger}
}

// Close releases the pool.
func (s *Sink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Replace deletes every row for date and inserts rows, in one transaction.
func (s *Sink) Replace(ctx context.Context, date string, rows []export.Row) (int64, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("warehouse begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	table := s.table.Sanitize()
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		bank text NOT NULL,
		text text NOT NULL,
		type text NOT NULL,
		date text NOT NULL
	)`, table)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("warehouse create table: %w", err)
	}

	tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE date = $1`, table), date)
	if err != nil {
		return 0, fmt.Errorf("warehouse delete %s: %w", date, err)
	}

	n, err := tx.CopyFrom(ctx, s.table, columns, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{r.Bank, r.Text, r.Type, r.Date}, nil
	}))
	if err != nil {
		return 0, fmt.Errorf("warehouse copy: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("warehouse commit: %w", err)
	}
	s.logger.Info("warehouse rows replaced", "table", table, "date", date, "deleted", tag.RowsAffected(), "inserted", n)
	return n, nil
}
