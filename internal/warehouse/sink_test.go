package warehouse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jackzampolin/bankads/internal/export"
)

// fakeTx records the statements issued through it. Methods the sink does not
// use fall through to the nil embedded interface and would panic.
type fakeTx struct {
	pgx.Tx

	execs      []string
	execArgs   [][]any
	copyTable  pgx.Identifier
	copyCols   []string
	copied     [][]any
	copyErr    error
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	f.execArgs = append(f.execArgs, args)
	if strings.HasPrefix(sql, "DELETE") {
		return pgconn.NewCommandTag("DELETE 4"), nil
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeTx) CopyFrom(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.copyTable = table
	f.copyCols = cols
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		f.copied = append(f.copied, vals)
	}
	return int64(len(f.copied)), src.Err()
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeDB struct{ tx *fakeTx }

func (f *fakeDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return f.tx, nil
}

func TestSinkReplace(t *testing.T) {
	tx := &fakeTx{}
	sink := newSink(&fakeDB{tx: tx}, "analytics.bank_ads", nil)

	rows := []export.Row{
		{Bank: "DSK", Text: "a", Type: "Deposits", Date: "2025-11-30"},
		{Bank: "UBB", Text: "b", Type: "Credit Card", Date: "2025-11-30"},
	}
	n, err := sink.Replace(context.Background(), "2025-11-30", rows)
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}
	if len(tx.execs) != 2 {
		t.Fatalf("expected create and delete, got %v", tx.execs)
	}
	if !strings.Contains(tx.execs[0], `CREATE TABLE IF NOT EXISTS "analytics"."bank_ads"`) {
		t.Errorf("unexpected create statement %q", tx.execs[0])
	}
	if !strings.HasPrefix(tx.execs[1], `DELETE FROM "analytics"."bank_ads" WHERE date = $1`) {
		t.Errorf("unexpected delete statement %q", tx.execs[1])
	}
	if tx.execArgs[1][0] != "2025-11-30" {
		t.Errorf("delete should be scoped to the report date, got %v", tx.execArgs[1])
	}
	if strings.Join(tx.copyCols, ",") != "bank,text,type,date" {
		t.Errorf("unexpected columns %v", tx.copyCols)
	}
	if tx.copied[1][0] != "UBB" || tx.copied[1][2] != "Credit Card" {
		t.Errorf("unexpected copied rows %v", tx.copied)
	}
	if !tx.committed || tx.rolledBack {
		t.Errorf("expected commit without rollback, committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestSinkReplace_CopyFailureRollsBack(t *testing.T) {
	tx := &fakeTx{copyErr: errors.New("connection reset")}
	sink := newSink(&fakeDB{tx: tx}, "", nil)

	_, err := sink.Replace(context.Background(), "2025-11-30", []export.Row{{Bank: "DSK"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if tx.committed || !tx.rolledBack {
		t.Errorf("expected rollback, committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
	if !strings.Contains(tx.execs[0], `"bank_ads"`) {
		t.Errorf("expected default table, got %q", tx.execs[0])
	}
}
