package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "data", "runs.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	run := Run{
		ID:          "run-1",
		Mode:        "collect",
		PeriodStart: "20251101",
		PeriodEnd:   "20251130",
		ReportDate:  "2025-11-30",
		StartedAt:   time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := l.StartRun(ctx, run); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	items := []Item{
		{AdvertiserID: "AR1", Bank: "DSK", URL: "https://x/1", Path: "/out/1.png", Outcome: "ok", Category: "Deposits"},
		{AdvertiserID: "AR1", Bank: "DSK", URL: "https://x/2", Outcome: "download_failed", Error: "status 404"},
	}
	if err := l.RecordItems(ctx, "run-1", items); err != nil {
		t.Fatalf("RecordItems() error = %v", err)
	}
	more := []Item{{AdvertiserID: "AR2", Bank: "UBB", URL: "https://x/3", Outcome: "ok", Category: "Credit Card", Cached: true}}
	if err := l.RecordItems(ctx, "run-1", more); err != nil {
		t.Fatalf("RecordItems() error = %v", err)
	}

	if err := l.FinishRun(ctx, "run-1", 2, nil); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	runs, err := l.ListRuns(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Status != StatusOK || got.Rows != 2 || got.Mode != "collect" {
		t.Errorf("unexpected run %+v", got)
	}
	if !got.StartedAt.Equal(run.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, run.StartedAt)
	}
	if got.FinishedAt.IsZero() {
		t.Error("expected FinishedAt to be set")
	}

	stored, err := l.Items(ctx, "run-1")
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected 3 items, got %d", len(stored))
	}
	if stored[0] != items[0] || stored[1] != items[1] || stored[2] != more[0] {
		t.Errorf("items out of order or altered: %+v", stored)
	}

	breakdown, err := l.OutcomeBreakdown(ctx, "run-1")
	if err != nil {
		t.Fatalf("OutcomeBreakdown() error = %v", err)
	}
	if breakdown["ok"] != 2 || breakdown["download_failed"] != 1 {
		t.Errorf("unexpected breakdown %v", breakdown)
	}
}

func TestLedger_ListRunsFilter(t *testing.T) {
	ctx := context.Background()
	l := openTest(t)

	base := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := l.StartRun(ctx, Run{ID: id, Mode: "collect", PeriodStart: "20251101", PeriodEnd: "20251130",
			ReportDate: "2025-11-30", StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("StartRun() error = %v", err)
		}
	}
	if err := l.FinishRun(ctx, "b", 0, errors.New("no rows produced")); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	runs, err := l.ListRuns(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("expected newest first, got %+v", runs)
	}

	failed, err := l.ListRuns(ctx, Filter{Status: StatusFailed})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(failed) != 1 || failed[0].Error != "no rows produced" {
		t.Errorf("unexpected failed runs %+v", failed)
	}

	running, _ := l.ListRuns(ctx, Filter{Status: StatusRunning})
	if len(running) != 2 {
		t.Errorf("expected 2 running runs, got %d", len(running))
	}
}

func TestLedger_FinishUnknownRun(t *testing.T) {
	l := openTest(t)
	if err := l.FinishRun(context.Background(), "missing", 0, nil); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestLedger_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := l.StartRun(context.Background(), Run{ID: "x", Mode: "publish", PeriodStart: "1", PeriodEnd: "2", ReportDate: "d"}); err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	_ = l.Close()

	l, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer l.Close()
	runs, err := l.ListRuns(context.Background(), Filter{})
	if err != nil || len(runs) != 1 {
		t.Errorf("expected run to survive reopen, got %v, %v", runs, err)
	}
}
