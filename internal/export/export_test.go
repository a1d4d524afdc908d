package export

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

var sampleRows = []Row{
	{Bank: "DSK", Text: "Кредит до 50 000 лв.", Type: "Consumer Loan", Date: "2025-11-30"},
	{Bank: "UBB", Text: "Карта с 2% кешбек, без такса", Type: "Credit Card", Date: "2025-11-30"},
	{Bank: "Postbank", Text: "Line one\nline \"two\"", Type: "Other", Date: "2025-11-30"},
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "bank_ads_2025-11-30.csv")

	if err := WriteCSV(path, sampleRows); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\xEF\xBB\xBFBANK,TEXT,TYPE,DATE\n")) {
		t.Errorf("expected BOM and header, got %q", data[:min(len(data), 32)])
	}

	got, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if !slices.Equal(got, sampleRows) {
		t.Errorf("ReadCSV() = %+v, want %+v", got, sampleRows)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestReadCSV_RejectsUnknownHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.csv")
	if err := os.WriteFile(path, []byte("A,B,C,D\n1,2,3,4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadCSV(path); err == nil {
		t.Error("expected error for unexpected header")
	}
}

func TestWriteParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank_ads_2025-11-30.parquet")

	if err := WriteParquet(path, "", sampleRows); err != nil {
		t.Fatalf("WriteParquet() error = %v", err)
	}

	got, table, err := ReadParquet(path)
	if err != nil {
		t.Fatalf("ReadParquet() error = %v", err)
	}
	if table != DefaultTable {
		t.Errorf("table = %q, want %q", table, DefaultTable)
	}
	if !slices.Equal(got, sampleRows) {
		t.Errorf("ReadParquet() = %+v, want %+v", got, sampleRows)
	}
}

func TestExportIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "a.csv")
	pqPath := filepath.Join(dir, "a.parquet")

	for i := 0; i < 2; i++ {
		if err := WriteCSV(csvPath, sampleRows); err != nil {
			t.Fatalf("WriteCSV() run %d error = %v", i, err)
		}
		if err := WriteParquet(pqPath, DefaultTable, sampleRows); err != nil {
			t.Fatalf("WriteParquet() run %d error = %v", i, err)
		}
	}

	csvRows, err := ReadCSV(csvPath)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	pqRows, _, err := ReadParquet(pqPath)
	if err != nil {
		t.Fatalf("ReadParquet() error = %v", err)
	}
	if len(csvRows) != len(sampleRows) || len(pqRows) != len(sampleRows) {
		t.Errorf("expected files to be replaced, got %d csv rows and %d parquet rows", len(csvRows), len(pqRows))
	}
	if !slices.Equal(csvRows, pqRows) {
		t.Errorf("csv and parquet disagree: %+v vs %+v", csvRows, pqRows)
	}
}
