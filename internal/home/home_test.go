package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-bankads")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-bankads" {
			t.Errorf("expected path /tmp/test-bankads, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wd, _ := os.Getwd()
		expected := filepath.Join(wd, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-bankads")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"DataPath", dir.DataPath(), "/tmp/test-bankads/data"},
		{"BankImagesDir", dir.BankImagesDir("DSK"), "/tmp/test-bankads/images/DSK"},
		{"CSVPath", dir.CSVPath("2025-11-30"), "/tmp/test-bankads/data/bank_ads_2025-11-30.csv"},
		{"AnalyticsPath", dir.AnalyticsPath("2025-11-30"), "/tmp/test-bankads/data/bank_ads_2025-11-30.parquet"},
		{"LedgerPath", dir.LedgerPath(), "/tmp/test-bankads/data/runs.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, tt.got)
			}
		})
	}
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	outDir := filepath.Join(tmpDir, "out")

	dir, err := New(outDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if Exists(dir.DataPath()) {
		t.Fatal("data dir should not exist yet")
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	if !Exists(dir.DataPath()) || !Exists(dir.ImagesPath()) {
		t.Error("expected data and images directories to exist")
	}

	if err := dir.EnsureBankImagesDir("UBB"); err != nil {
		t.Fatalf("EnsureBankImagesDir() error = %v", err)
	}
	if !Exists(dir.BankImagesDir("UBB")) {
		t.Error("expected bank images directory to exist")
	}
}
