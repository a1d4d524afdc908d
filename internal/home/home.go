package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default output directory, relative to the working directory.
	DefaultDirName = "out"

	// DataDirName is the subdirectory for exported tables and the run ledger.
	DataDirName = "data"

	// ImagesDirName is the subdirectory for downloaded creatives.
	ImagesDirName = "images"

	// LedgerFileName is the SQLite run ledger file name.
	LedgerFileName = "runs.db"

	// FilePrefix prefixes every exported table file.
	FilePrefix = "bank_ads_"
)

// Dir represents the output directory structure of a run.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (./out).
func New(path string) (*Dir, error) {
	if path == "" {
		path = DefaultDirName
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	return &Dir{path: abs}, nil
}

// Path returns the root path of the output directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// ImagesPath returns the path to the images directory.
func (d *Dir) ImagesPath() string {
	return filepath.Join(d.path, ImagesDirName)
}

// BankImagesDir returns the directory holding a bank's downloaded creatives.
func (d *Dir) BankImagesDir(bank string) string {
	return filepath.Join(d.ImagesPath(), bank)
}

// EnsureBankImagesDir creates the images directory for a bank.
func (d *Dir) EnsureBankImagesDir(bank string) error {
	return os.MkdirAll(d.BankImagesDir(bank), 0o755)
}

// CSVPath returns the delimited text export for a report date (YYYY-MM-DD).
func (d *Dir) CSVPath(reportDate string) string {
	return filepath.Join(d.DataPath(), FilePrefix+reportDate+".csv")
}

// AnalyticsPath returns the columnar analytics export for a report date (YYYY-MM-DD).
func (d *Dir) AnalyticsPath(reportDate string) string {
	return filepath.Join(d.DataPath(), FilePrefix+reportDate+".parquet")
}

// LedgerPath returns the path to the run ledger database.
func (d *Dir) LedgerPath() string {
	return filepath.Join(d.DataPath(), LedgerFileName)
}

// EnsureExists creates the data and images directories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(d.ImagesPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create images directory: %w", err)
	}
	return nil
}

// Exists reports whether a file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
