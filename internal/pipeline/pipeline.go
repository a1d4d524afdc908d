// Package pipeline runs a refresh: discover creatives per advertiser, download and
// classify them, export the result table, publish it and announce it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/bankads/internal/assets"
	"github.com/jackzampolin/bankads/internal/classify"
	"github.com/jackzampolin/bankads/internal/export"
	"github.com/jackzampolin/bankads/internal/home"
	"github.com/jackzampolin/bankads/internal/ledger"
	"github.com/jackzampolin/bankads/internal/metrics"
	"github.com/jackzampolin/bankads/internal/tableau"
)

// Sentinel errors for the pipeline package.
var (
	// ErrNoRows is returned when collection produced no rows; nothing is exported or published.
	ErrNoRows = errors.New("no rows produced")

	// ErrNoAnalyticsFile is returned by a forced publish-only run without a saved file.
	ErrNoAnalyticsFile = errors.New("analytics file not found")
)

// Collaborators. Each is satisfied by the matching package's client and
// replaced by fakes in tests.
type (
	Discoverer interface {
		FetchPreviewURLs(ctx context.Context, advertiserID, start, end string) ([]string, error)
	}
	Downloader interface {
		Download(ctx context.Context, url, dir string) (*assets.Image, error)
	}
	Classifier interface {
		Classify(ctx context.Context, path string) (classify.Result, error)
	}
	Publisher interface {
		Publish(ctx context.Context, path string) (*tableau.Datasource, error)
	}
	Notifier interface {
		Notify(ctx context.Context, message string) error
	}
	RunLedger interface {
		StartRun(ctx context.Context, run ledger.Run) error
		RecordItems(ctx context.Context, runID string, items []ledger.Item) error
		FinishRun(ctx context.Context, id string, rows int, runErr error) error
	}
	Warehouse interface {
		Replace(ctx context.Context, date string, rows []export.Row) (int64, error)
	}
)

// Mode selects what a run does.
type Mode string

const (
	// ModeAuto collects unless the period's analytics file already exists.
	ModeAuto Mode = "auto"
	// ModeCollect always collects, replacing saved files.
	ModeCollect Mode = "collect"
	// ModePublish republishes the saved analytics file without collecting.
	ModePublish Mode = "publish"
)

// Advertiser is an ad account attributed to a bank.
type Advertiser struct {
	ID       string
	BankKey  string // image folder name
	BankName string // label written to rows
}

// Config holds what a run needs besides its collaborators.
type Config struct {
	PeriodStart string // YYYYMMDD
	PeriodEnd   string // YYYYMMDD
	ReportDate  string // YYYY-MM-DD, stamped on every row
	Advertisers []Advertiser
	Categories  []string
	Dir         *home.Dir
	Mode        Mode
	Concurrency int    // images processed at once per advertiser
	Table       string // logical table name inside the analytics file

	PushgatewayURL string
	MetricsJob     string
}

// Deps are the collaborators of a run. Ledger, Warehouse and Metrics are optional.
type Deps struct {
	Discoverer Discoverer
	Downloader Downloader
	Classifier Classifier
	Publisher  Publisher
	Notifier   Notifier
	Ledger     RunLedger
	Warehouse  Warehouse
	Metrics    *metrics.Recorder
	Logger     *slog.Logger
}

// Runner executes refreshes.
type Runner struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

// New validates cfg and deps and returns a Runner.
func New(cfg Config, deps Deps) (*Runner, error) {
	if cfg.Dir == nil {
		return nil, fmt.Errorf("output directory is required")
	}
	if cfg.ReportDate == "" || cfg.PeriodStart == "" || cfg.PeriodEnd == "" {
		return nil, fmt.Errorf("period and report date are required")
	}
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("categories are required")
	}
	if deps.Publisher == nil || deps.Notifier == nil {
		return nil, fmt.Errorf("publisher and notifier are required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	if cfg.Mode != ModePublish && (deps.Discoverer == nil || deps.Downloader == nil || deps.Classifier == nil) {
		return nil, fmt.Errorf("discoverer, downloader and classifier are required to collect")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Table == "" {
		cfg.Table = export.DefaultTable
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRecorder()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger}, nil
}
