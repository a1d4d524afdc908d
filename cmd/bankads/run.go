package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jackzampolin/bankads/internal/adsearch"
	"github.com/jackzampolin/bankads/internal/assets"
	"github.com/jackzampolin/bankads/internal/classify"
	"github.com/jackzampolin/bankads/internal/config"
	"github.com/jackzampolin/bankads/internal/ledger"
	"github.com/jackzampolin/bankads/internal/metrics"
	"github.com/jackzampolin/bankads/internal/notify"
	"github.com/jackzampolin/bankads/internal/pipeline"
	"github.com/jackzampolin/bankads/internal/providers"
	"github.com/jackzampolin/bankads/internal/tableau"
	"github.com/jackzampolin/bankads/internal/warehouse"
)

var forceCollect bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the refresh pipeline for the configured period",
	Long: `Run the full refresh: discover each advertiser's creatives, download and
classify them, export the result table, publish it to Tableau and post the
summary to Slack.

When the period's analytics file already exists the run only republishes it.
Use --force to collect again and replace the saved files.

Examples:
  bankads run                                # Configured period
  bankads run --start 20251201 --end 20251231
  bankads run --force                        # Re-collect even if files exist`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := pipeline.ModeAuto
		if forceCollect {
			mode = pipeline.ModeCollect
		}
		return runPipeline(cmd, mode)
	},
}

func init() {
	runCmd.Flags().BoolVar(&forceCollect, "force", false, "collect even if the analytics file exists")
}

func runPipeline(cmd *cobra.Command, mode pipeline.Mode) error {
	ctx := cmd.Context()

	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runner, cleanup, err := buildRunner(ctx, cfg, mode, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	rep, err := runner.Run(ctx)
	if rep != nil {
		fmt.Fprintln(cmd.OutOrStdout(), rep.String())
	}
	return err
}

// buildRunner wires every collaborator from cfg. Optional backends that cannot
// be reached are logged and left out. The returned cleanup closes what was opened.
func buildRunner(ctx context.Context, cfg *config.Config, mode pipeline.Mode, logger *slog.Logger) (*pipeline.Runner, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	reportDate, err := cfg.ReportDate()
	if err != nil {
		return nil, cleanup, err
	}
	dir, err := openHome(cfg)
	if err != nil {
		return nil, cleanup, err
	}

	publisher, err := tableau.NewClient(tableau.Config{
		ServerURL:      cfg.Tableau.ServerURL,
		SiteID:         cfg.Tableau.SiteID,
		PATName:        cfg.Tableau.PATName,
		PATSecret:      cfg.Tableau.PATSecret,
		ProjectName:    cfg.Tableau.ProjectName,
		DatasourceName: cfg.Tableau.DatasourceName,
		APIVersion:     cfg.Tableau.APIVersion,
		Logger:         logger,
	})
	if err != nil {
		return nil, cleanup, err
	}

	deps := pipeline.Deps{
		Publisher: publisher,
		Notifier:  notify.NewSlack(notify.SlackConfig{WebhookURL: cfg.Slack.WebhookURL, Logger: logger}),
		Metrics:   metrics.NewRecorder(),
		Logger:    logger,
	}

	if l, err := ledger.Open(dir.LedgerPath()); err != nil {
		logger.Warn("run ledger unavailable", "path", dir.LedgerPath(), "err", err)
	} else {
		deps.Ledger = l
		closers = append(closers, func() { _ = l.Close() })
	}

	if mode != pipeline.ModePublish {
		if err := wireCollectors(ctx, cfg, &deps, &closers, logger); err != nil {
			return nil, cleanup, err
		}
	}

	advertisers := make([]pipeline.Advertiser, len(cfg.Advertisers))
	for i, a := range cfg.Advertisers {
		advertisers[i] = pipeline.Advertiser{ID: a.ID, BankKey: a.Bank, BankName: cfg.BankLabel(a.Bank)}
	}

	runner, err := pipeline.New(pipeline.Config{
		PeriodStart:    cfg.Period.Start,
		PeriodEnd:      cfg.Period.End,
		ReportDate:     reportDate,
		Advertisers:    advertisers,
		Categories:     cfg.Categories,
		Dir:            dir,
		Mode:           mode,
		Concurrency:    cfg.Pipeline.Concurrency,
		PushgatewayURL: cfg.Metrics.PushgatewayURL,
		MetricsJob:     cfg.Metrics.Job,
	}, deps)
	if err != nil {
		return nil, cleanup, err
	}
	return runner, cleanup, nil
}

// wireCollectors adds the discovery, download and classification stages and the
// optional cache and warehouse.
func wireCollectors(ctx context.Context, cfg *config.Config, deps *pipeline.Deps, closers *[]func(), logger *slog.Logger) error {
	deps.Discoverer = adsearch.NewClient(adsearch.Config{
		APIKey:   cfg.Search.APIKey,
		BaseURL:  cfg.Search.BaseURL,
		Engine:   cfg.Search.Engine,
		Region:   cfg.Search.Region,
		PageSize: cfg.Search.PageSize,
		MaxPages: cfg.Search.MaxPages,
		Timeout:  cfg.Search.Timeout,
		Logger:   logger,
	})
	deps.Downloader = assets.NewDownloader(assets.DownloaderConfig{Logger: logger})

	var limiter *rate.Limiter
	if cfg.OCR.Pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.OCR.Pacing), 1)
	}

	var cache classify.Cache
	if cfg.Cache.RedisAddr != "" {
		rc, err := classify.DialRedisCache(ctx, &redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		}, cfg.Cache.TTL)
		if err != nil {
			logger.Warn("ocr cache unavailable", "err", err)
		} else {
			cache = rc
			*closers = append(*closers, func() { _ = rc.Close() })
		}
	}

	classifier, err := classify.New(classify.Config{
		Client: providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:  cfg.OCR.APIKey,
			Model:   cfg.OCR.Model,
			Timeout: cfg.OCR.Timeout,
			BaseURL: cfg.OCR.BaseURL,
		}),
		Model:       cfg.OCR.Model,
		Categories:  cfg.Categories,
		MaxAttempts: uint(cfg.OCR.MaxAttempts),
		RetryDelay:  cfg.OCR.RetryDelay,
		MaxTokens:   cfg.OCR.MaxTokens,
		Temperature: cfg.OCR.Temperature,
		Limiter:     limiter,
		Cache:       cache,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	deps.Classifier = classifier

	if cfg.Warehouse.DSN != "" {
		sink, err := warehouse.Connect(ctx, cfg.Warehouse.DSN, cfg.Warehouse.Table, logger)
		if err != nil {
			logger.Warn("warehouse unavailable", "err", err)
		} else {
			deps.Warehouse = sink
			*closers = append(*closers, sink.Close)
		}
	}
	return nil
}
