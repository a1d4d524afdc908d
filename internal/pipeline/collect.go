package pipeline

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/bankads/internal/adsearch"
	"github.com/jackzampolin/bankads/internal/export"
	"github.com/jackzampolin/bankads/internal/ledger"
)

// collect processes every advertiser in order and returns the rows in discovery
// order. Only cancellation stops it early.
func (r *Runner) collect(ctx context.Context, rep *Report) ([]export.Row, error) {
	var rows []export.Row
	for _, adv := range r.cfg.Advertisers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ar, items, err := r.collectAdvertiser(ctx, adv)
		if err != nil {
			return nil, err
		}
		rep.Advertisers = append(rep.Advertisers, ar)
		rep.Items = append(rep.Items, items...)
		r.recordItems(ctx, rep.RunID, items)

		for _, it := range items {
			if it.Outcome == OutcomeOK {
				rows = append(rows, export.Row{Bank: adv.BankName, Text: it.Text, Type: it.Category, Date: r.cfg.ReportDate})
			}
		}
	}
	return rows, nil
}

func (r *Runner) collectAdvertiser(ctx context.Context, adv Advertiser) (AdvertiserReport, []ItemResult, error) {
	logger := r.logger.With("advertiser_id", adv.ID, "bank", adv.BankKey)
	ar := AdvertiserReport{ID: adv.ID, Bank: adv.BankName, Outcomes: make(map[Outcome]int)}

	urls, err := r.deps.Discoverer.FetchPreviewURLs(ctx, adv.ID, r.cfg.PeriodStart, r.cfg.PeriodEnd)
	switch {
	case err == nil:
	case isCanceled(ctx, err):
		return ar, nil, ctx.Err()
	case errors.Is(err, adsearch.ErrPageLimit) && len(urls) > 0:
		logger.Warn("discovery truncated, processing partial results", "urls", len(urls), "err", err)
	default:
		logger.Error("discovery failed, skipping advertiser", "err", err)
		ar.DiscoveryErr = err
		r.deps.Metrics.RecordDiscovery(adv.BankName, 0, err)
		return ar, nil, nil
	}
	ar.Discovered = len(urls)
	r.deps.Metrics.RecordDiscovery(adv.BankName, len(urls), nil)
	logger.Info("creatives discovered", "count", len(urls))

	dir := r.cfg.Dir.BankImagesDir(adv.BankKey)
	if err := r.cfg.Dir.EnsureBankImagesDir(adv.BankKey); err != nil {
		return ar, nil, err
	}

	// Results are stored by index so output order matches discovery order
	// whatever the concurrency.
	items := make([]ItemResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			it, err := r.processItem(gctx, adv, u, dir)
			if err != nil {
				return err
			}
			items[i] = it
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ar, nil, err
	}

	for _, it := range items {
		ar.Outcomes[it.Outcome]++
		r.deps.Metrics.RecordItem(adv.BankName, string(it.Outcome))
	}
	return ar, items, nil
}

// processItem downloads and classifies one creative. Failures become outcomes;
// only cancellation is returned as an error.
func (r *Runner) processItem(ctx context.Context, adv Advertiser, url, dir string) (ItemResult, error) {
	it := ItemResult{AdvertiserID: adv.ID, Bank: adv.BankName, URL: url}
	logger := r.logger.With("advertiser_id", adv.ID, "url", url)

	img, err := r.deps.Downloader.Download(ctx, url, dir)
	if err != nil {
		if isCanceled(ctx, err) {
			return it, ctx.Err()
		}
		logger.Warn("skipping creative", "reason", OutcomeDownloadFailed, "err", err)
		it.Outcome, it.Err = OutcomeDownloadFailed, err
		return it, nil
	}
	it.Path = img.Path

	start := time.Now()
	res, err := r.deps.Classifier.Classify(ctx, img.Path)
	r.deps.Metrics.RecordOCR(time.Since(start), res.Tokens, res.Cached, err)
	if err != nil {
		if isCanceled(ctx, err) {
			return it, ctx.Err()
		}
		logger.Warn("skipping creative", "reason", OutcomeClassifyFailed, "err", err)
		it.Outcome, it.Err = OutcomeClassifyFailed, err
		return it, nil
	}
	it.Cached = res.Cached
	it.Category = res.Type

	if res.Text == "" {
		logger.Warn("skipping creative", "reason", OutcomeEmptyText, "path", img.Path)
		it.Outcome = OutcomeEmptyText
		return it, nil
	}
	it.Text = res.Text
	it.Outcome = OutcomeOK
	return it, nil
}

func (r *Runner) recordItems(ctx context.Context, runID string, items []ItemResult) {
	if r.deps.Ledger == nil || len(items) == 0 {
		return
	}
	li := make([]ledger.Item, len(items))
	for i, it := range items {
		li[i] = it.ledgerItem()
	}
	if err := r.deps.Ledger.RecordItems(ctx, runID, li); err != nil {
		r.logger.Warn("ledger record failed", "err", err)
	}
}
