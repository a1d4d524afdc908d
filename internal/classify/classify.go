// Package classify reads the text of an ad creative and assigns it a product category
// using a vision model.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/jackzampolin/bankads/internal/assets"
	"github.com/jackzampolin/bankads/internal/providers"
)

// ErrRetriesExhausted is returned when every model call attempt failed.
var ErrRetriesExhausted = errors.New("classification failed after retries")

// Config holds configuration for the Classifier.
type Config struct {
	Client      providers.VisionClient
	Model       string
	Categories  []string
	MaxAttempts uint
	RetryDelay  time.Duration // Linear: attempt n waits n*RetryDelay
	MaxTokens   int
	Temperature float64

	Limiter *rate.Limiter // Optional; shared pacing across every call
	Cache   Cache         // Optional
	Timer   retry.Timer   // Optional (tests)
	Logger  *slog.Logger
}

// Classifier runs OCR and classification for creative images.
type Classifier struct {
	client      providers.VisionClient
	model       string
	categories  []string
	maxAttempts uint
	retryDelay  time.Duration
	maxTokens   int
	temperature float64
	limiter     *rate.Limiter
	cache       Cache
	timer       retry.Timer
	logger      *slog.Logger
}

// New creates a Classifier.
func New(cfg Config) (*Classifier, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("vision client is required")
	}
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("at least one category is required")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 600
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		client:      cfg.Client,
		model:       cfg.Model,
		categories:  cfg.Categories,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		limiter:     cfg.Limiter,
		cache:       cfg.Cache,
		timer:       cfg.Timer,
		logger:      logger,
	}, nil
}

// Classify extracts the visible text of the image at path and picks its category.
// Unparseable answers yield {"", Other} without error; only exhausted retries fail.
func (c *Classifier) Classify(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read image: %w", err)
	}
	hash := assets.ContentHash(data)

	if c.cache != nil {
		res, ok, err := c.cache.Get(ctx, hash)
		if err != nil {
			c.logger.Warn("ocr cache lookup failed", "hash", hash, "err", err)
		} else if ok {
			res.Cached = true
			return res, nil
		}
	}

	req := &providers.ChatRequest{
		Model: c.model,
		Messages: []providers.Message{
			{Role: "system", Content: systemPrompt},
			{
				Role:    "user",
				Content: userPrompt(c.categories),
				Images:  []providers.Image{{Data: data, MimeType: assets.MimeType(path)}},
			},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	chat, err := retry.DoWithData(
		func() (*providers.ChatResult, error) {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return nil, retry.Unrecoverable(err)
				}
			}
			return c.client.Chat(ctx, req)
		},
		c.retryOptions(ctx, path)...,
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
	}

	res, ok := Parse(chat.Content, c.categories)
	res.Tokens = chat.TotalTokens
	if !ok {
		c.logger.Warn("model answer was not valid json", "path", path)
		return res, nil
	}
	if c.cache != nil {
		if err := c.cache.Set(ctx, hash, res); err != nil {
			c.logger.Warn("ocr cache store failed", "hash", hash, "err", err)
		}
	}
	return res, nil
}

func (c *Classifier) retryOptions(ctx context.Context, path string) []retry.Option {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.maxAttempts),
		retry.LastErrorOnly(true),
		retry.DelayType(c.linearDelay),
		retry.OnRetry(func(n uint, err error) {
			// n counts failed attempts from 0; the wait before the next one is (n+1)*RetryDelay.
			c.logger.Warn("classification attempt failed",
				"provider", c.client.Name(), "path", path, "attempt", n+1, "err", err)
		}),
	}
	if c.timer != nil {
		opts = append(opts, retry.WithTimer(c.timer))
	}
	return opts
}

// linearDelay waits n*RetryDelay before retry n (1-based), or longer when the
// provider asked for it.
func (c *Classifier) linearDelay(n uint, err error, _ *retry.Config) time.Duration {
	d := time.Duration(n) * c.retryDelay
	if rle, ok := providers.IsRateLimitError(err); ok && rle.RetryAfter > d {
		return rle.RetryAfter
	}
	return d
}
