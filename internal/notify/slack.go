// Package notify posts run summaries to a chat webhook.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

// SlackConfig holds configuration for the Slack notifier.
type SlackConfig struct {
	WebhookURL string // Empty disables posting
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
	Logger     *slog.Logger
}

// Slack posts plain-text messages to an incoming webhook.
type Slack struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewSlack creates a Slack notifier.
func NewSlack(cfg SlackConfig) *Slack {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Slack{webhookURL: cfg.WebhookURL, client: httpClient, logger: logger}
}

// Enabled reports whether a webhook is configured.
func (s *Slack) Enabled() bool {
	return s.webhookURL != ""
}

// Notify posts message. Without a webhook it logs and returns nil.
func (s *Slack) Notify(ctx context.Context, message string) error {
	if !s.Enabled() {
		s.logger.Info("slack webhook not set, skipping notification")
		return nil
	}
	msg := &slack.WebhookMessage{Text: message}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, msg); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	s.logger.Info("slack notification sent")
	return nil
}
