// Package adsearch pages through the ad-transparency search API and collects
// preview image URLs for an advertiser's creatives.
package adsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jackzampolin/bankads/internal/jsontree"
)

const (
	DefaultBaseURL = "https://serpapi.com/search.json"
	DefaultEngine  = "google_ads_transparency_center"
	DefaultRegion  = "2100"
)

// ErrPageLimit is returned with the URLs collected so far when pagination
// does not end within the configured page limit.
var ErrPageLimit = errors.New("page limit reached")

// Config holds configuration for the search client.
type Config struct {
	APIKey     string
	BaseURL    string
	Engine     string
	Region     string
	PageSize   int // default: 100
	MaxPages   int // default: 50
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
	Logger     *slog.Logger
}

// Client queries the search API.
type Client struct {
	apiKey   string
	baseURL  string
	engine   string
	region   string
	pageSize int
	maxPages int
	client   *http.Client
	logger   *slog.Logger
}

// NewClient creates a new search client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Engine == "" {
		cfg.Engine = DefaultEngine
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		apiKey:   cfg.APIKey,
		baseURL:  cfg.BaseURL,
		engine:   cfg.Engine,
		region:   cfg.Region,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
		client:   httpClient,
		logger:   logger,
	}
}

type searchResponse struct {
	AdCreatives []json.RawMessage `json:"ad_creatives"`
	Pagination  struct {
		NextPageToken string `json:"next_page_token"`
	} `json:"serpapi_pagination"`
	Error string `json:"error"`
}

// FetchPreviewURLs returns the unique, non-video preview URLs of an advertiser's
// creatives shown between start and end (YYYYMMDD), in the order the API lists them.
func (c *Client) FetchPreviewURLs(ctx context.Context, advertiserID, start, end string) ([]string, error) {
	logger := c.logger.With("advertiser_id", advertiserID)

	var urls []string
	seen := make(map[string]bool)
	tokens := make(map[string]bool)
	token := ""

	for page := 1; ; page++ {
		if page > c.maxPages {
			return urls, fmt.Errorf("%w: advertiser %s after %d pages", ErrPageLimit, advertiserID, c.maxPages)
		}

		resp, err := c.fetchPage(ctx, advertiserID, start, end, token)
		if err != nil {
			return nil, fmt.Errorf("search page %d for advertiser %s: %w", page, advertiserID, err)
		}
		if resp.Error != "" && len(resp.AdCreatives) == 0 {
			logger.Info("search returned no creatives", "page", page, "message", resp.Error)
		}

		videos := 0
		for _, raw := range resp.AdCreatives {
			tree, err := jsontree.Decode(raw)
			if err != nil {
				logger.Warn("skipping undecodable creative", "page", page, "err", err)
				continue
			}
			creative, ok := tree.(jsontree.Object)
			if !ok {
				continue
			}
			if DetectFormat(creative) == FormatVideo {
				videos++
				continue
			}
			u, ok := BestPreviewURL(creative)
			if !ok || seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
		}
		logger.Debug("search page fetched",
			"page", page,
			"creatives", len(resp.AdCreatives),
			"videos", videos,
			"unique_urls", len(urls))

		next := resp.Pagination.NextPageToken
		if next == "" {
			break
		}
		if tokens[next] {
			logger.Warn("pagination token repeated, stopping", "page", page)
			break
		}
		tokens[next] = true
		token = next
	}

	return urls, nil
}

func (c *Client) fetchPage(ctx context.Context, advertiserID, start, end, token string) (*searchResponse, error) {
	params := url.Values{}
	params.Set("engine", c.engine)
	params.Set("api_key", c.apiKey)
	params.Set("advertiser_id", advertiserID)
	params.Set("region", c.region)
	params.Set("start_date", start)
	params.Set("end_date", end)
	params.Set("num", strconv.Itoa(c.pageSize))
	if token != "" {
		params.Set("next_page_token", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API error (status %d): %s", resp.StatusCode, truncate(string(body), 300))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &sr, nil
}

// redact drops the request URL, which carries the API key, from transport errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
