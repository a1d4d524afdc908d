// Package tableau publishes datasources to Tableau Server or Tableau Cloud over the REST API.
package tableau

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrProjectNotFound is returned when no project matches the configured name exactly.
	ErrProjectNotFound = errors.New("tableau project not found")

	// ErrMissingConfig is returned before any request when connection parameters are absent.
	ErrMissingConfig = errors.New("missing tableau configuration")
)

const (
	// baseAPIVersion is the oldest version that serves serverinfo.
	baseAPIVersion  = "2.4"
	projectPageSize = 100
	authHeader      = "X-Tableau-Auth"
)

// Config holds connection parameters for a Tableau site.
type Config struct {
	ServerURL      string
	SiteID         string // Site content URL; empty string is the default site
	PATName        string
	PATSecret      string
	ProjectName    string
	DatasourceName string

	APIVersion string // Optional; discovered from the server when empty
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
	Logger     *slog.Logger
}

// Missing lists the required parameters that are unset, by environment variable name.
func (c Config) Missing() []string {
	var missing []string
	for _, p := range []struct{ name, value string }{
		{"TABLEAU_SERVER_URL", c.ServerURL},
		{"TABLEAU_SITE_ID", c.SiteID},
		{"TABLEAU_PAT_NAME", c.PATName},
		{"TABLEAU_PAT_SECRET", c.PATSecret},
	} {
		if strings.TrimSpace(p.value) == "" {
			missing = append(missing, p.name)
		}
	}
	return missing
}

// Client talks to one Tableau site.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewClient validates cfg and creates a Client. No request is made.
func NewClient(cfg Config) (*Client, error) {
	if missing := cfg.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if cfg.ProjectName == "" {
		cfg.ProjectName = "Default"
	}
	if cfg.DatasourceName == "" {
		cfg.DatasourceName = "bank_ads_latest"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, client: httpClient, logger: logger}, nil
}

// Session is an authenticated REST session.
type Session struct {
	client     *Client
	apiVersion string
	token      string
	siteID     string
}

// SignIn resolves the API version and authenticates with the personal access token.
func (c *Client) SignIn(ctx context.Context) (*Session, error) {
	version := c.cfg.APIVersion
	if version == "" {
		v, err := c.serverVersion(ctx)
		if err != nil {
			return nil, err
		}
		version = v
	}

	body := signInRequest{}
	body.Credentials.Name = c.cfg.PATName
	body.Credentials.Secret = c.cfg.PATSecret
	body.Credentials.Site.ContentURL = c.cfg.SiteID

	var resp signInResponse
	s := &Session{client: c, apiVersion: version}
	if err := s.doJSON(ctx, http.MethodPost, "/auth/signin", body, &resp); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if resp.Credentials.Token == "" {
		return nil, fmt.Errorf("sign in: response carried no token")
	}
	s.token = resp.Credentials.Token
	s.siteID = resp.Credentials.Site.ID

	c.logger.Debug("tableau signed in", "api_version", version, "site", c.cfg.SiteID)
	return s, nil
}

func (c *Client) serverVersion(ctx context.Context) (string, error) {
	var resp serverInfoResponse
	s := &Session{client: c, apiVersion: baseAPIVersion}
	if err := s.doJSON(ctx, http.MethodGet, "/serverinfo", nil, &resp); err != nil {
		return "", fmt.Errorf("server info: %w", err)
	}
	if resp.ServerInfo.RestAPIVersion == "" {
		return "", fmt.Errorf("server info: no REST API version reported")
	}
	return resp.ServerInfo.RestAPIVersion, nil
}

// SignOut ends the session. The token is unusable afterwards.
func (s *Session) SignOut(ctx context.Context) error {
	if s.token == "" {
		return nil
	}
	err := s.doJSON(ctx, http.MethodPost, "/auth/signout", nil, nil)
	s.token = ""
	return err
}

// FindProject pages through the site's projects and returns the first whose name
// matches exactly.
func (s *Session) FindProject(ctx context.Context, name string) (*Project, error) {
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("pageSize", fmt.Sprint(projectPageSize))
		q.Set("pageNumber", fmt.Sprint(page))

		var resp projectsResponse
		if err := s.doJSON(ctx, http.MethodGet, s.sitePath("/projects")+"?"+q.Encode(), nil, &resp); err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		for _, p := range resp.Projects.Project {
			if p.Name == name {
				return &p, nil
			}
		}

		seen := page * projectPageSize
		total := resp.Pagination.total()
		if len(resp.Projects.Project) == 0 || seen >= total {
			return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, name)
		}
	}
}

func (s *Session) sitePath(suffix string) string {
	return "/sites/" + s.siteID + suffix
}

func (s *Session) endpoint(path string) string {
	return s.client.cfg.ServerURL + "/api/" + s.apiVersion + path
}

func (s *Session) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set(authHeader, s.token)
	}
	return req, nil
}

func (s *Session) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := s.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.do(req, out)
}

func (s *Session) do(req *http.Request, out any) error {
	resp, err := s.client.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	StatusCode int
	Code       string
	Summary    string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tableau error %s (status %d): %s %s", e.Code, e.StatusCode, e.Summary, e.Detail)
	}
	return fmt.Sprintf("tableau error (status %d): %s", e.StatusCode, e.Detail)
}

func apiError(status int, body []byte) error {
	var env errorResponse
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Code != "" {
		return &APIError{StatusCode: status, Code: env.Error.Code, Summary: env.Error.Summary, Detail: env.Error.Detail}
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > 300 {
		detail = detail[:300] + "..."
	}
	return &APIError{StatusCode: status, Detail: detail}
}
