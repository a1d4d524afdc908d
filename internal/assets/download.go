// Package assets downloads creative images and stores them under content-hash names.
package assets

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultExt is used when neither the content type nor the URL names a known image type.
const DefaultExt = ".jpg"

// hashLen is the number of hex digits of the content hash used in file names.
const hashLen = 10

// maxImageBytes bounds a single download.
const maxImageBytes = 32 << 20

var contentTypeExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/avif": ".avif",
}

var urlExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif"}

// requestHeaders mimic a browser so image hosts serve the creative.
var requestHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0",
	"Accept":     "image/*,*/*;q=0.8",
	"Referer":    "https://google.com",
}

// GuessExt infers a file extension, preferring the response content type over the URL suffix.
func GuessExt(rawURL, contentType string) string {
	if contentType != "" {
		mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
		if ext, ok := contentTypeExt[mediaType]; ok {
			return ext
		}
	}

	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, ext := range urlExts {
		if strings.HasSuffix(path, ext) {
			if ext == ".jpeg" {
				return ".jpg"
			}
			return ext
		}
	}
	return DefaultExt
}

// ContentHash returns the short content hash used to name a downloaded image.
func ContentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])[:hashLen]
}

// MimeType returns the media type for an image path, defaulting to JPEG.
func MimeType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(t, "image/") {
		return t
	}
	if strings.EqualFold(filepath.Ext(path), ".avif") {
		return "image/avif"
	}
	return "image/jpeg"
}

// DownloaderConfig holds configuration for the Downloader.
type DownloaderConfig struct {
	Timeout    time.Duration
	HTTPClient *http.Client // Optional (tests)
	Logger     *slog.Logger
}

// Downloader fetches creative images.
type Downloader struct {
	client *http.Client
	logger *slog.Logger
}

// NewDownloader creates a new Downloader.
func NewDownloader(cfg DownloaderConfig) *Downloader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{client: httpClient, logger: logger}
}

// Image is a downloaded creative.
type Image struct {
	Path string
	Hash string
	Size int
}

// Download fetches rawURL and writes it to dir as <hash><ext>, replacing any file
// with the same name. Identical content therefore always lands on the same path.
func (d *Downloader) Download(ctx context.Context, rawURL, dir string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range requestHeaders {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("download failed (status %d): %s", resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes: %s", maxImageBytes, rawURL)
	}

	hash := ContentHash(data)
	path := filepath.Join(dir, hash+GuessExt(rawURL, resp.Header.Get("Content-Type")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}

	d.logger.Debug("image downloaded", "url", rawURL, "path", path, "bytes", len(data))
	return &Image{Path: path, Hash: hash, Size: len(data)}, nil
}
