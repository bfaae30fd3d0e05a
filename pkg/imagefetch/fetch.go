// Package imagefetch downloads images for scoring. It short-circuits local
// paths, keeps an on-disk cache keyed by URL hash, retries transient
// failures with backoff, and presents browser-like request headers because
// several CDNs reject naked Go clients.
package imagefetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNotImage indicates the fetched payload is not a decodable image.
	ErrNotImage = errors.New("fetched content is not an image")
	// ErrTooLarge indicates the payload exceeded the configured limit.
	ErrTooLarge = errors.New("fetched content exceeds maximum allowed size")
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Config customises the fetcher. Zero values fall back to sane defaults;
// CacheDir empty disables the on-disk cache.
type Config struct {
	CacheDir     string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	MaxBytes     int64
	UserAgent    string
	Referer      string
	Logger       zerolog.Logger
}

// Client fetches and caches images.
type Client struct {
	cfg    Config
	client *http.Client
	tracer trace.Tracer
	logger zerolog.Logger
}

// New constructs a fetcher.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 20 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		tracer: otel.Tracer("github.com/bodylens/bodylens-go-api/pkg/imagefetch"),
		logger: cfg.Logger.With().Str("component", "imagefetch").Logger(),
	}
}

// Fetch resolves a URL or local path into raw image bytes.
func (c *Client) Fetch(parent context.Context, rawURL string) ([]byte, error) {
	ctx, span := c.tracer.Start(parent, "imagefetch.fetch", trace.WithAttributes(
		attribute.String("url", rawURL),
	))
	defer span.End()

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("image url is required")
	}

	if data, ok := c.readLocal(rawURL); ok {
		span.SetAttributes(attribute.String("source", "local"))
		if err := c.checkImage(data); err != nil {
			span.RecordError(err)
			return nil, err
		}
		return data, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("unsupported image url %q", rawURL)
	}

	if data, ok := c.readCache(rawURL); ok {
		span.SetAttributes(attribute.String("source", "cache"))
		return data, nil
	}

	data, err := c.download(ctx, rawURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := c.checkImage(data); err != nil {
		span.RecordError(err)
		return nil, err
	}

	c.writeCache(rawURL, data)
	span.SetAttributes(attribute.String("source", "remote"), attribute.Int("bytes", len(data)))
	return data, nil
}

func (c *Client) readLocal(rawURL string) ([]byte, bool) {
	path := strings.TrimPrefix(rawURL, "file://")
	if strings.Contains(path, "://") {
		return nil, false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Client) cachePath(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(c.cfg.CacheDir, hex.EncodeToString(sum[:]))
}

func (c *Client) readCache(rawURL string) ([]byte, bool) {
	if c.cfg.CacheDir == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.cachePath(rawURL))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Client) writeCache(rawURL string, data []byte) {
	if c.cfg.CacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.cfg.CacheDir, 0o755); err != nil {
		c.logger.Warn().Err(err).Msg("failed to create image cache directory")
		return
	}
	if err := os.WriteFile(c.cachePath(rawURL), data, 0o644); err != nil {
		c.logger.Warn().Err(err).Msg("failed to write image cache entry")
	}
}

func (c *Client) download(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			c.logger.Debug().Str("url", rawURL).Int("attempt", attempt).Msg("retrying image download")
		}

		data, retryable, err := c.attempt(ctx, rawURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, fmt.Errorf("download %s: %w", rawURL, lastErr)
}

func (c *Client) attempt(ctx context.Context, rawURL string) (data []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	if c.cfg.Referer != "" {
		req.Header.Set("Referer", c.cfg.Referer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("status %d", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBytes+1))
	if err != nil {
		return nil, true, err
	}
	if int64(len(body)) > c.cfg.MaxBytes {
		return nil, false, ErrTooLarge
	}
	return body, false, nil
}

func (c *Client) checkImage(data []byte) error {
	kind := mimetype.Detect(data)
	if !strings.HasPrefix(kind.String(), "image/") {
		return fmt.Errorf("%w: detected %s", ErrNotImage, kind.String())
	}
	return nil
}
