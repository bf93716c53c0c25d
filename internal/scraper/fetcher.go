// Package scraper downloads recipe pages and reduces them to the text a
// formatter needs.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"go.uber.org/zap"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxBodyBytes     = 4 * 1024 * 1024
	maxRetries       = 2
)

// ScrapeResult is the reduced content of a recipe page.
type ScrapeResult struct {
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}

// HTTPStatusError is returned when the page answers with a 4xx or 5xx status.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// Cache stores successful scrape results.
type Cache interface {
	Get(ctx context.Context, pageURL string) (*ScrapeResult, error)
	Set(ctx context.Context, pageURL string, result *ScrapeResult) error
}

// ErrCacheMiss is returned by Cache.Get when nothing is stored for a URL.
var ErrCacheMiss = errors.New("scrape cache miss")

// Fetcher downloads pages with bounded retries and extracts their content.
type Fetcher struct {
	client *resty.Client
	cache  Cache
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCache enables the scrape cache.
func WithCache(c Cache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithRetryWait overrides the backoff bounds between retries.
func WithRetryWait(min, max time.Duration) Option {
	return func(f *Fetcher) {
		f.client.SetRetryWaitTime(min).SetRetryMaxWaitTime(max)
	}
}

// NewFetcher creates a Fetcher. Network errors and 5xx responses are retried
// up to retries times (at most 2); 4xx responses are never retried.
func NewFetcher(timeout time.Duration, retries int, opts ...Option) *Fetcher {
	if retries < 0 {
		retries = 0
	}
	if retries > maxRetries {
		retries = maxRetries
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", defaultUserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		AddRetryCondition(isTransient)

	f := &Fetcher{client: client}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// isTransient reports whether a response should be retried.
func isTransient(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return resp != nil && resp.StatusCode() >= http.StatusInternalServerError
}

// Fetch downloads pageURL and returns its recipe content. The content is at
// least MinContentLength characters or ErrInsufficientContent is returned.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*ScrapeResult, error) {
	log := logger.Get().With(zap.String("url", pageURL))

	if f.cache != nil {
		cached, err := f.cache.Get(ctx, pageURL)
		if err == nil {
			log.Debug("scrape cache hit")
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn("scrape cache read failed", zap.Error(err))
		}
	}

	resp, err := f.client.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, &HTTPStatusError{URL: pageURL, StatusCode: resp.StatusCode()}
	}

	body := resp.Body()
	if len(body) > maxBodyBytes {
		body = body[:maxBodyBytes]
	}

	result, err := Extract(pageURL, string(body))
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, pageURL, result); err != nil {
			log.Warn("scrape cache write failed", zap.Error(err))
		}
	}

	return result, nil
}
