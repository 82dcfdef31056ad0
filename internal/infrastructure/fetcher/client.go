// Package fetcher retrieves recipe pages over HTTP with rate limiting and retries.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/pkg/logger"
)

const (
	defaultTimeout      = 20 * time.Second
	defaultUserAgent    = "RecipeBox/1.0 (+recipe import)"
	defaultRate         = 2.0
	defaultBurst        = 5
	defaultMaxAttempts  = 3
	defaultMaxBodyBytes = 5 << 20
)

// Config holds configuration for the page fetcher
type Config struct {
	Timeout       time.Duration
	UserAgent     string
	RatePerSecond float64
	Burst         int
	MaxAttempts   int
	MaxBodyBytes  int64
	Logger        *zap.Logger
}

// Client fetches recipe pages and implements domain.PageFetcher
type Client struct {
	httpClient   *http.Client
	userAgent    string
	rateLimiter  *rate.Limiter
	maxAttempts  int
	maxBodyBytes int64
	backoff      func(attempt int) time.Duration
	logger       *zap.Logger
}

// NewClient creates a new page fetcher
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = defaultRate
	}
	if config.Burst <= 0 {
		config.Burst = defaultBurst
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		userAgent:    config.UserAgent,
		rateLimiter:  rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		maxAttempts:  config.MaxAttempts,
		maxBodyBytes: config.MaxBodyBytes,
		backoff:      exponentialBackoff,
		logger:       logger.OrNop(config.Logger),
	}
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
}

// retryable reports whether a status is worth another attempt
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Fetch downloads pageURL. Transport errors, 429 and 5xx are retried; other
// statuses are returned as-is for the caller to judge. A transport failure
// on the last attempt is a *domain.FetchError.
func (c *Client) Fetch(ctx context.Context, pageURL string) (*domain.FetchedPage, error) {
	var lastErr error
	var lastPage *domain.FetchedPage

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, c.backoff(attempt-1)); err != nil {
				return nil, &domain.FetchError{URL: pageURL, Err: err}
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, &domain.FetchError{URL: pageURL, Err: fmt.Errorf("%w: %v", domain.ErrRateLimited, err)}
		}

		page, err := c.doRequest(ctx, pageURL)
		if err != nil {
			c.logger.Debug("fetch attempt failed",
				zap.String("url", pageURL),
				zap.Int("attempt", attempt),
				zap.Error(err))
			lastErr, lastPage = err, nil
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if retryable(page.StatusCode) {
			c.logger.Debug("retryable status",
				zap.String("url", pageURL),
				zap.Int("attempt", attempt),
				zap.Int("status", page.StatusCode))
			lastErr, lastPage = nil, page
			continue
		}

		c.logger.Debug("fetched page",
			zap.String("url", pageURL),
			zap.String("final_url", page.FinalURL),
			zap.Int("status", page.StatusCode),
			zap.Int("bytes", len(page.Body)))
		return page, nil
	}

	if lastPage != nil {
		return lastPage, nil
	}
	c.logger.Warn("all fetch attempts failed", zap.String("url", pageURL), zap.Error(lastErr))
	return nil, &domain.FetchError{URL: pageURL, Err: lastErr}
}

// doRequest executes one GET and reads at most maxBodyBytes of the body
func (c *Client) doRequest(ctx context.Context, pageURL string) (*domain.FetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &domain.FetchedPage{
		RequestURL:  pageURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
