package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultMaxAttempts = 3
	defaultTimeout     = 30 * time.Second
	maxRetryAfter      = 30 * time.Second
	maxErrorBody       = 512
)

// StatusError is returned for a non-2xx response that is not retried,
// or for the last retryable one once attempts run out
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err carries one of the given HTTP status codes
func IsStatus(err error, codes ...int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, code := range codes {
		if se.StatusCode == code {
			return true
		}
	}
	return false
}

// Client is a rate-limited HTTP client that retries transport errors, 429 and 5xx
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *zap.Logger
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleep replaces the backoff wait
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithMaxAttempts sets how many times a request is tried
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// New creates a client allowing ratePerMinute requests (unlimited when <= 0)
func New(ratePerMinute int, logger *zap.Logger, opts ...Option) *Client {
	limit := rate.Inf
	burst := 1
	if ratePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(ratePerMinute))
		burst = max(1, ratePerMinute/10)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		rateLimiter: rate.NewLimiter(limit, burst),
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExponentialBackoff returns the wait before retrying after the given attempt: 500ms, 1s, 2s, ...
func ExponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return 500 * time.Millisecond * time.Duration(1<<(attempt-1))
}

// Do sends the request built by newRequest and returns the body of a 2xx response.
// newRequest is called once per attempt so request bodies can be replayed.
func (c *Client) Do(ctx context.Context, newRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := newRequest(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		body, wait, err := c.attempt(req, attempt)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if wait < 0 || attempt == c.maxAttempts {
			break
		}

		c.logger.Warn("request failed, retrying",
			zap.String("url", req.URL.Redacted()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// attempt performs one round trip. A negative wait means the error is final.
func (c *Client) attempt(req *http.Request, attempt int) ([]byte, time.Duration, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, -1, req.Context().Err()
		}
		return nil, ExponentialBackoff(attempt), err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ExponentialBackoff(attempt), fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, 0, nil
	}

	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			return nil, d, statusErr
		}
		return nil, ExponentialBackoff(attempt), statusErr
	case resp.StatusCode >= 500:
		return nil, ExponentialBackoff(attempt), statusErr
	default:
		return nil, -1, statusErr
	}
}

func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		// clamp before converting so huge values cannot overflow
		secs = min(secs, int(maxRetryAfter/time.Second))
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return min(d, maxRetryAfter), true
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
