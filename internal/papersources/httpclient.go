package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/helixir/enrichment-service/internal/domain"
)

// DefaultUserAgent identifies the service to external providers.
const DefaultUserAgent = "Helixir-EnrichmentService/1.0"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout is the deadline for a single HTTP attempt.
	Timeout time.Duration

	// RateLimit is the maximum calls per second for this source.
	// Ignored when Limiter is set.
	RateLimit float64

	// Limiter is an optional limiter shared with other clients of the same source.
	Limiter *RateLimiter

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int

	// RetryDelay is the initial backoff delay. It doubles on every retry.
	RetryDelay time.Duration

	// MaxRetryDelay caps a single backoff delay.
	MaxRetryDelay time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "x-api-key").
	APIKeyHeader string
}

// HTTPClient wraps http.Client with a per-source rate limiter and a retry policy.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
// The client waits on the limiter before every attempt and retries transient
// failures (network errors, timeouts, 408, 429 and 5xx) with exponential backoff.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(cfg.RateLimit)
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: limiter,
		config:      cfg,
	}
}

// RateLimiter returns the limiter guarding this client.
func (c *HTTPClient) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// Do executes an HTTP request with rate limiting and retries.
//
// Transient failures are retried up to MaxRetries times; the delay before each
// retry follows an exponential schedule starting at RetryDelay, or the
// provider's Retry-After header when that is longer. Terminal statuses are
// returned to the caller untouched. When retries are exhausted the error wraps
// domain.ErrRetriesExhausted.
//
// The request body is not preserved across retries; callers must provide
// requests with GetBody set if the body needs to be resent on retry.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	ctx := req.Context()
	schedule := c.newBackoff()

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.resetRequestBody(req); err != nil {
				return nil, fmt.Errorf("cannot retry request: %w", err)
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			// The caller gave up; nothing left to retry for.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < c.config.MaxRetries {
				if err := waitForRetry(ctx, schedule.NextBackOff()); err != nil {
					return nil, err
				}
				continue
			}
			break
		}

		if !IsRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		hinted := retryAfter(resp)
		delay := schedule.NextBackOff()
		if hinted > delay {
			delay = hinted
		}
		drainAndClose(resp)

		if attempt < c.config.MaxRetries {
			if err := waitForRetry(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}
		return nil, &domain.RetriesExhaustedError{
			Attempts:   c.config.MaxRetries + 1,
			StatusCode: resp.StatusCode,
			RetryAfter: hinted,
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no response received")
	}
	return nil, &domain.RetriesExhaustedError{Attempts: c.config.MaxRetries + 1, Cause: lastErr}
}

// Get issues a GET request and returns the body of a 200 response.
//
// A 404 yields an ExternalAPIError wrapping domain.ErrNotFound; any other
// non-200 status yields an ExternalAPIError carrying the start of the body.
func (c *HTTPClient) Get(ctx context.Context, source domain.SourceType, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		var cause error
		if resp.StatusCode == http.StatusNotFound {
			cause = domain.ErrNotFound
		}
		return nil, domain.NewExternalAPIError(source.DisplayName(), resp.StatusCode, string(body), cause)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// IsRetryableStatus reports whether an HTTP status is transient.
func IsRetryableStatus(statusCode int) bool {
	switch {
	case statusCode == http.StatusRequestTimeout:
		return true
	case statusCode == http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500 && statusCode < 600
	}
}

// newBackoff builds the exponential retry schedule for one Do call.
func (c *HTTPClient) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryDelay
	b.MaxInterval = c.config.MaxRetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// retryAfter parses the Retry-After header as seconds or an HTTP date.
func retryAfter(resp *http.Response) time.Duration {
	value := resp.Header.Get("Retry-After")
	if value == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return 0
}

// waitForRetry waits for the specified duration, respecting context cancellation.
func waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resetRequestBody resets the request body for retry if possible.
func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}

func drainAndClose(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
}
