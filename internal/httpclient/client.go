package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
	"github.com/hoopsync/hoopsync/internal/platform/resilience"
)

const maxBodyBytes = 6 << 20

var errTransient = crerr.New("transient http failure")

// ErrUnavailable is returned when the circuit breaker rejects a request
// before it reaches the network.
var ErrUnavailable = crerr.New("vendor endpoint is temporarily unavailable")

type Config struct {
	HTTPClient     *http.Client
	Timeout        time.Duration
	Retry          RetryPolicy
	MinInterval    time.Duration
	MaxInterval    time.Duration
	Headers        map[string]string
	FallbackHosts  map[string]string
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client is the single HTTP gateway for all vendor endpoints. It owns
// connection pooling, the browser header set, the per-host request-interval
// governor, retries with exponential backoff, and fallback-host rewriting.
// Safe for concurrent use; callers sharing a host are serialized by the
// governor.
type Client struct {
	httpClient     *http.Client
	retry          RetryPolicy
	governor       *hostGovernor
	headers        map[string]string
	fallbacks      map[string]string
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 30 * time.Second
	}

	headers := defaultHeaders()
	for key, value := range cfg.Headers {
		headers[strings.ToLower(key)] = value
	}

	fallbacks := make(map[string]string, len(cfg.FallbackHosts))
	for primary, fallback := range cfg.FallbackHosts {
		primary = strings.TrimRight(strings.TrimSpace(primary), "/")
		fallback = strings.TrimRight(strings.TrimSpace(fallback), "/")
		if primary == "" || fallback == "" {
			continue
		}
		fallbacks[primary] = fallback
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		retry:          NormalizeRetryPolicy(cfg.Retry),
		governor:       newHostGovernor(cfg.MinInterval, cfg.MaxInterval),
		headers:        headers,
		fallbacks:      fallbacks,
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

// GetJSON performs a rate-limited GET and decodes the response body.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values) (any, error) {
	raw, err := c.get(ctx, rawURL, params)
	if err != nil {
		return nil, err
	}

	var payload any
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode vendor payload url=%s: %w", rawURL, err)
	}
	return payload, nil
}

// GetBinary performs a rate-limited GET and returns the raw bytes. Used for
// logo and headshot assets.
func (c *Client) GetBinary(ctx context.Context, rawURL string) ([]byte, error) {
	return c.get(ctx, rawURL, nil)
}

// get funnels every request through the singleflight group so concurrent
// identical GETs share one round trip.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	fullURL, err := buildURL(rawURL, params)
	if err != nil {
		return nil, err
	}

	val, err, shared := c.flight.Do(fullURL, func() (any, error) {
		return c.fetch(ctx, fullURL)
	})
	if shared {
		c.logger.DebugContext(ctx, "joined in-flight request", "url", fullURL)
	}
	if err != nil {
		return nil, err
	}
	raw, _ := val.([]byte)
	return raw, nil
}

func (c *Client) fetch(ctx context.Context, fullURL string) ([]byte, error) {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "circuit breaker rejected request", "url", fullURL, "state", c.breaker.State())
			return nil, fmt.Errorf("%w: url=%s", ErrUnavailable, fullURL)
		}
	}

	raw, reqErr := c.executeWithRetries(ctx, fullURL)
	if reqErr != nil && ctx.Err() == nil && crerr.Is(reqErr, errTransient) {
		if fallbackURL := c.rewriteToFallback(fullURL); fallbackURL != "" {
			c.logger.WarnContext(ctx, "primary host exhausted, trying fallback",
				"url", fullURL, "fallback_url", fallbackURL, "error", reqErr)
			raw, reqErr = c.executeOnce(ctx, fallbackURL)
		}
	}

	if c.circuitEnabled {
		if reqErr != nil && crerr.Is(reqErr, errTransient) {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}

	return raw, reqErr
}

func (c *Client) executeWithRetries(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	throttled := false

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retry.Delay(attempt-1, throttled)
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}
		}

		raw, status, err := c.executeOnceWithStatus(ctx, fullURL)
		if err == nil && status >= 200 && status < 300 {
			return raw, nil
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: send request url=%s: %v", errTransient, fullURL, err)
			continue
		}

		if !isRetryableStatus(status) {
			return nil, fmt.Errorf("vendor status=%d url=%s body=%s", status, fullURL, abbreviateBody(raw))
		}
		throttled = status == http.StatusTooManyRequests
		lastErr = fmt.Errorf("%w: vendor status=%d url=%s body=%s", errTransient, status, fullURL, abbreviateBody(raw))
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: request failed url=%s", errTransient, fullURL)
	}
	c.logger.WarnContext(ctx, "vendor request failed after retries", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func (c *Client) executeOnce(ctx context.Context, fullURL string) ([]byte, error) {
	raw, status, err := c.executeOnceWithStatus(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("%w: send request url=%s: %v", errTransient, fullURL, err)
	}
	if status < 200 || status >= 300 {
		wrapped := fmt.Errorf("vendor status=%d url=%s body=%s", status, fullURL, abbreviateBody(raw))
		if isRetryableStatus(status) {
			wrapped = fmt.Errorf("%w: %v", errTransient, wrapped)
		}
		return nil, wrapped
	}
	return raw, nil
}

func (c *Client) executeOnceWithStatus(ctx context.Context, fullURL string) ([]byte, int, error) {
	parsed, err := url.Parse(fullURL)
	if err != nil {
		return nil, 0, fmt.Errorf("parse url %s: %w", fullURL, err)
	}
	if err := c.governor.Wait(ctx, parsed.Host); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read response body: %w", err)
	}
	return raw, resp.StatusCode, nil
}

// rewriteToFallback substitutes a matching primary host-prefix with its
// configured fallback, or returns "" when no prefix applies.
func (c *Client) rewriteToFallback(fullURL string) string {
	for primary, fallback := range c.fallbacks {
		if strings.HasPrefix(fullURL, primary) {
			return fallback + strings.TrimPrefix(fullURL, primary)
		}
	}
	return ""
}

// IsTransient reports whether err was a network-level or retryable-status
// failure, as opposed to a vendor rejection or shape problem.
func IsTransient(err error) bool {
	return crerr.Is(err, errTransient)
}

func buildURL(rawURL string, params url.Values) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url %s: %w", rawURL, err)
	}
	if len(params) > 0 {
		query := parsed.Query()
		for key, values := range params {
			for _, value := range values {
				query.Set(key, value)
			}
		}
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func abbreviateBody(raw []byte) string {
	const limit = 256
	body := strings.TrimSpace(string(raw))
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}
