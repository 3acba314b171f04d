// Package extract implements the fetch stage: one retried HTTP call per
// configured location against the remote hourly air-quality API. All
// outbound calls are routed through the Client, which enforces consistent
// resilience patterns: circuit breaking, bounded retries with exponential
// backoff, and error mapping to the application taxonomy.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"airwatch/internal/types"
)

// hourlyParams is the comma-joined list of hourly variables requested from
// the API. The order matters only for URL stability, not semantics.
const hourlyParams = "pm10,pm2_5,carbon_monoxide,nitrogen_dioxide,ozone,sulphur_dioxide,uv_index"

// Client performs a single location's payload retrieval with bounded
// retries. Any network-layer error, non-2xx response, or malformed body is
// a retryable failure. Attempt k (1-indexed) sleeps 2^(k-1) seconds before
// the next attempt when it fails; there is no sleep after the final
// attempt.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*types.HourlyPayload]
	baseURL    string
	maxRetries int
	sleepFn    func(time.Duration) // for testability; defaults to time.Sleep
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithSleepFunc overrides the sleep function used between retry attempts.
// Intended for testing to avoid real delays.
func WithSleepFunc(fn func(time.Duration)) ClientOption {
	return func(c *Client) {
		c.sleepFn = fn
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a fetch client for the given API base URL. timeout
// bounds each individual attempt; maxRetries bounds the attempts per
// location.
//
// The circuit breaker trips only after sustained failure well beyond a
// single location's retry budget, so a normal run with one dead location
// is unaffected.
func NewClient(baseURL string, maxRetries int, timeout time.Duration, opts ...ClientOption) *Client {
	cb := gobreaker.NewCircuitBreaker[*types.HourlyPayload](gobreaker.Settings{
		Name:        "air-quality-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 15
		},
	})

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		breaker:    cb,
		baseURL:    baseURL,
		maxRetries: maxRetries,
		sleepFn:    time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPayload retrieves and decodes the hourly payload for one location.
// It returns the decoded payload, the raw response body (for archival),
// and the number of attempts consumed. On exhausted retries it returns the
// last error wrapped as a types.AppError.
func (c *Client) FetchPayload(ctx context.Context, loc types.Location) (*types.HourlyPayload, []byte, int, error) {
	reqURL := c.buildURL(loc)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		payload, body, err := c.attempt(ctx, reqURL)
		if err == nil {
			return payload, body, attempt, nil
		}
		lastErr = err

		// Context cancellation is not retryable; bail out immediately.
		if ctx.Err() != nil {
			return nil, nil, attempt, mapFetchError(ctx.Err())
		}

		if attempt < c.maxRetries {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			c.sleepFn(backoff)
		}
	}

	return nil, nil, c.maxRetries, mapFetchError(lastErr)
}

// attempt performs one HTTP round trip and body decode, wrapped by the
// circuit breaker so that the breaker counts decode failures too.
func (c *Client) attempt(ctx context.Context, reqURL string) (*types.HourlyPayload, []byte, error) {
	var rawBody []byte
	payload, err := c.breaker.Execute(func() (*types.HourlyPayload, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("upstream returned %d", resp.StatusCode)
		}

		decoded, err := types.DecodePayload(body)
		if err != nil {
			return nil, err
		}
		rawBody = body
		return decoded, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return payload, rawBody, nil
}

// buildURL constructs the request URL:
// <base>?latitude=<f>&longitude=<f>&hourly=<comma-joined list>.
func (c *Client) buildURL(loc types.Location) string {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	values.Set("hourly", hourlyParams)
	return c.baseURL + "?" + values.Encode()
}

// mapFetchError translates transport-level failures into the application
// taxonomy. Malformed payloads keep their code; everything else is a
// transient upstream failure.
func mapFetchError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			"circuit breaker is open; upstream unavailable", err)
	}
	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "fetch failed after retries", err)
}
