// Package httpclient provides the pooled, rate-limited, retrying HTTP
// client used by the LLM orchestrator (internal/llm); the object store
// and the SendGrid sender use their own SDK clients. Grounded on tarsy's
// pkg/mcp transport timeout/retry conventions, generalized per spec
// §4.1's network-boundary requirements (240s LLM call ceiling, 10s
// connect, bounded retry with exponential backoff).
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Timeouts bundles the per-call-kind ceilings spec §4.1 names.
type Timeouts struct {
	Connect     time.Duration
	LLMCall     time.Duration
	ObjectStore time.Duration
	Webhook     time.Duration
}

// DefaultTimeouts matches spec §4.1: 10s connect, 240s LLM call ceiling
// (covers slow reasoning-model completions), 60s object store, 30s
// webhook delivery.
var DefaultTimeouts = Timeouts{
	Connect:     10 * time.Second,
	LLMCall:     240 * time.Second,
	ObjectStore: 60 * time.Second,
	Webhook:     30 * time.Second,
}

// RetryPolicy is a bounded exponential backoff: Do waits BaseDelay before
// the second attempt and doubles the wait for each later one (1s, then
// 2s with the default three attempts).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}

func (p RetryPolicy) delay(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * p.BaseDelay / 2
}

// Client is a shared, connection-pooled http.Client plus a token-bucket
// limiter guarding outbound call rate (spec §4.1's "bounded concurrency
// to any single provider").
type Client struct {
	HTTP    *http.Client
	Limiter *rate.Limiter
	Retry   RetryPolicy
}

// New builds a Client with a tuned transport: persistent connections,
// HTTP/2 where the server supports it, and the given timeout as the
// http.Client's overall per-request ceiling (connect through body
// read). A context passed to Do with an earlier deadline shortens it
// for that request.
func New(timeout time.Duration, ratePerSecond float64, burst int) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultTimeouts.Connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &Client{
		HTTP:    &http.Client{Transport: transport, Timeout: timeout},
		Limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		Retry:   DefaultRetryPolicy,
	}
}

// NetworkError wraps a transport-level failure (DNS, connect refused,
// context deadline) distinct from an HTTP-status failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error during %s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError wraps a non-2xx response, with the body already drained so
// the caller can inspect it after the connection is returned to the pool.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, truncate(string(e.Body), 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Do executes req, waiting on the rate limiter, retrying transport
// errors and 429/5xx responses up to Retry.MaxAttempts with exponential
// backoff, and returning the final response body already read into
// memory (closing the underlying body). A 2xx..4xx response other than
// 429 is returned immediately without retry, letting the caller map it.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, []byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(c.Retry.delay(attempt)):
			}
		}

		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}

		resp, err := c.HTTP.Do(req.Clone(ctx))
		if err != nil {
			lastErr = &NetworkError{Op: req.Method + " " + req.URL.String(), Err: err}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = &NetworkError{Op: "read body", Err: readErr}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &HTTPError{StatusCode: resp.StatusCode, Body: body}
			continue
		}

		return resp, body, nil
	}

	return nil, nil, lastErr
}

// IsRetryable reports whether err represents a condition this client
// already exhausted its retry budget on, useful for callers deciding
// whether to fall back to a different provider/model instead.
func IsRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
