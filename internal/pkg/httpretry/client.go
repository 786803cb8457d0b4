// Package httpretry is the HTTP client behind the RDAP and DoH lookups.
// Registries and resolvers rate limit aggressively, so 429s and gateway
// errors are retried with jittered backoff.
package httpretry

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/ignite/domainwatch/internal/pkg/logger"
)

// HTTPDoer is satisfied by *http.Client and *RetryClient.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient retries transient failures of the wrapped HTTPDoer.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	log        *logger.Logger
}

// Option customises a RetryClient.
type Option func(*RetryClient)

// WithBackoff overrides the base and maximum backoff delays.
func WithBackoff(base, max time.Duration) Option {
	return func(rc *RetryClient) {
		rc.baseDelay = base
		rc.maxDelay = max
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(l *logger.Logger) Option {
	return func(rc *RetryClient) { rc.log = l }
}

// NewRetryClient wraps client (a 10s http.Client when nil). maxRetries
// counts attempts after the first and defaults to 2.
func NewRetryClient(client HTTPDoer, maxRetries int, opts ...Option) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = 2
	}
	rc := &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   10 * time.Second,
		log:        logger.Default(),
	}
	for _, o := range opts {
		o(rc)
	}
	return rc
}

// Do sends req, retrying 429, 5xx gateway statuses and network errors.
// Client errors and a done context are never retried. When retries run out
// the last response is returned unread so the caller sees the real status.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var (
		lastErr error
		hint    time.Duration
	)
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := rewind(req); err != nil {
				return nil, err
			}
			d := max(rc.backoff(attempt), hint)
			rc.log.Debug("httpretry: retrying", "attempt", attempt, "host", req.URL.Host, "path", req.URL.Path, "wait", d)
			if !sleep(ctx, d) {
				return nil, firstErr(lastErr, ctx.Err())
			}
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		resp, err := rc.client.Do(req)
		final := attempt == rc.maxRetries
		switch {
		case err != nil:
			if ctx.Err() != nil || final {
				return nil, err
			}
			lastErr, hint = err, 0
		case !isRetryableStatus(resp.StatusCode) || final:
			return resp, nil
		default:
			hint = parseRetryAfter(resp.Header.Get("Retry-After"), rc.maxDelay)
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("httpretry: %s answered %d", req.URL.Host, resp.StatusCode)
		}
	}
}

// backoff is full jitter over base*2^(attempt-1), capped at maxDelay.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	ceiling := math.Min(float64(rc.baseDelay)*math.Pow(2, float64(attempt-1)), float64(rc.maxDelay))
	return max(time.Duration(rand.Float64()*ceiling), time.Millisecond)
}

func rewind(req *http.Request) error {
	if req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("httpretry: rewind body: %w", err)
	}
	req.Body = body
	return nil
}

// sleep waits d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// parseRetryAfter understands the delta-seconds form only; the result is
// capped at max.
func parseRetryAfter(v string, max time.Duration) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > max {
		return max
	}
	return d
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
