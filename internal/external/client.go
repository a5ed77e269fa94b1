// Package external is the boundary between the notification pipeline and the
// CI provider's REST API. All outbound API calls go through BaseClient, which
// enforces circuit breaking, bounded retries, trace propagation and error
// mapping. Callers are expected to attach a deadline to every request context.
package external

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"buildnotify/internal/types"
)

// RetryPolicy configures the retry behavior for the BaseClient.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy makes a single attempt per call, so a succeeded build
// costs at most two Builds API requests. Retries are opt-in through
// MaxRetries; the waits then apply.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 0,
		MinWait:    250 * time.Millisecond,
		MaxWait:    2 * time.Second,
	}
}

// BaseClient wraps an *http.Client and a circuit breaker. The breaker is
// shared by every call a worker instance makes, so a dead API stops costing
// time after a handful of failures.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(ctx context.Context, d time.Duration) error
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep function used between retries.
// This is intended for testing to avoid real delays.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *gobreaker.CircuitBreaker[*http.Response]) BaseClientOption {
	return func(c *BaseClient) {
		c.breaker = b
	}
}

// NewBreaker returns the circuit breaker used by default: it opens after more
// than five consecutive failures and probes again after 30 seconds.
func NewBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// NewBaseClient creates a BaseClient with the given http client, breaker name,
// retry policy and user agent string.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	retryPolicy RetryPolicy,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	bc := &BaseClient{
		client:      httpClient,
		breaker:     NewBreaker(breakerName),
		retryPolicy: retryPolicy,
		userAgent:   userAgent,
		sleepFn:     sleepContext,
	}

	for _, opt := range opts {
		opt(bc)
	}

	return bc
}

// Do sends a body-less request through the breaker. It sets the trace and
// User-Agent headers, then retries 429 and 5xx answers with backoff until the
// policy or the context deadline runs out. Any other response is returned
// as-is and the caller closes its body. Failures come back as *types.AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if traceID := types.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	attempts := 1 + max(c.retryPolicy.MaxRetries, 0)
	var (
		resp *http.Response
		err  error
	)
	for attempt := range attempts {
		resp, err = c.breaker.Execute(func() (*http.Response, error) {
			return c.roundTrip(req)
		})
		if err == nil {
			return resp, nil
		}

		last := attempt == attempts-1
		if last || !c.shouldRetry(ctx, err) {
			break
		}

		wait := c.computeBackoff(attempt, resp)
		drain(resp)
		resp = nil
		if sleepErr := c.sleepFn(ctx, wait); sleepErr != nil {
			err = sleepErr
			break
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil && !isBreakerRejection(err) {
		err = ctxErr
	}
	appErr := c.mapError(resp, err)
	drain(resp)
	return nil, appErr
}

// roundTrip reports 429 and 5xx answers as errors so the breaker counts them.
func (c *BaseClient) roundTrip(req *http.Request) (*http.Response, error) {
	r, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
		return r, fmt.Errorf("upstream returned %d", r.StatusCode)
	}
	return r, nil
}

func (c *BaseClient) shouldRetry(ctx context.Context, err error) bool {
	return !isBreakerRejection(err) && ctx.Err() == nil
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func drain(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}

// computeBackoff respects Retry-After when present, otherwise uses
// exponential backoff with jitter clamped to [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, c.retryPolicy.MaxWait)
			}
			if t, err := http.ParseTime(retryAfter); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return c.retryPolicy.MinWait
				}
				return min(wait, c.retryPolicy.MaxWait)
			}
		}
	}

	base := float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt))
	base = math.Min(base, float64(c.retryPolicy.MaxWait))

	minWait := float64(c.retryPolicy.MinWait)
	if base <= minWait {
		return c.retryPolicy.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

// mapError translates HTTP-level failures into AppErrors.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	if isBreakerRejection(err) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; upstream service unavailable", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return types.NewAppError(types.ErrCodeUpstreamTimeout, "upstream call exceeded its deadline", err)
	}

	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", err)
		case resp.StatusCode >= 500:
			return types.NewAppError(types.ErrCodeUpstreamUnavailable,
				fmt.Sprintf("upstream returned %d after retries", resp.StatusCode), err)
		}
	}

	return types.NewAppError(types.ErrCodeUpstreamUnavailable, "upstream request failed", err)
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
