// Package retry wraps unreliable external calls in a bounded
// retry-with-backoff policy, plus a two-tier fallback composition used for
// narration generation.
package retry

import (
	"context"
	"time"
)

// Policy bounds one retried call.
type Policy struct {
	// MaxAttempts includes the first attempt; values below 1 mean 1.
	MaxAttempts int
	// BaseDelay is the first backoff; attempt n sleeps BaseDelay*2^(n-1).
	BaseDelay time.Duration
	// Sleep overrides how backoff waits are performed (tests inject one).
	Sleep func(time.Duration)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (p Policy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	return base << (attempt - 1)
}

// Do runs op under the policy. Failures the predicate rejects surface
// immediately; retryable ones are reattempted with exponential backoff until
// the attempt budget is exhausted, and the final error is returned as-is.
func Do[T any](ctx context.Context, p Policy, retryable func(error) bool, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.attempts(); attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt >= p.attempts() || retryable == nil || !retryable(err) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		p.sleep(p.backoff(attempt))
	}

	return zero, lastErr
}

// DoWithFallback runs the full retry policy against the primary operation;
// when the primary's final error is still classified retryable, the
// secondary operation gets its own full policy run. A non-retryable primary
// failure propagates without touching the secondary.
func DoWithFallback[T any](
	ctx context.Context,
	primary, secondary Policy,
	retryable func(error) bool,
	primaryOp, secondaryOp func(context.Context) (T, error),
) (T, error) {
	result, err := Do(ctx, primary, retryable, primaryOp)
	if err == nil {
		return result, nil
	}
	if retryable == nil || !retryable(err) {
		var zero T
		return zero, err
	}
	return Do(ctx, secondary, retryable, secondaryOp)
}

// TransientHTTPStatus reports whether an HTTP status is worth retrying:
// rate limiting and server-side failures, never client errors.
func TransientHTTPStatus(status int) bool {
	return status == 429 || status >= 500
}
