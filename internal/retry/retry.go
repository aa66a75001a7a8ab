// Package retry wraps downstream transport calls with bounded retries
// and capped exponential backoff. Only transient failures are retried;
// permanent failures abort immediately, and exhausting the attempt
// budget is itself surfaced as a failure, never swallowed.
package retry

import (
	"context"
	"fmt"
	"time"

	"smartmailer/internal/transport"
)

// Policy defines the retry behaviour for one downstream call.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Do invokes op up to MaxAttempts times, sleeping Backoff(k) between
// transient failures. It returns the number of attempts made and the
// final error: nil on success, the permanent error as-is, or a wrapped
// exhaustion error after the last transient failure. A non-positive
// MaxAttempts is treated as a budget of one; op always runs at least
// once.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if !transport.IsTransient(err) {
			return attempt, err
		}
		if attempt == maxAttempts {
			return attempt, fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr)
		}

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(p.Backoff(attempt)):
		}
	}

	return maxAttempts, lastErr
}

// Backoff returns the delay after the k-th failed attempt:
// BaseDelay * 2^(k-1), capped at MaxDelay.
func (p Policy) Backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
