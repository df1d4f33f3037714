// Package retry implements the exponential-backoff-with-jitter policy
// used by the worker (§4.4) and the DynamoDB writer (§4.6) when a
// transient store error occurs.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy configures an exponential backoff schedule.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
}

// DefaultPolicy matches §4.4: 3 retries, base 2s, factor 2, jittered.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		Factor:      2,
		MaxDelay:    30 * time.Second,
	}
}

// Delay returns the jittered delay to wait before attempt (0-indexed,
// counting retries only — attempt 0 is the first retry after the initial
// try).
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Factor
	}
	delay := time.Duration(d)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if delay <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Int64N(int64(delay)))
	return delay + jitter
}

// Wait sleeps for the jittered delay of attempt, returning false if ctx is
// cancelled first.
func (p Policy) Wait(ctx context.Context, attempt int) bool {
	select {
	case <-time.After(p.Delay(attempt)):
		return true
	case <-ctx.Done():
		return false
	}
}

// Do runs fn up to p.MaxAttempts times (the first call plus
// MaxAttempts-1 retries), backing off between attempts when
// shouldRetry(err) is true. It returns the last error if every attempt
// fails.
func Do(ctx context.Context, p Policy, shouldRetry func(error) bool, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			if !p.Wait(ctx, attempt-1) {
				return ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !shouldRetry(err) {
			return err
		}
	}
	return lastErr
}
