package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy is a bounded retry policy with exponential backoff and jitter.
// The zero value is not usable; construct with Default or explicit fields.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // fraction of the delay randomized, 0..1
}

// Default returns the policy used for external API calls: 3 attempts,
// 2s base delay doubling per attempt, 20% jitter.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
	}
}

// Retryable marks errors worth retrying. Ops return false from it to bail
// out immediately on permanent failures.
type Retryable func(error) bool

// Do runs op up to MaxAttempts times, sleeping between attempts.
// It stops early when ctx is cancelled or retryable reports the error
// as permanent, and returns the last error on exhaustion.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, retryable Retryable) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, attempt); err != nil {
				return err
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func (p Policy) sleep(ctx context.Context, attempt int) error {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := float64(delay) * p.Jitter
		delay = time.Duration(float64(delay) - spread/2 + rand.Float64()*spread)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
