package shared

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds an exponential backoff loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy is three attempts starting at 100ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}
}

// Retry runs op until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. Delays double: base, 2*base, 4*base...
func Retry(ctx context.Context, p RetryPolicy, name string, retryable func(error) bool, op func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var err error
	attempts := 0
	for i := 0; i < p.MaxAttempts; i++ {
		attempts++
		err = op()
		if err == nil {
			return nil
		}
		if !retryable(err) || i == p.MaxAttempts-1 {
			break
		}

		delay := p.BaseDelay * time.Duration(1<<i)
		slog.Debug("Operation failed, retrying",
			"op", name,
			"attempt", i+1,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
}
