package utils

import (
	"context"
	"time"
)

// WaitFor blocks for d or until ctx is done, whichever comes first.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BackoffDelay returns base * multiplier^step.
func BackoffDelay(base time.Duration, multiplier float64, step int) time.Duration {
	if step <= 0 || multiplier <= 0 {
		return base
	}

	delay := float64(base)
	for range step {
		delay *= multiplier
	}
	return time.Duration(delay)
}
