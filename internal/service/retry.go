package service

import (
	"context"
	"math/rand"
	"time"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
)

// RetryPolicy bounds how often a conflicting unit of work is replayed.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  20 * time.Millisecond,
		MaxDelay:   500 * time.Millisecond,
	}
}

// backoff picks a random delay in [0, BaseDelay*2^attempt), capped at MaxDelay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt > 20 {
		attempt = 20
	}

	delay := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return time.Duration(rand.Int63n(int64(delay)))
}

// run calls fn until it succeeds, fails with a non-retryable error, or the
// retries are used up. The last error is returned unchanged.
func (p RetryPolicy) run(ctx context.Context, fn func(attempt int) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(attempt)
		if err == nil || !apperrors.IsRetryable(err) || attempt >= p.MaxRetries {
			return err
		}
		if sleepErr := sleepWithContext(ctx, p.backoff(attempt)); sleepErr != nil {
			return err
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
