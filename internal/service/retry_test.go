package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestBackoffStaysWithinBounds(t *testing.T) {
	p := RetryPolicy{BaseDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}

	for attempt := 0; attempt < 10; attempt++ {
		ceiling := p.BaseDelay << uint(attempt)
		if ceiling > p.MaxDelay {
			ceiling = p.MaxDelay
		}
		for i := 0; i < 50; i++ {
			d := p.backoff(attempt)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.Less(t, d, ceiling)
		}
	}

	assert.Zero(t, RetryPolicy{}.backoff(3))
}

func TestRunStopsOnNonRetryableErrors(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5}

	calls := 0
	err := p.run(context.Background(), func(int) error {
		calls++
		return apperrors.ErrInsufficientFunds
	})
	assert.True(t, apperrors.IsInsufficientFunds(err))
	assert.Equal(t, 1, calls)
}

func TestRunRetriesConflicts(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2}

	calls := 0
	err := p.run(context.Background(), func(attempt int) error {
		assert.Equal(t, calls, attempt)
		calls++
		return apperrors.Conflict(stderrors.New("deadlock detected"))
	})
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, 3, calls)
}

func TestRunGivesUpWhenContextIsDone(t *testing.T) {
	p := RetryPolicy{MaxRetries: 10, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := p.run(ctx, func(int) error {
		calls++
		cancel()
		return apperrors.Conflict(nil)
	})
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, 1, calls)
}
