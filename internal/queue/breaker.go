package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abkawan/personal-banking/internal/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig tunes when publishing is short-circuited.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	Timeout             time.Duration
	MaxRequests         uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		Timeout:             30 * time.Second,
		MaxRequests:         1,
	}
}

// BreakerPublisher stops calling a failing broker for a while instead of
// paying a timeout on every committed record.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker
}

var _ Publisher = (*BreakerPublisher)(nil)

func NewBreakerPublisher(next Publisher, cfg BreakerConfig, logger *zap.Logger) *BreakerPublisher {
	settings := gobreaker.Settings{
		Name:        "publisher",
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerPublisher{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *BreakerPublisher) PublishTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.PublishTransaction(ctx, tx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("publisher unavailable (circuit breaker %s): %w", b.breaker.State(), err)
	}
	return err
}

// State is reported by the health endpoint.
func (b *BreakerPublisher) State() string {
	return b.breaker.State().String()
}
