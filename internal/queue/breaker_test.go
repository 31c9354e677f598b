package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abkawan/personal-banking/internal/models"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	published []string
	calls     int
}

func (f *fakePublisher) PublishTransaction(ctx context.Context, tx *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, tx.ID)
	return nil
}

func TestBreakerPublisherPassesThrough(t *testing.T) {
	next := &fakePublisher{}
	p := NewBreakerPublisher(next, DefaultBreakerConfig(), zap.NewNop())

	require.NoError(t, p.PublishTransaction(context.Background(), &models.Transaction{ID: "tx-1"}))
	assert.Equal(t, []string{"tx-1"}, next.published)
	assert.Equal(t, "closed", p.State())
}

func TestBreakerPublisherOpensAfterConsecutiveFailures(t *testing.T) {
	next := &fakePublisher{err: errors.New("connection refused")}
	cfg := BreakerConfig{ConsecutiveFailures: 3, Timeout: time.Minute, MaxRequests: 1}
	p := NewBreakerPublisher(next, cfg, zap.NewNop())

	for i := 0; i < 3; i++ {
		err := p.PublishTransaction(context.Background(), &models.Transaction{ID: "tx"})
		assert.EqualError(t, err, "connection refused")
	}
	assert.Equal(t, "open", p.State())

	err := p.PublishTransaction(context.Background(), &models.Transaction{ID: "tx"})
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls, "open breaker must not reach the broker")
}
