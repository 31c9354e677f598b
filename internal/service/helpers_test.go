package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abkawan/personal-banking/internal/db"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Wednesday
var testStart = time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	events []*models.Transaction
}

func (p *recordingPublisher) PublishTransaction(ctx context.Context, tx *models.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	cp := *tx
	p.events = append(p.events, &cp)
	return nil
}

func (p *recordingPublisher) published() []*models.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.Transaction(nil), p.events...)
}

type testLedger struct {
	store     *db.Memory
	clock     *fakeClock
	publisher *recordingPublisher

	accounts     *AccountService
	limits       *LimitPolicy
	transactions *TransactionService
	aggregations *AggregationService
}

type ledgerOption func(*Options)

func withoutFailureRecords() ledgerOption {
	return func(o *Options) { o.RecordFailures = false }
}

func withTxTimeout(d time.Duration) ledgerOption {
	return func(o *Options) { o.TxTimeout = d }
}

func newTestLedger(t *testing.T, logger *zap.Logger, opts ...ledgerOption) *testLedger {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}

	store := db.NewMemory()
	clock := newFakeClock(testStart)
	publisher := &recordingPublisher{}

	options := Options{
		Clock:          clock,
		TxTimeout:      2 * time.Second,
		Retry:          RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		RecordFailures: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	limits := NewLimitPolicy(store, clock, time.UTC, logger)
	return &testLedger{
		store:        store,
		clock:        clock,
		publisher:    publisher,
		accounts:     NewAccountService(store, clock, logger),
		limits:       limits,
		transactions: NewTransactionService(store, limits, publisher, options, logger),
		aggregations: NewAggregationService(store, time.UTC),
	}
}

func (l *testLedger) open(t *testing.T, owner, balance, dailyLimit string) *models.Account {
	t.Helper()
	limit := dec(dailyLimit)
	account, err := l.accounts.OpenAccount(context.Background(), &models.CreateAccountRequest{
		OwnerID:            owner,
		Type:               models.Current,
		InitialBalance:     dec(balance),
		DailyTransferLimit: &limit,
	})
	require.NoError(t, err)
	return account
}

func (l *testLedger) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	account, err := l.store.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return account.Balance
}

func (l *testLedger) deposit(t *testing.T, accountID, amount string, category models.Category) *models.Transaction {
	t.Helper()
	tx, err := l.transactions.Deposit(context.Background(), &models.MovementRequest{
		AccountID: accountID, Amount: dec(amount), Category: category,
	})
	require.NoError(t, err)
	return tx
}

func (l *testLedger) withdraw(t *testing.T, accountID, amount string, category models.Category) *models.Transaction {
	t.Helper()
	tx, err := l.transactions.Withdraw(context.Background(), &models.MovementRequest{
		AccountID: accountID, Amount: dec(amount), Category: category,
	})
	require.NoError(t, err)
	return tx
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// requireDecimal compares by value so "700" equals "700.00".
func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

func transferReq(from, to, amount string) *models.TransferRequest {
	return &models.TransferRequest{FromAccountID: from, ToAccountID: to, Amount: dec(amount)}
}
