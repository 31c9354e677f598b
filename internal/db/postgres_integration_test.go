//go:build integration

package db

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a disposable PostgreSQL container with the ledger schema.
func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewPostgres(connStr)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.InitSchema(ctx))
	// Running it twice must be harmless.
	require.NoError(t, store.InitSchema(ctx))
	return store
}

func pgAccount(id, owner, balance string) *models.Account {
	return &models.Account{
		ID:                 id,
		AccountNumber:      "ACCT-" + id,
		OwnerID:            owner,
		Type:               models.Savings,
		Currency:           "EUR",
		Status:             models.Active,
		Balance:            decimal.RequireFromString(balance),
		DailyTransferLimit: models.DefaultDailyTransferLimit,
		LastTransferDate:   day,
		CreatedAt:          day,
		UpdatedAt:          day,
	}
}

func TestIntegration_Postgres_AccountsRoundTrip(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, store.CreateAccount(ctx, pgAccount("a", "owner-1", "100.25")))
	err := store.CreateAccount(ctx, pgAccount("a", "owner-1", "0"))
	assert.True(t, apperrors.IsValidationError(err))

	got, err := store.GetAccount(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("100.25")))
	assert.Equal(t, models.Savings, got.Type)
	assert.True(t, got.CreatedAt.Equal(day))

	_, err = store.GetAccount(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))

	closed := pgAccount("b", "owner-1", "0")
	closed.Status = models.Closed
	require.NoError(t, store.CreateAccount(ctx, closed))

	all, err := store.ListAccounts(ctx, "owner-1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	active, err := store.ListAccounts(ctx, "owner-1", true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestIntegration_Postgres_UnitOfWork(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, pgAccount("a", "owner-1", "100")))
	require.NoError(t, store.CreateAccount(ctx, pgAccount("b", "owner-2", "0")))

	err := store.WithTx(ctx, func(tx Tx) error {
		locked, err := tx.LockAccounts(ctx, "b", "a")
		if err != nil {
			return err
		}
		from, to := locked["a"], locked["b"]
		from.Balance = from.Balance.Sub(decimal.NewFromInt(30))
		to.Balance = to.Balance.Add(decimal.NewFromInt(30))
		if err := tx.UpdateAccount(ctx, from); err != nil {
			return err
		}
		if err := tx.UpdateAccount(ctx, to); err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, &models.Transaction{
			ID: "t1", AccountID: "a", FromAccountID: "a", ToAccountID: "b",
			Type: models.Transfer, Status: models.Completed, Category: models.Bills,
			Amount: decimal.NewFromInt(30), Reference: "ref-1", BalanceAfter: from.Balance, CreatedAt: day,
		})
	})
	require.NoError(t, err)

	a, err := store.GetAccount(ctx, "a")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, int64(1), a.Version)

	record, err := store.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "b", record.ToAccountID)
	assert.Equal(t, "ref-1", record.Reference)

	incoming, err := store.ListTransactions(ctx, models.TransactionFilter{AccountID: "b", Counterparty: true})
	require.NoError(t, err)
	require.Len(t, incoming, 1)

	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.FindByReference(ctx, "ref-1")
		require.NoError(t, err)
		require.NotNil(t, existing)
		assert.Equal(t, "t1", existing.ID)

		total, err := tx.SumOutgoingTransfers(ctx, "owner-1", day.Add(-time.Hour))
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(30)))
		return nil
	}))
}

func TestIntegration_Postgres_ConstraintsMapToLedgerErrors(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, pgAccount("a", "owner-1", "10")))

	err := store.WithTx(ctx, func(tx Tx) error {
		locked, err := tx.LockAccounts(ctx, "a")
		if err != nil {
			return err
		}
		locked["a"].Balance = decimal.RequireFromString("-1")
		return tx.UpdateAccount(ctx, locked["a"])
	})
	assert.True(t, apperrors.IsInsufficientFunds(err))

	err = store.WithTx(ctx, func(tx Tx) error {
		_, err := tx.LockAccounts(ctx, "a", "missing")
		return err
	})
	assert.True(t, apperrors.IsNotFound(err))

	deposit := func(id string) error {
		return store.WithTx(ctx, func(tx Tx) error {
			return tx.AppendTransaction(ctx, &models.Transaction{
				ID: id, AccountID: "a", Type: models.Deposit, Status: models.Completed,
				Category: models.Other, Amount: decimal.NewFromInt(1), Reference: "dup", CreatedAt: day,
			})
		})
	}
	require.NoError(t, deposit("t1"))
	assert.Equal(t, apperrors.CodeConcurrencyConflict, apperrors.CodeOf(deposit("t2")))
}

func TestIntegration_Postgres_LocksSerializeMovements(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, pgAccount("a", "owner-1", "100")))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.WithTx(ctx, func(tx Tx) error {
				locked, err := tx.LockAccounts(ctx, "a")
				if err != nil {
					return err
				}
				account := locked["a"]
				if account.Balance.LessThan(decimal.NewFromInt(10)) {
					return apperrors.ErrInsufficientFunds
				}
				account.Balance = account.Balance.Sub(decimal.NewFromInt(10))
				return tx.UpdateAccount(ctx, account)
			})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperrors.IsInsufficientFunds(err))
	}
	assert.Equal(t, 10, succeeded)

	a, err := store.GetAccount(ctx, "a")
	require.NoError(t, err)
	assert.True(t, a.Balance.IsZero())
}

func TestIntegration_Postgres_TransferLimits(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	_, err := store.GetTransferLimits(ctx, "owner-1")
	assert.True(t, apperrors.IsNotFound(err))

	limits := models.DefaultTransferLimits("owner-1")
	limits.UpdatedAt = day
	require.NoError(t, store.SaveTransferLimits(ctx, &limits))
	limits.DailyLimit = decimal.NewFromInt(500)
	require.NoError(t, store.SaveTransferLimits(ctx, &limits))

	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		locked, err := tx.LockTransferLimits(ctx, "owner-1")
		require.NoError(t, err)
		require.NotNil(t, locked)
		assert.True(t, locked.DailyLimit.Equal(decimal.NewFromInt(500)))

		fresh, err := tx.LockTransferLimits(ctx, "owner-2")
		require.NoError(t, err)
		assert.True(t, fresh.WeeklyLimit.Equal(decimal.NewFromInt(50_000)))
		return nil
	}))

	saved, err := store.GetTransferLimits(ctx, "owner-2")
	require.NoError(t, err)
	assert.True(t, saved.DailyLimit.Equal(decimal.NewFromInt(10_000)))
}
