package service

import (
	"context"
	"fmt"
	"time"

	"github.com/abkawan/personal-banking/internal/db"
	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/shopspring/decimal"
)

// AccountStore owns balances and limit-tracking state. The tx-bound methods
// are the primitives the orchestrator composes into larger units of work.
type AccountStore struct {
	store db.Store
	clock Clock
}

func NewAccountStore(store db.Store, clock Clock) *AccountStore {
	return &AccountStore{store: store, clock: clock}
}

// Credit adds amount to a locked account and stages the write.
func (s *AccountStore) Credit(ctx context.Context, tx db.Tx, account *models.Account, amount decimal.Decimal, now time.Time) error {
	account.Balance = account.Balance.Add(amount)
	account.UpdatedAt = now
	return tx.UpdateAccount(ctx, account)
}

// Debit subtracts amount from a locked account. The balance never goes below zero.
func (s *AccountStore) Debit(ctx context.Context, tx db.Tx, account *models.Account, amount decimal.Decimal, now time.Time) error {
	if err := ensureFunds(account, amount); err != nil {
		return err
	}
	account.Balance = account.Balance.Sub(amount)
	account.UpdatedAt = now
	return tx.UpdateAccount(ctx, account)
}

// ResetDailyTransferAmount clears the counter on a locked account and starts
// its tracking day at now.
func (s *AccountStore) ResetDailyTransferAmount(ctx context.Context, tx db.Tx, account *models.Account, now time.Time) error {
	resetDailyCounter(account)
	account.LastTransferDate = now
	account.UpdatedAt = now
	return tx.UpdateAccount(ctx, account)
}

// creditAccount and debitAccount move money without a ledger record; callers
// outside this package go through TransactionService.
func (s *AccountStore) creditAccount(ctx context.Context, accountID string, amount decimal.Decimal) (*models.Account, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.atomically(ctx, accountID, func(tx db.Tx, account *models.Account, now time.Time) error {
		return s.Credit(ctx, tx, account, amount, now)
	})
}

func (s *AccountStore) debitAccount(ctx context.Context, accountID string, amount decimal.Decimal) (*models.Account, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.atomically(ctx, accountID, func(tx db.Tx, account *models.Account, now time.Time) error {
		return s.Debit(ctx, tx, account, amount, now)
	})
}

func (s *AccountStore) ResetDailyTransferAmountFor(ctx context.Context, accountID string) (*models.Account, error) {
	return s.atomically(ctx, accountID, func(tx db.Tx, account *models.Account, now time.Time) error {
		return s.ResetDailyTransferAmount(ctx, tx, account, now)
	})
}

// atomically runs a read-modify-write against one account.
func (s *AccountStore) atomically(ctx context.Context, accountID string, fn func(tx db.Tx, account *models.Account, now time.Time) error) (*models.Account, error) {
	var updated *models.Account
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		locked, err := tx.LockAccounts(ctx, accountID)
		if err != nil {
			return err
		}
		account := locked[accountID]
		if err := fn(tx, account, s.clock.Now()); err != nil {
			return err
		}
		updated = account.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func ensureFunds(account *models.Account, amount decimal.Decimal) error {
	if account.Balance.LessThan(amount) {
		return apperrors.New(apperrors.CodeInsufficientFunds,
			fmt.Sprintf("account %s holds %s, cannot debit %s", account.ID, account.Balance.StringFixed(2), amount.StringFixed(2)))
	}
	return nil
}

func ensureActive(account *models.Account) error {
	if account.Status != models.Active {
		return apperrors.NewValidationError("status", fmt.Sprintf("account %s is %s", account.ID, account.Status))
	}
	return nil
}

func resetDailyCounter(account *models.Account) {
	account.AmountTransferredToday = decimal.Zero
}

// validateAmount accepts positive amounts with at most two decimal places.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.New(apperrors.CodeInvalidAmount, "amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return apperrors.New(apperrors.CodeInvalidAmount, "amount cannot have more than two decimal places")
	}
	return nil
}
