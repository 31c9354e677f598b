package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/abkawan/personal-banking/internal/db"
	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/google/uuid"
)

// TransactionLog is the only write path into the ledger log. Records are
// appended whole and never rewritten.
type TransactionLog struct {
	store db.Store
}

func NewTransactionLog(store db.Store) *TransactionLog {
	return &TransactionLog{store: store}
}

// Append checks the record's shape and stages it in tx.
func (l *TransactionLog) Append(ctx context.Context, tx db.Tx, record *models.Transaction) (*models.Transaction, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Category == "" {
		record.Category = models.Other
	}
	if err := validateRecord(record); err != nil {
		return nil, err
	}

	if err := tx.AppendTransaction(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	return record, nil
}

func (l *TransactionLog) Get(ctx context.Context, id string) (*models.Transaction, error) {
	return l.store.GetTransaction(ctx, id)
}

// ListByAccount returns every record that moved money on the account, newest first.
func (l *TransactionLog) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.Transaction, error) {
	return l.store.ListTransactions(ctx, models.TransactionFilter{
		AccountID:    accountID,
		Counterparty: true,
		Limit:        limit,
		Offset:       offset,
	})
}

// completed returns the completed records referencing accountID within [from, to].
func (l *TransactionLog) completed(ctx context.Context, accountID string, from, to time.Time, types ...models.TransactionType) ([]*models.Transaction, error) {
	return l.store.ListTransactions(ctx, models.TransactionFilter{
		AccountID: accountID,
		Types:     types,
		Status:    models.Completed,
		From:      from,
		To:        to,
	})
}

func validateRecord(record *models.Transaction) error {
	if !record.Amount.IsPositive() {
		return apperrors.New(apperrors.CodeInvalidAmount, "amount must be greater than zero")
	}
	if record.AccountID == "" {
		return apperrors.NewValidationError("account_id", "account id is required")
	}
	if !record.Category.Valid() {
		return apperrors.NewValidationError("category", fmt.Sprintf("unknown category %q", record.Category))
	}
	if utf8.RuneCountInString(record.Note) > models.MaxNoteLength {
		return apperrors.NewValidationError("note", fmt.Sprintf("note cannot exceed %d characters", models.MaxNoteLength))
	}

	switch record.Type {
	case models.Transfer:
		if record.FromAccountID == "" || record.ToAccountID == "" {
			return apperrors.NewValidationError("to_account_id", "transfer requires both accounts")
		}
		if record.FromAccountID == record.ToAccountID {
			return apperrors.New(apperrors.CodeInvalidTransfer, "cannot transfer between the same account")
		}
	case models.Deposit, models.Withdrawal:
		if record.FromAccountID != "" || record.ToAccountID != "" {
			return apperrors.NewValidationError("type", "only transfers reference a counterparty")
		}
	default:
		return apperrors.NewValidationError("type", fmt.Sprintf("unknown transaction type %q", record.Type))
	}

	switch record.Status {
	case models.Pending, models.Completed, models.Failed, models.Cancelled:
	default:
		return apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", record.Status))
	}
	return nil
}
