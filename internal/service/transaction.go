package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/abkawan/personal-banking/internal/db"
	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/abkawan/personal-banking/internal/queue"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	Clock     Clock
	TxTimeout time.Duration
	Retry     RetryPolicy
	// RecordFailures appends a failed record when a movement is rejected by a business rule.
	RecordFailures bool
}

func DefaultOptions() Options {
	return Options{
		Clock:          SystemClock{},
		TxTimeout:      5 * time.Second,
		Retry:          DefaultRetryPolicy(),
		RecordFailures: true,
	}
}

// handles transaction operations; the only component that mutates more than
// one account in a unit of work
type TransactionService struct {
	store     db.Store
	accounts  *AccountStore
	limits    *LimitPolicy
	log       *TransactionLog
	publisher queue.Publisher

	clock          Clock
	txTimeout      time.Duration
	retry          RetryPolicy
	recordFailures bool
	logger         *zap.Logger
}

// creates a new TransactionService. publisher may be nil.
func NewTransactionService(store db.Store, limits *LimitPolicy, publisher queue.Publisher, opts Options, logger *zap.Logger) *TransactionService {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = DefaultOptions().TxTimeout
	}
	return &TransactionService{
		store:          store,
		accounts:       NewAccountStore(store, opts.Clock),
		limits:         limits,
		log:            NewTransactionLog(store),
		publisher:      publisher,
		clock:          opts.Clock,
		txTimeout:      opts.TxTimeout,
		retry:          opts.Retry,
		recordFailures: opts.RecordFailures,
		logger:         logger.Named("ledger"),
	}
}

// mutation applies the balance changes of one movement to locked accounts and
// returns the balance to snapshot on the record.
type mutation func(ctx context.Context, tx db.Tx, locked map[string]*models.Account, now time.Time) (decimal.Decimal, error)

func (s *TransactionService) Deposit(ctx context.Context, req *models.MovementRequest) (*models.Transaction, error) {
	if err := validateMovement(req.Amount, req.Category, req.Note); err != nil {
		return nil, err
	}

	template := &models.Transaction{
		AccountID: req.AccountID,
		Type:      models.Deposit,
		Category:  categoryOrDefault(req.Category),
		Amount:    req.Amount,
		Note:      req.Note,
		Reference: req.Reference,
	}
	return s.apply(ctx, template, func(ctx context.Context, tx db.Tx, locked map[string]*models.Account, now time.Time) (decimal.Decimal, error) {
		account := locked[req.AccountID]
		if err := s.accounts.Credit(ctx, tx, account, req.Amount, now); err != nil {
			return decimal.Zero, err
		}
		return account.Balance, nil
	})
}

func (s *TransactionService) Withdraw(ctx context.Context, req *models.MovementRequest) (*models.Transaction, error) {
	if err := validateMovement(req.Amount, req.Category, req.Note); err != nil {
		return nil, err
	}

	template := &models.Transaction{
		AccountID: req.AccountID,
		Type:      models.Withdrawal,
		Category:  categoryOrDefault(req.Category),
		Amount:    req.Amount,
		Note:      req.Note,
		Reference: req.Reference,
	}
	return s.apply(ctx, template, func(ctx context.Context, tx db.Tx, locked map[string]*models.Account, now time.Time) (decimal.Decimal, error) {
		account := locked[req.AccountID]
		if err := s.accounts.Debit(ctx, tx, account, req.Amount, now); err != nil {
			return decimal.Zero, err
		}
		return account.Balance, nil
	})
}

// Transfer debits the source, credits the destination and appends one record
// as a single unit of work.
func (s *TransactionService) Transfer(ctx context.Context, req *models.TransferRequest) (*models.Transaction, error) {
	if req.FromAccountID == req.ToAccountID {
		return nil, apperrors.New(apperrors.CodeInvalidTransfer, "cannot transfer between the same account")
	}
	if err := validateMovement(req.Amount, req.Category, req.Note); err != nil {
		return nil, err
	}

	template := &models.Transaction{
		AccountID:     req.FromAccountID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Type:          models.Transfer,
		Category:      categoryOrDefault(req.Category),
		Amount:        req.Amount,
		Note:          req.Note,
		Reference:     req.Reference,
	}
	return s.apply(ctx, template, func(ctx context.Context, tx db.Tx, locked map[string]*models.Account, now time.Time) (decimal.Decimal, error) {
		source, destination := locked[req.FromAccountID], locked[req.ToAccountID]

		if err := ensureFunds(source, req.Amount); err != nil {
			return decimal.Zero, err
		}
		if err := s.limits.CheckAndReserve(ctx, tx, source, req.Amount, now); err != nil {
			return decimal.Zero, err
		}
		if err := s.accounts.Debit(ctx, tx, source, req.Amount, now); err != nil {
			return decimal.Zero, err
		}
		if err := s.accounts.Credit(ctx, tx, destination, req.Amount, now); err != nil {
			return decimal.Zero, err
		}
		return source.Balance, nil
	})
}

// apply runs one movement: lock, check, mutate, append, commit, publish.
func (s *TransactionService) apply(ctx context.Context, template *models.Transaction, mutate mutation) (*models.Transaction, error) {
	ids := involvedAccounts(template)

	var replayed bool
	record, err := s.runUnitOfWork(ctx, func(ctx context.Context, tx db.Tx, now time.Time) (*models.Transaction, error) {
		replayed = false

		locked, err := tx.LockAccounts(ctx, ids...)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if err := ensureActive(locked[id]); err != nil {
				return nil, err
			}
		}

		if template.Reference != "" {
			existing, err := tx.FindByReference(ctx, template.Reference)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				if !sameMovement(existing, template) {
					return nil, apperrors.NewValidationError("reference", "reference already used by a different movement")
				}
				replayed = true
				return existing, nil
			}
		}

		balanceAfter, err := mutate(ctx, tx, locked, now)
		if err != nil {
			return nil, err
		}

		record := *template
		record.ID = uuid.New().String()
		record.Status = models.Completed
		record.BalanceAfter = balanceAfter
		record.CreatedAt = now
		return s.log.Append(ctx, tx, &record)
	})
	if err != nil {
		s.markTransactionFailed(ctx, template, err)
		return nil, err
	}

	if replayed {
		s.logger.Info("reference replayed",
			zap.String("transaction_id", record.ID),
			zap.String("reference", record.Reference),
		)
		return record, nil
	}

	s.logger.Info("transaction completed",
		zap.String("transaction_id", record.ID),
		zap.String("type", string(record.Type)),
		zap.String("account_id", record.AccountID),
		zap.String("amount", record.Amount.StringFixed(2)),
	)
	s.publish(ctx, record)
	return record, nil
}

// runUnitOfWork commits work atomically, replaying it on concurrency
// conflicts. Each attempt gets its own commit timeout.
func (s *TransactionService) runUnitOfWork(ctx context.Context, work func(ctx context.Context, tx db.Tx, now time.Time) (*models.Transaction, error)) (*models.Transaction, error) {
	var result *models.Transaction
	err := s.retry.run(ctx, func(attempt int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
		defer cancel()

		result = nil
		err := s.store.WithTx(attemptCtx, func(tx db.Tx) error {
			record, err := work(attemptCtx, tx, s.clock.Now())
			if err != nil {
				return err
			}
			result = record
			return nil
		})
		if err != nil && apperrors.IsRetryable(err) {
			s.logger.Debug("unit of work conflicted", zap.Int("attempt", attempt+1), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// markTransactionFailed leaves a failed record for movements rejected by a
// business rule. It runs after the rejected unit of work has aborted and never
// touches balances.
func (s *TransactionService) markTransactionFailed(ctx context.Context, template *models.Transaction, cause error) {
	if !apperrors.IsBusinessRejection(cause) {
		return
	}

	s.logger.Warn("movement rejected",
		zap.String("type", string(template.Type)),
		zap.String("account_id", template.AccountID),
		zap.String("to_account_id", template.ToAccountID),
		zap.String("amount", template.Amount.StringFixed(2)),
		zap.String("code", string(apperrors.CodeOf(cause))),
	)
	if !s.recordFailures {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var failed *models.Transaction
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		locked, err := tx.LockAccounts(ctx, template.AccountID)
		if err != nil {
			return err
		}

		record := *template
		record.ID = uuid.New().String()
		record.Status = models.Failed
		record.Reference = ""
		record.BalanceAfter = locked[template.AccountID].Balance
		record.CreatedAt = s.clock.Now()
		failed, err = s.log.Append(ctx, tx, &record)
		return err
	})
	if err != nil {
		s.logger.Error("failed to record rejected movement",
			zap.String("account_id", template.AccountID),
			zap.Error(err),
		)
		return
	}
	s.publish(ctx, failed)
}

// publish announces a committed record. Failures are logged; the ledger
// itself is already durable.
func (s *TransactionService) publish(ctx context.Context, record *models.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransaction(ctx, record); err != nil {
		s.logger.Error("failed to publish ledger event",
			zap.String("transaction_id", record.ID),
			zap.Error(err),
		)
	}
}

// GetTransaction retrieves a transaction by ID
func (s *TransactionService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return s.log.Get(ctx, id)
}

// retrieves transactions for an account, both directions of transfers included
func (s *TransactionService) GetTransactionsByAccountID(ctx context.Context, accountID string, limit, offset int) ([]*models.Transaction, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.log.ListByAccount(ctx, accountID, limit, offset)
}

// Accounts exposes the single-account primitives.
func (s *TransactionService) Accounts() *AccountStore {
	return s.accounts
}

func involvedAccounts(t *models.Transaction) []string {
	if t.ToAccountID != "" {
		return []string{t.AccountID, t.ToAccountID}
	}
	return []string{t.AccountID}
}

func sameMovement(existing, requested *models.Transaction) bool {
	return existing.Type == requested.Type &&
		existing.AccountID == requested.AccountID &&
		existing.ToAccountID == requested.ToAccountID &&
		existing.Amount.Equal(requested.Amount)
}

func validateMovement(amount decimal.Decimal, category models.Category, note string) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if category != "" && !category.Valid() {
		return apperrors.NewValidationError("category", fmt.Sprintf("unknown category %q", category))
	}
	if utf8.RuneCountInString(note) > models.MaxNoteLength {
		return apperrors.NewValidationError("note", fmt.Sprintf("note cannot exceed %d characters", models.MaxNoteLength))
	}
	return nil
}

func categoryOrDefault(c models.Category) models.Category {
	if c == "" {
		return models.Other
	}
	return c
}
