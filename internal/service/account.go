package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/abkawan/personal-banking/internal/db"
	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// handles account opening and lifecycle
type AccountService struct {
	store  db.Store
	clock  Clock
	logger *zap.Logger
}

// creates a new Account Service
func NewAccountService(store db.Store, clock Clock, logger *zap.Logger) *AccountService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AccountService{
		store:  store,
		clock:  clock,
		logger: logger.Named("accounts"),
	}
}

// OpenAccount validates the request, fills defaults and persists a new active account.
func (s *AccountService) OpenAccount(ctx context.Context, req *models.CreateAccountRequest) (*models.Account, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, apperrors.NewValidationError("owner_id", "owner id is required")
	}
	switch req.Type {
	case models.Savings, models.Current:
	default:
		return nil, apperrors.NewValidationError("account_type", fmt.Sprintf("account type must be savings or current, got %q", req.Type))
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = models.DefaultCurrency
	}
	if !models.SupportedCurrencies[currency] {
		return nil, apperrors.NewValidationError("currency", fmt.Sprintf("unsupported currency %q", currency))
	}

	if req.InitialBalance.IsNegative() {
		return nil, apperrors.NewValidationError("initial_balance", "initial balance cannot be negative")
	}
	if !req.InitialBalance.Equal(req.InitialBalance.Round(2)) {
		return nil, apperrors.NewValidationError("initial_balance", "initial balance cannot have more than two decimal places")
	}

	dailyLimit := models.DefaultDailyTransferLimit
	if req.DailyTransferLimit != nil {
		if req.DailyTransferLimit.IsNegative() {
			return nil, apperrors.NewValidationError("daily_transfer_limit", "daily transfer limit cannot be negative")
		}
		if !req.DailyTransferLimit.Equal(req.DailyTransferLimit.Round(2)) {
			return nil, apperrors.NewValidationError("daily_transfer_limit", "daily transfer limit cannot have more than two decimal places")
		}
		dailyLimit = *req.DailyTransferLimit
	}

	now := s.clock.Now()
	number := req.AccountNumber
	if number == "" {
		number = generateAccountNumber(now.UnixMilli())
	}

	account := &models.Account{
		ID:                 uuid.New().String(),
		AccountNumber:      number,
		OwnerID:            req.OwnerID,
		Type:               req.Type,
		Currency:           currency,
		Status:             models.Active,
		Balance:            req.InitialBalance,
		DailyTransferLimit: dailyLimit,
		LastTransferDate:   now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account opened",
		zap.String("account_id", account.ID),
		zap.String("owner_id", account.OwnerID),
		zap.String("account_number", account.AccountNumber),
	)
	return account, nil
}

// retrieves an account by ID
func (s *AccountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return s.store.GetAccount(ctx, id)
}

// ListAccounts returns an owner's accounts; activeOnly restricts to the active view.
func (s *AccountService) ListAccounts(ctx context.Context, ownerID string, activeOnly bool) ([]*models.Account, error) {
	return s.store.ListAccounts(ctx, ownerID, activeOnly)
}

// SetStatus transitions an account. Closed is terminal.
func (s *AccountService) SetStatus(ctx context.Context, id string, status models.AccountStatus) (*models.Account, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	var updated *models.Account
	err := s.store.WithTx(ctx, func(tx db.Tx) error {
		locked, err := tx.LockAccounts(ctx, id)
		if err != nil {
			return err
		}
		account := locked[id]
		if account.Status == status {
			updated = account.Clone()
			return nil
		}
		if account.Status == models.Closed {
			return apperrors.NewValidationError("status", "closed accounts cannot be reopened")
		}

		account.Status = status
		account.UpdatedAt = s.clock.Now()
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		updated = account.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account status changed", zap.String("account_id", id), zap.String("status", string(status)))
	return updated, nil
}

func generateAccountNumber(unixMillis int64) string {
	return fmt.Sprintf("ACCT-%d-%04d", unixMillis, rand.Intn(10000))
}
