package service

import (
	"context"
	"fmt"
	"time"

	"github.com/abkawan/personal-banking/internal/db"
	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LimitPolicy decides whether a transfer fits the account's daily allowance
// and the owner's calendar-window caps. Owners who never saved limits are held
// to models.DefaultTransferLimits.
type LimitPolicy struct {
	store  db.Store
	clock  Clock
	loc    *time.Location
	logger *zap.Logger
}

func NewLimitPolicy(store db.Store, clock Clock, loc *time.Location, logger *zap.Logger) *LimitPolicy {
	if loc == nil {
		loc = time.UTC
	}
	return &LimitPolicy{
		store:  store,
		clock:  clock,
		loc:    loc,
		logger: logger.Named("limits"),
	}
}

type limitWindow struct {
	name  string
	since time.Time
	limit decimal.Decimal
}

func (p *LimitPolicy) windows(limits *models.TransferLimits, now time.Time) []limitWindow {
	return []limitWindow{
		{name: "daily", since: startOfDay(now, p.loc), limit: limits.DailyLimit},
		{name: "weekly", since: startOfWeek(now, p.loc), limit: limits.WeeklyLimit},
		{name: "monthly", since: startOfMonth(now, p.loc), limit: limits.MonthlyLimit},
	}
}

// CheckAndReserve admits amount against a source account locked in tx and
// records it on the account's counter. The caller persists the account, so the
// reservation disappears with the unit of work if it aborts.
func (p *LimitPolicy) CheckAndReserve(ctx context.Context, tx db.Tx, account *models.Account, amount decimal.Decimal, now time.Time) error {
	if !sameDay(account.LastTransferDate, now, p.loc) {
		resetDailyCounter(account)
	}

	projected := account.AmountTransferredToday.Add(amount)
	if projected.GreaterThan(account.DailyTransferLimit) {
		return apperrors.LimitExceeded("daily", fmt.Sprintf(
			"transfer of %s exceeds daily limit %s for account %s (%s already transferred today)",
			amount.StringFixed(2), account.DailyTransferLimit.StringFixed(2), account.ID,
			account.AmountTransferredToday.StringFixed(2)))
	}

	limits, err := tx.LockTransferLimits(ctx, account.OwnerID)
	if err != nil {
		return err
	}
	for _, w := range p.windows(limits, now) {
		sent, err := tx.SumOutgoingTransfers(ctx, account.OwnerID, w.since)
		if err != nil {
			return err
		}
		if sent.Add(amount).GreaterThan(w.limit) {
			return apperrors.LimitExceeded(w.name, fmt.Sprintf(
				"transfer of %s exceeds %s limit %s for owner %s (%s already sent)",
				amount.StringFixed(2), w.name, w.limit.StringFixed(2), account.OwnerID, sent.StringFixed(2)))
		}
	}

	account.AmountTransferredToday = projected
	account.LastTransferDate = now
	return nil
}

// ValidateTransferLimits checks bounds and daily <= weekly <= monthly.
func ValidateTransferLimits(limits *models.TransferLimits) error {
	checks := []struct {
		field string
		value decimal.Decimal
		max   decimal.Decimal
	}{
		{"daily_limit", limits.DailyLimit, models.MaxDailyLimit},
		{"weekly_limit", limits.WeeklyLimit, models.MaxWeeklyLimit},
		{"monthly_limit", limits.MonthlyLimit, models.MaxMonthlyLimit},
	}
	for _, c := range checks {
		if c.value.IsNegative() {
			return apperrors.NewValidationError(c.field, "limit cannot be negative")
		}
		if c.value.GreaterThan(c.max) {
			return apperrors.NewValidationError(c.field, fmt.Sprintf("limit cannot exceed %s", c.max.String()))
		}
	}

	if limits.DailyLimit.GreaterThan(limits.WeeklyLimit) {
		return apperrors.NewValidationError("daily_limit", "daily limit cannot be greater than weekly limit")
	}
	if limits.WeeklyLimit.GreaterThan(limits.MonthlyLimit) {
		return apperrors.NewValidationError("weekly_limit", "weekly limit cannot be greater than monthly limit")
	}
	return nil
}

func (p *LimitPolicy) UpdateTransferLimits(ctx context.Context, ownerID string, req models.UpdateTransferLimitsRequest) (*models.TransferLimits, error) {
	if ownerID == "" {
		return nil, apperrors.NewValidationError("owner_id", "owner id is required")
	}

	limits := &models.TransferLimits{
		OwnerID:      ownerID,
		DailyLimit:   req.DailyLimit,
		WeeklyLimit:  req.WeeklyLimit,
		MonthlyLimit: req.MonthlyLimit,
		UpdatedAt:    p.clock.Now(),
	}
	if err := ValidateTransferLimits(limits); err != nil {
		return nil, err
	}

	if err := p.store.SaveTransferLimits(ctx, limits); err != nil {
		return nil, err
	}

	p.logger.Info("transfer limits updated",
		zap.String("owner_id", ownerID),
		zap.String("daily", limits.DailyLimit.String()),
		zap.String("weekly", limits.WeeklyLimit.String()),
		zap.String("monthly", limits.MonthlyLimit.String()),
	)
	return limits, nil
}

// GetTransferLimits returns the owner's saved limits or the defaults.
func (p *LimitPolicy) GetTransferLimits(ctx context.Context, ownerID string) (*models.TransferLimits, error) {
	limits, err := p.store.GetTransferLimits(ctx, ownerID)
	if apperrors.IsNotFound(err) {
		defaults := models.DefaultTransferLimits(ownerID)
		return &defaults, nil
	}
	return limits, err
}

// CheckWithinLimits reports how amount would sit against each of the owner's windows.
func (p *LimitPolicy) CheckWithinLimits(ctx context.Context, ownerID string, amount decimal.Decimal) (*models.LimitHeadroom, error) {
	if amount.IsNegative() {
		return nil, apperrors.New(apperrors.CodeInvalidAmount, "amount cannot be negative")
	}

	limits, err := p.GetTransferLimits(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := p.clock.Now()
	remaining := make([]decimal.Decimal, 0, 3)
	err = p.store.WithTx(ctx, func(tx db.Tx) error {
		for _, w := range p.windows(limits, now) {
			sent, err := tx.SumOutgoingTransfers(ctx, ownerID, w.since)
			if err != nil {
				return err
			}
			left := w.limit.Sub(sent)
			if left.IsNegative() {
				left = decimal.Zero
			}
			remaining = append(remaining, left)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.LimitHeadroom{
		IsWithinDaily:    amount.LessThanOrEqual(remaining[0]),
		IsWithinWeekly:   amount.LessThanOrEqual(remaining[1]),
		IsWithinMonthly:  amount.LessThanOrEqual(remaining[2]),
		DailyRemaining:   remaining[0],
		WeeklyRemaining:  remaining[1],
		MonthlyRemaining: remaining[2],
	}, nil
}
