package db

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
)

const limitsColumns = `owner_id, daily_limit, weekly_limit, monthly_limit, updated_at`

func scanLimits(row rowScanner) (*models.TransferLimits, error) {
	var limits models.TransferLimits
	if err := row.Scan(&limits.OwnerID, &limits.DailyLimit, &limits.WeeklyLimit, &limits.MonthlyLimit, &limits.UpdatedAt); err != nil {
		return nil, err
	}
	return &limits, nil
}

func (p *Postgres) GetTransferLimits(ctx context.Context, ownerID string) (*models.TransferLimits, error) {
	query := `SELECT ` + limitsColumns + ` FROM transfer_limits WHERE owner_id = $1`

	limits, err := scanLimits(p.db.QueryRowContext(ctx, query, ownerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("transfer limits for owner", ownerID)
		}
		return nil, classify(fmt.Errorf("failed to get transfer limits: %w", err))
	}
	return limits, nil
}

// SaveTransferLimits upserts; the row lock it takes queues behind transfers holding the same owner.
func (p *Postgres) SaveTransferLimits(ctx context.Context, limits *models.TransferLimits) error {
	query := `
	INSERT INTO transfer_limits (` + limitsColumns + `)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (owner_id) DO UPDATE
	SET daily_limit = EXCLUDED.daily_limit,
		weekly_limit = EXCLUDED.weekly_limit,
		monthly_limit = EXCLUDED.monthly_limit,
		updated_at = EXCLUDED.updated_at`

	_, err := p.db.ExecContext(ctx, query,
		limits.OwnerID, limits.DailyLimit, limits.WeeklyLimit, limits.MonthlyLimit, limits.UpdatedAt)
	if err != nil {
		return classify(fmt.Errorf("failed to save transfer limits: %w", err))
	}
	return nil
}

// LockTransferLimits materializes the defaults for an owner without a row so
// that concurrent transfers from the same owner queue on one row lock.
func (t *postgresTx) LockTransferLimits(ctx context.Context, ownerID string) (*models.TransferLimits, error) {
	defaults := models.DefaultTransferLimits(ownerID)
	insert := `
	INSERT INTO transfer_limits (` + limitsColumns + `)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (owner_id) DO NOTHING`

	_, err := t.tx.ExecContext(ctx, insert, ownerID, defaults.DailyLimit, defaults.WeeklyLimit, defaults.MonthlyLimit)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to create default transfer limits: %w", err))
	}

	query := `SELECT ` + limitsColumns + ` FROM transfer_limits WHERE owner_id = $1 FOR UPDATE`
	limits, err := scanLimits(t.tx.QueryRowContext(ctx, query, ownerID))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to lock transfer limits: %w", err))
	}
	return limits, nil
}
