package service

import (
	"context"
	"fmt"

	"github.com/abkawan/personal-banking/internal/db"
	"github.com/abkawan/personal-banking/internal/models"
	"go.uber.org/zap"
)

// StatementRepository is the read-side projection of the ledger log.
type StatementRepository interface {
	UpsertTransaction(ctx context.Context, tx *models.Transaction) error
	GetStatement(ctx context.Context, accountID string, limit, offset int) ([]*models.Transaction, error)
}

var _ StatementRepository = (*db.MongoDB)(nil)

// StatementService feeds and serves account statements.
type StatementService struct {
	store      db.Store
	repository StatementRepository
	logger     *zap.Logger
}

func NewStatementService(store db.Store, repository StatementRepository, logger *zap.Logger) *StatementService {
	return &StatementService{
		store:      store,
		repository: repository,
		logger:     logger.Named("statements"),
	}
}

// ProcessTransaction projects one consumed ledger event. Only settled records
// are projected; pending ones are dropped.
func (s *StatementService) ProcessTransaction(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" || tx.AccountID == "" {
		return fmt.Errorf("ledger event without id or account")
	}
	if tx.Status != models.Completed && tx.Status != models.Failed {
		s.logger.Debug("skipping unsettled event", zap.String("transaction_id", tx.ID), zap.String("status", string(tx.Status)))
		return nil
	}

	if err := s.repository.UpsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to project transaction %s: %w", tx.ID, err)
	}

	s.logger.Info("projected transaction", zap.String("transaction_id", tx.ID), zap.String("status", string(tx.Status)))
	return nil
}

// GetStatement pages through the projection, newest first.
func (s *StatementService) GetStatement(ctx context.Context, accountID string, limit, offset int) ([]*models.Transaction, error) {
	if s.store != nil {
		if _, err := s.store.GetAccount(ctx, accountID); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repository.GetStatement(ctx, accountID, limit, offset)
}
