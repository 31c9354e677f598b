package db

import (
	"context"
	"time"

	"github.com/abkawan/personal-banking/internal/models"
	"github.com/shopspring/decimal"
)

// Store is the transactional persistence the ledger core runs on.
// Reads outside WithTx see committed state only.
type Store interface {
	// WithTx runs fn as one unit of work. fn's writes become visible together
	// when it returns nil and are discarded when it returns an error.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context, ownerID string, activeOnly bool) ([]*models.Account, error)

	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	// ListTransactions returns matches newest first.
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)

	GetTransferLimits(ctx context.Context, ownerID string) (*models.TransferLimits, error)
	SaveTransferLimits(ctx context.Context, limits *models.TransferLimits) error

	Close() error
}

// Tx is a unit of work in progress.
type Tx interface {
	// LockAccounts locks every id in ascending order and returns private copies.
	// Call it once per unit of work with all accounts that will be mutated.
	LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error)

	// LockTransferLimits locks an owner's limits, falling back to
	// models.DefaultTransferLimits when none were saved. Acquire it after LockAccounts.
	LockTransferLimits(ctx context.Context, ownerID string) (*models.TransferLimits, error)

	// UpdateAccount stages balance, limit tracking and status of a locked account.
	UpdateAccount(ctx context.Context, account *models.Account) error

	AppendTransaction(ctx context.Context, record *models.Transaction) error

	// FindByReference returns nil when no completed record carries reference.
	FindByReference(ctx context.Context, reference string) (*models.Transaction, error)

	// SumOutgoingTransfers totals completed transfers sent from any of the owner's accounts since the given time.
	SumOutgoingTransfers(ctx context.Context, ownerID string, since time.Time) (decimal.Decimal, error)
}
