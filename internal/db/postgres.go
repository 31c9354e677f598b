package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/lib/pq"
)

// Postgres handles PostgreSQL database operations
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

// creates a new Postgres instance
func NewPostgres(connStr string) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping is used by the health endpoint.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id VARCHAR(36) PRIMARY KEY,
		account_number VARCHAR(40) NOT NULL UNIQUE,
		owner_id VARCHAR(36) NOT NULL,
		account_type VARCHAR(16) NOT NULL,
		currency CHAR(3) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		balance NUMERIC(20, 2) NOT NULL CHECK (balance >= 0),
		daily_transfer_limit NUMERIC(20, 2) NOT NULL CHECK (daily_transfer_limit >= 0),
		amount_transferred_today NUMERIC(20, 2) NOT NULL DEFAULT 0 CHECK (amount_transferred_today >= 0),
		last_transfer_date TIMESTAMPTZ NOT NULL,
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_owner_id ON accounts(owner_id)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id VARCHAR(36) PRIMARY KEY,
		account_id VARCHAR(36) NOT NULL REFERENCES accounts(id),
		from_account_id VARCHAR(36) REFERENCES accounts(id),
		to_account_id VARCHAR(36) REFERENCES accounts(id),
		type VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL,
		category VARCHAR(32) NOT NULL DEFAULT 'other',
		amount NUMERIC(20, 2) NOT NULL CHECK (amount > 0),
		note VARCHAR(250),
		reference VARCHAR(64),
		balance_after NUMERIC(20, 2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		CHECK (
			(type = 'transfer' AND from_account_id IS NOT NULL AND to_account_id IS NOT NULL AND from_account_id <> to_account_id)
			OR (type <> 'transfer' AND from_account_id IS NULL AND to_account_id IS NULL)
		)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account_created ON transactions(account_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_to_account ON transactions(to_account_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_reference ON transactions(reference) WHERE reference IS NOT NULL`,

	// The log is append-only: completed rows can be neither updated nor deleted.
	`CREATE OR REPLACE FUNCTION transactions_immutable() RETURNS trigger AS $$
	BEGIN
		IF OLD.status = 'completed' THEN
			RAISE EXCEPTION 'completed transaction % is immutable', OLD.id;
		END IF;
		IF TG_OP = 'DELETE' THEN
			RETURN OLD;
		END IF;
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS transactions_immutable ON transactions`,
	`CREATE TRIGGER transactions_immutable BEFORE UPDATE OR DELETE ON transactions
		FOR EACH ROW EXECUTE FUNCTION transactions_immutable()`,

	`CREATE TABLE IF NOT EXISTS transfer_limits (
		owner_id VARCHAR(36) PRIMARY KEY,
		daily_limit NUMERIC(20, 2) NOT NULL CHECK (daily_limit >= 0),
		weekly_limit NUMERIC(20, 2) NOT NULL,
		monthly_limit NUMERIC(20, 2) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (daily_limit <= weekly_limit AND weekly_limit <= monthly_limit)
	)`,
}

// initialize the database schema
func (p *Postgres) InitSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	return nil
}

// WithTx runs fn inside a READ COMMITTED transaction; isolation between movements
// comes from the row locks taken by LockAccounts.
func (p *Postgres) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		tx = nil
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	tx = nil
	return nil
}

type postgresTx struct {
	tx *sql.Tx
}

// Postgres error codes the ledger reacts to.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
	pqCheckViolation       = "23514"
	pqUniqueViolation      = "23505"
	pqQueryCanceled        = "57014"
)

// classify maps driver failures onto the ledger taxonomy. Errors that already
// carry a ledger code pass through untouched.
func classify(err error) error {
	if err == nil || apperrors.CodeOf(err) != "" {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return apperrors.Conflict(err)
		case pqCheckViolation:
			if pqErr.Constraint == "accounts_balance_check" {
				return apperrors.Wrap(apperrors.CodeInsufficientFunds, "balance cannot become negative", err)
			}
			return apperrors.Wrap(apperrors.CodeValidation, "constraint violated: "+pqErr.Constraint, err)
		case pqUniqueViolation:
			if pqErr.Constraint == "idx_transactions_reference" {
				// Another unit of work committed the same reference first; a replay returns it.
				return apperrors.Conflict(err)
			}
			return apperrors.Wrap(apperrors.CodeValidation, "duplicate value for "+pqErr.Constraint, err)
		case pqQueryCanceled:
			return apperrors.Unavailable(err)
		}
		if pqErr.Code.Class() == "08" {
			return apperrors.Unavailable(err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return apperrors.Unavailable(err)
	}
	return err
}

// nullString stores empty optional columns as NULL.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
