package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/lib/pq"
)

const accountColumns = `id, account_number, owner_id, account_type, currency, status, balance,
	daily_transfer_limit, amount_transferred_today, last_transfer_date, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID, &account.AccountNumber, &account.OwnerID, &account.Type, &account.Currency,
		&account.Status, &account.Balance, &account.DailyTransferLimit, &account.AmountTransferredToday,
		&account.LastTransferDate, &account.Version, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// creates a new account
func (p *Postgres) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
	INSERT INTO accounts (` + accountColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := p.db.ExecContext(ctx, query,
		account.ID, account.AccountNumber, account.OwnerID, account.Type, account.Currency,
		account.Status, account.Balance, account.DailyTransferLimit, account.AmountTransferredToday,
		account.LastTransferDate, account.Version, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to create account: %w", err))
	}
	return nil
}

// retrieves an account by ID
func (p *Postgres) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("account", id)
		}
		return nil, classify(fmt.Errorf("failed to get account: %w", err))
	}
	return account, nil
}

// ListAccounts filters inactive accounts only when asked to.
func (p *Postgres) ListAccounts(ctx context.Context, ownerID string, activeOnly bool) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1`
	args := []interface{}{ownerID}
	if activeOnly {
		query += ` AND status = $2`
		args = append(args, models.Active)
	}
	query += ` ORDER BY created_at, id`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list accounts: %w", err))
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("error iterating over accounts: %w", err))
	}
	return accounts, nil
}

// LockAccounts takes FOR UPDATE row locks; ORDER BY runs below the lock step,
// so rows are locked in id order whatever the caller's argument order.
func (t *postgresTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	ordered := canonicalOrder(ids)

	query := `SELECT ` + accountColumns + `
	FROM accounts
	WHERE id = ANY($1)
	ORDER BY id COLLATE "C"
	FOR UPDATE`

	rows, err := t.tx.QueryContext(ctx, query, pq.Array(ordered))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to lock accounts: %w", err))
	}
	defer rows.Close()

	locked := make(map[string]*models.Account, len(ordered))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan locked account: %w", err)
		}
		locked[account.ID] = account
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to lock accounts: %w", err))
	}

	missing := make([]string, 0)
	for _, id := range ordered {
		if _, ok := locked[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperrors.NotFound("account", missing[0])
	}
	return locked, nil
}

func (t *postgresTx) UpdateAccount(ctx context.Context, account *models.Account) error {
	query := `
	UPDATE accounts
	SET balance = $1, amount_transferred_today = $2, last_transfer_date = $3,
		status = $4, version = version + 1, updated_at = $5
	WHERE id = $6
	RETURNING version`

	err := t.tx.QueryRowContext(ctx, query,
		account.Balance, account.AmountTransferredToday, account.LastTransferDate,
		account.Status, account.UpdatedAt, account.ID,
	).Scan(&account.Version)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperrors.NotFound("account", account.ID)
		}
		return classify(fmt.Errorf("failed to update account: %w", err))
	}
	return nil
}
