package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, account_id, from_account_id, to_account_id, type, status, category,
	amount, note, reference, balance_after, created_at`

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		record              models.Transaction
		from, to, note, ref sql.NullString
	)
	err := row.Scan(
		&record.ID, &record.AccountID, &from, &to, &record.Type, &record.Status, &record.Category,
		&record.Amount, &note, &ref, &record.BalanceAfter, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.FromAccountID = from.String
	record.ToAccountID = to.String
	record.Note = note.String
	record.Reference = ref.String
	return &record, nil
}

// retrieves a transaction by ID
func (p *Postgres) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	record, err := scanTransaction(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("transaction", id)
		}
		return nil, classify(fmt.Errorf("failed to get transaction: %w", err))
	}
	return record, nil
}

// ListTransactions pushes the filter down to SQL.
func (p *Postgres) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.AccountID != "" {
		ph := arg(filter.AccountID)
		if filter.Counterparty {
			conds = append(conds, fmt.Sprintf("(account_id = %s OR to_account_id = %s)", ph, ph))
		} else {
			conds = append(conds, "account_id = "+ph)
		}
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		conds = append(conds, "type = ANY("+arg(pq.Array(types))+")")
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(filter.Status))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "created_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_at <= "+arg(filter.To))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list transactions: %w", err))
	}
	defer rows.Close()

	var records []*models.Transaction
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("error iterating over transactions: %w", err))
	}
	return records, nil
}

func (t *postgresTx) AppendTransaction(ctx context.Context, record *models.Transaction) error {
	query := `
	INSERT INTO transactions (` + transactionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := t.tx.ExecContext(ctx, query,
		record.ID, record.AccountID, nullString(record.FromAccountID), nullString(record.ToAccountID),
		record.Type, record.Status, record.Category, record.Amount,
		nullString(record.Note), nullString(record.Reference), record.BalanceAfter, record.CreatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to append transaction: %w", err))
	}
	return nil
}

func (t *postgresTx) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1 AND status = $2`

	record, err := scanTransaction(t.tx.QueryRowContext(ctx, query, reference, models.Completed))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, classify(fmt.Errorf("failed to look up reference: %w", err))
	}
	return record, nil
}

func (t *postgresTx) SumOutgoingTransfers(ctx context.Context, ownerID string, since time.Time) (decimal.Decimal, error) {
	query := `
	SELECT COALESCE(SUM(t.amount), 0)
	FROM transactions t
	JOIN accounts a ON a.id = t.from_account_id
	WHERE a.owner_id = $1 AND t.type = $2 AND t.status = $3 AND t.created_at >= $4`

	var total decimal.Decimal
	err := t.tx.QueryRowContext(ctx, query, ownerID, models.Transfer, models.Completed, since).Scan(&total)
	if err != nil {
		return decimal.Zero, classify(fmt.Errorf("failed to sum outgoing transfers: %w", err))
	}
	return total, nil
}
