package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	// Deposit represents a deposit transaction
	Deposit TransactionType = "deposit"

	// Withdrawal represents a withdrawal transaction
	Withdrawal TransactionType = "withdrawal"

	// Transfer moves money between two distinct accounts
	Transfer TransactionType = "transfer"
)

type TransactionStatus string

const (
	// Pending indicates the transaction is in processing state.
	Pending TransactionStatus = "pending"

	// Completed indicates the transaction successfully processed
	Completed TransactionStatus = "completed"

	// Failed indicates the transaction failed to process
	Failed TransactionStatus = "failed"

	Cancelled TransactionStatus = "cancelled"
)

type Category string

const (
	Food           Category = "food"
	Entertainment  Category = "entertainment"
	Bills          Category = "bills"
	Transportation Category = "transportation"
	Shopping       Category = "shopping"
	Other          Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case Food, Entertainment, Bills, Transportation, Shopping, Other:
		return true
	}
	return false
}

// MaxNoteLength bounds the free-text note on a transaction.
const MaxNoteLength = 250

// Transaction is one immutable record of the ledger log.
// For transfers AccountID is the source account.
type Transaction struct {
	ID            string            `json:"id"`
	AccountID     string            `json:"account_id"`
	FromAccountID string            `json:"from_account_id,omitempty"`
	ToAccountID   string            `json:"to_account_id,omitempty"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Category      Category          `json:"category"`
	Amount        decimal.Decimal   `json:"amount"`
	Note          string            `json:"note,omitempty"`
	Reference     string            `json:"reference,omitempty"`
	BalanceAfter  decimal.Decimal   `json:"balance_after"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Touches reports whether the record moved money on accountID.
func (t *Transaction) Touches(accountID string) bool {
	return t.AccountID == accountID || t.FromAccountID == accountID || t.ToAccountID == accountID
}

// MovementRequest is a deposit or withdrawal against one account.
type MovementRequest struct {
	AccountID string          `json:"-"`
	Amount    decimal.Decimal `json:"amount"`
	Category  Category        `json:"category,omitempty" validate:"omitempty,oneof=food entertainment bills transportation shopping other"`
	Note      string          `json:"note,omitempty" validate:"max=250"`
	Reference string          `json:"reference,omitempty" validate:"omitempty,max=64"`
}

type TransferRequest struct {
	FromAccountID string          `json:"from_account_id" validate:"required"`
	ToAccountID   string          `json:"to_account_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Category      Category        `json:"category,omitempty" validate:"omitempty,oneof=food entertainment bills transportation shopping other"`
	Note          string          `json:"note,omitempty" validate:"max=250"`
	Reference     string          `json:"reference,omitempty" validate:"omitempty,max=64"`
}

// TransactionFilter selects records from the log. Zero values do not filter.
type TransactionFilter struct {
	AccountID string
	// Counterparty also matches transfers where AccountID is the destination.
	Counterparty bool
	Types        []TransactionType
	Status       TransactionStatus
	From         time.Time
	To           time.Time
	Limit        int
	Offset       int
}

// Matches applies the filter in process; stores that cannot push it down use this.
func (f TransactionFilter) Matches(t *Transaction) bool {
	if f.AccountID != "" {
		if f.Counterparty {
			if !t.Touches(f.AccountID) {
				return false
			}
		} else if t.AccountID != f.AccountID {
			return false
		}
	}
	if len(f.Types) > 0 {
		found := false
		for _, typ := range f.Types {
			if t.Type == typ {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.CreatedAt.After(f.To) {
		return false
	}
	return true
}
