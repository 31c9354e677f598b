package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	Savings AccountType = "savings"
	Current AccountType = "current"
)

type AccountStatus string

const (
	// Active accounts accept movements.
	Active AccountStatus = "active"

	Inactive  AccountStatus = "inactive"
	Suspended AccountStatus = "suspended"

	// Closed is terminal; accounts are never physically deleted.
	Closed AccountStatus = "closed"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	switch s {
	case Active, Inactive, Suspended, Closed:
		return true
	}
	return false
}

// SupportedCurrencies lists the currency codes an account may be opened in.
var SupportedCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CAD": true, "AUD": true,
}

const DefaultCurrency = "USD"

// DefaultDailyTransferLimit applies when an account is opened without one.
var DefaultDailyTransferLimit = decimal.NewFromInt(10000)

type Account struct {
	ID            string          `json:"id" db:"id"`
	AccountNumber string          `json:"account_number" db:"account_number"`
	OwnerID       string          `json:"owner_id" db:"owner_id"`
	Type          AccountType     `json:"account_type" db:"account_type"`
	Currency      string          `json:"currency" db:"currency"`
	Status        AccountStatus   `json:"status" db:"status"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`

	DailyTransferLimit     decimal.Decimal `json:"daily_transfer_limit" db:"daily_transfer_limit"`
	AmountTransferredToday decimal.Decimal `json:"amount_transferred_today" db:"amount_transferred_today"`
	LastTransferDate       time.Time       `json:"last_transfer_date" db:"last_transfer_date"`

	// Version increases on every committed mutation.
	Version   int64     `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Clone returns a copy safe to mutate while staging a unit of work.
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}

type CreateAccountRequest struct {
	OwnerID            string           `json:"owner_id" validate:"required"`
	AccountNumber      string           `json:"account_number,omitempty" validate:"omitempty,max=40"`
	Type               AccountType      `json:"account_type" validate:"required,oneof=savings current"`
	Currency           string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	InitialBalance     decimal.Decimal  `json:"initial_balance"`
	DailyTransferLimit *decimal.Decimal `json:"daily_transfer_limit,omitempty"`
}

type UpdateStatusRequest struct {
	Status AccountStatus `json:"status" validate:"required,oneof=active inactive suspended closed"`
}

type AccountResponse struct {
	ID                     string          `json:"id"`
	AccountNumber          string          `json:"account_number"`
	OwnerID                string          `json:"owner_id"`
	Type                   AccountType     `json:"account_type"`
	Currency               string          `json:"currency"`
	Status                 AccountStatus   `json:"status"`
	Balance                decimal.Decimal `json:"balance"`
	DailyTransferLimit     decimal.Decimal `json:"daily_transfer_limit"`
	AmountTransferredToday decimal.Decimal `json:"amount_transferred_today"`
	CreatedAt              time.Time       `json:"created_at"`
}

func NewAccountResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:                     a.ID,
		AccountNumber:          a.AccountNumber,
		OwnerID:                a.OwnerID,
		Type:                   a.Type,
		Currency:               a.Currency,
		Status:                 a.Status,
		Balance:                a.Balance,
		DailyTransferLimit:     a.DailyTransferLimit,
		AmountTransferredToday: a.AmountTransferredToday,
		CreatedAt:              a.CreatedAt,
	}
}
