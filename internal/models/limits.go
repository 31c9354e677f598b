package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferLimits caps what an owner may send per calendar window.
type TransferLimits struct {
	OwnerID      string          `json:"owner_id"`
	DailyLimit   decimal.Decimal `json:"daily_limit"`
	WeeklyLimit  decimal.Decimal `json:"weekly_limit"`
	MonthlyLimit decimal.Decimal `json:"monthly_limit"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Upper bounds accepted for each window.
var (
	MaxDailyLimit   = decimal.NewFromInt(1_000_000)
	MaxWeeklyLimit  = decimal.NewFromInt(5_000_000)
	MaxMonthlyLimit = decimal.NewFromInt(20_000_000)
)

// DefaultTransferLimits mirrors the values a new owner starts with.
func DefaultTransferLimits(ownerID string) TransferLimits {
	return TransferLimits{
		OwnerID:      ownerID,
		DailyLimit:   decimal.NewFromInt(10_000),
		WeeklyLimit:  decimal.NewFromInt(50_000),
		MonthlyLimit: decimal.NewFromInt(200_000),
	}
}

type UpdateTransferLimitsRequest struct {
	DailyLimit   decimal.Decimal `json:"daily_limit"`
	WeeklyLimit  decimal.Decimal `json:"weekly_limit"`
	MonthlyLimit decimal.Decimal `json:"monthly_limit"`
}

// LimitHeadroom reports how much more may be transferred in each window.
type LimitHeadroom struct {
	IsWithinDaily    bool            `json:"is_within_daily"`
	IsWithinWeekly   bool            `json:"is_within_weekly"`
	IsWithinMonthly  bool            `json:"is_within_monthly"`
	DailyRemaining   decimal.Decimal `json:"daily_remaining"`
	WeeklyRemaining  decimal.Decimal `json:"weekly_remaining"`
	MonthlyRemaining decimal.Decimal `json:"monthly_remaining"`
}
