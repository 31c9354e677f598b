package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GroupBy string

const (
	ByDay   GroupBy = "day"
	ByWeek  GroupBy = "week"
	ByMonth GroupBy = "month"
)

type IncomeExpenses struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

type CategorySpending struct {
	Category   Category        `json:"category"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// HistoryBucket aggregates one calendar day, ISO week or month.
// Bucket is the start of the period.
type HistoryBucket struct {
	Bucket        time.Time       `json:"bucket"`
	Label         string          `json:"label"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
}
