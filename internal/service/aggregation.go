package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/abkawan/personal-banking/internal/db"
	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultTopExpenses is used when no positive limit is given.
const DefaultTopExpenses = 5

// AggregationService derives read-only statistics from completed records that
// reference an account. Deposits count as income, withdrawals as expenses.
type AggregationService struct {
	store db.Store
	log   *TransactionLog
	loc   *time.Location
}

func NewAggregationService(store db.Store, loc *time.Location) *AggregationService {
	if loc == nil {
		loc = time.UTC
	}
	return &AggregationService{
		store: store,
		log:   NewTransactionLog(store),
		loc:   loc,
	}
}

func (a *AggregationService) IncomeAndExpenses(ctx context.Context, accountID string, start, end time.Time) (*models.IncomeExpenses, error) {
	records, err := a.rangeQuery(ctx, accountID, start, end, models.Deposit, models.Withdrawal)
	if err != nil {
		return nil, err
	}

	result := &models.IncomeExpenses{Income: decimal.Zero, Expenses: decimal.Zero}
	for _, r := range records {
		switch r.Type {
		case models.Deposit:
			result.Income = result.Income.Add(r.Amount)
		case models.Withdrawal:
			result.Expenses = result.Expenses.Add(r.Amount)
		}
	}
	return result, nil
}

// SpendingByCategory groups withdrawals by category, largest total first.
func (a *AggregationService) SpendingByCategory(ctx context.Context, accountID string, start, end time.Time) ([]models.CategorySpending, error) {
	records, err := a.rangeQuery(ctx, accountID, start, end, models.Withdrawal)
	if err != nil {
		return nil, err
	}

	totals := make(map[models.Category]decimal.Decimal)
	for _, r := range records {
		totals[r.Category] = totals[r.Category].Add(r.Amount)
	}

	result := make([]models.CategorySpending, 0, len(totals))
	for category, total := range totals {
		result = append(result, models.CategorySpending{Category: category, TotalSpent: total})
	}
	sort.Slice(result, func(i, j int) bool {
		if cmp := result[i].TotalSpent.Cmp(result[j].TotalSpent); cmp != 0 {
			return cmp > 0
		}
		return result[i].Category < result[j].Category
	})
	return result, nil
}

// TopExpenses returns the largest withdrawals; equal amounts list the newer first.
func (a *AggregationService) TopExpenses(ctx context.Context, accountID string, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = DefaultTopExpenses
	}
	if _, err := a.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	records, err := a.log.completed(ctx, accountID, time.Time{}, time.Time{}, models.Withdrawal)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		if cmp := records[i].Amount.Cmp(records[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// TransactionHistory buckets income and expenses by calendar day, ISO week or
// month, oldest bucket first. An empty groupBy means month. Transfers open a
// bucket but add to neither total.
func (a *AggregationService) TransactionHistory(ctx context.Context, accountID string, start, end time.Time, groupBy models.GroupBy) ([]models.HistoryBucket, error) {
	if groupBy == "" {
		groupBy = models.ByMonth
	}
	bucketOf, label, err := a.bucketing(groupBy)
	if err != nil {
		return nil, err
	}

	records, err := a.rangeQuery(ctx, accountID, start, end, models.Deposit, models.Withdrawal, models.Transfer)
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time]*models.HistoryBucket)
	for _, r := range records {
		key := bucketOf(r.CreatedAt)
		b, ok := buckets[key]
		if !ok {
			b = &models.HistoryBucket{
				Bucket:        key,
				Label:         label(key),
				TotalIncome:   decimal.Zero,
				TotalExpenses: decimal.Zero,
			}
			buckets[key] = b
		}
		switch r.Type {
		case models.Deposit:
			b.TotalIncome = b.TotalIncome.Add(r.Amount)
		case models.Withdrawal:
			b.TotalExpenses = b.TotalExpenses.Add(r.Amount)
		}
	}

	result := make([]models.HistoryBucket, 0, len(buckets))
	for _, b := range buckets {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Bucket.Before(result[j].Bucket)
	})
	return result, nil
}

func (a *AggregationService) bucketing(groupBy models.GroupBy) (func(time.Time) time.Time, func(time.Time) string, error) {
	switch groupBy {
	case models.ByDay:
		return func(t time.Time) time.Time { return startOfDay(t, a.loc) },
			func(t time.Time) string { return t.Format("2006-01-02") }, nil
	case models.ByWeek:
		return func(t time.Time) time.Time { return startOfWeek(t, a.loc) },
			func(t time.Time) string {
				year, week := t.ISOWeek()
				return fmt.Sprintf("%d-W%02d", year, week)
			}, nil
	case models.ByMonth:
		return func(t time.Time) time.Time { return startOfMonth(t, a.loc) },
			func(t time.Time) string { return t.Format("2006-01") }, nil
	}
	return nil, nil, apperrors.Wrap(apperrors.CodeInvalidGroupBy,
		fmt.Sprintf("groupBy must be one of day, week, month, got %q", groupBy), nil)
}

// rangeQuery loads completed records of the given types within [start, end].
func (a *AggregationService) rangeQuery(ctx context.Context, accountID string, start, end time.Time, types ...models.TransactionType) ([]*models.Transaction, error) {
	if _, err := a.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return nil, apperrors.NewValidationError("end", "end date is before start date")
	}
	return a.log.completed(ctx, accountID, start, end, types...)
}
