package service

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(month time.Month, day, hour int) time.Time {
	return time.Date(2024, month, day, hour, 0, 0, 0, time.UTC)
}

// seedHistory builds a ledger with a known set of movements on one account.
func seedHistory(t *testing.T) (*testLedger, *models.Account) {
	t.Helper()
	l := newTestLedger(t, nil)
	ctx := context.Background()

	l.clock.Set(at(time.February, 28, 9))
	a := l.open(t, "owner-1", "0", "10000")
	b := l.open(t, "owner-2", "0", "10000")

	steps := []struct {
		when     time.Time
		kind     models.TransactionType
		amount   string
		category models.Category
	}{
		{at(time.March, 1, 9), models.Deposit, "1000", ""},
		{at(time.March, 4, 12), models.Withdrawal, "120.50", models.Food},
		{at(time.March, 4, 18), models.Withdrawal, "60", models.Entertainment},
		{at(time.March, 10, 10), models.Withdrawal, "200", models.Bills},
		{at(time.March, 11, 10), models.Withdrawal, "40", models.Food},
		{at(time.April, 2, 10), models.Deposit, "500", ""},
		{at(time.April, 3, 10), models.Withdrawal, "200", models.Shopping},
		{at(time.April, 3, 11), models.Withdrawal, "10", models.Other},
	}
	for _, s := range steps {
		l.clock.Set(s.when)
		if s.kind == models.Deposit {
			l.deposit(t, a.ID, s.amount, s.category)
		} else {
			l.withdraw(t, a.ID, s.amount, s.category)
		}
	}

	// Only completed deposits and withdrawals of this account add to totals.
	l.clock.Set(at(time.March, 5, 10))
	_, err := l.transactions.Transfer(ctx, &models.TransferRequest{FromAccountID: a.ID, ToAccountID: b.ID, Amount: dec("100"), Category: models.Bills})
	require.NoError(t, err)

	l.clock.Set(at(time.March, 6, 10))
	_, err = l.transactions.Withdraw(ctx, &models.MovementRequest{AccountID: a.ID, Amount: dec("5000"), Category: models.Shopping})
	require.True(t, apperrors.IsInsufficientFunds(err))

	l.deposit(t, b.ID, "999", "")
	l.withdraw(t, b.ID, "999", models.Food)

	return l, a
}

func TestIncomeAndExpenses(t *testing.T) {
	l, a := seedHistory(t)
	ctx := context.Background()

	march, err := l.aggregations.IncomeAndExpenses(ctx, a.ID, at(time.March, 1, 0), time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	requireDecimal(t, "1000", march.Income)
	requireDecimal(t, "420.50", march.Expenses)

	all, err := l.aggregations.IncomeAndExpenses(ctx, a.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	requireDecimal(t, "1500", all.Income)
	requireDecimal(t, "630.50", all.Expenses)

	// Both ends are inclusive.
	inclusive, err := l.aggregations.IncomeAndExpenses(ctx, a.ID, at(time.March, 4, 12), at(time.March, 10, 10))
	require.NoError(t, err)
	requireDecimal(t, "0", inclusive.Income)
	requireDecimal(t, "380.50", inclusive.Expenses)

	empty, err := l.aggregations.IncomeAndExpenses(ctx, a.ID, at(time.May, 1, 0), at(time.May, 31, 0))
	require.NoError(t, err)
	requireDecimal(t, "0", empty.Income)
	requireDecimal(t, "0", empty.Expenses)
}

func TestSpendingByCategory(t *testing.T) {
	l, a := seedHistory(t)

	spending, err := l.aggregations.SpendingByCategory(context.Background(), a.ID, at(time.March, 1, 0), at(time.March, 31, 23))
	require.NoError(t, err)
	require.Len(t, spending, 3)

	assert.Equal(t, models.Bills, spending[0].Category)
	requireDecimal(t, "200", spending[0].TotalSpent)
	assert.Equal(t, models.Food, spending[1].Category)
	requireDecimal(t, "160.50", spending[1].TotalSpent)
	assert.Equal(t, models.Entertainment, spending[2].Category)
	requireDecimal(t, "60", spending[2].TotalSpent)
}

func TestTopExpenses(t *testing.T) {
	l, a := seedHistory(t)
	ctx := context.Background()

	top, err := l.aggregations.TopExpenses(ctx, a.ID, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	// Equal amounts: the newer one first.
	assert.Equal(t, models.Shopping, top[0].Category)
	assert.Equal(t, models.Bills, top[1].Category)
	requireDecimal(t, "120.50", top[2].Amount)

	defaults, err := l.aggregations.TopExpenses(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, defaults, DefaultTopExpenses)
	for i := 1; i < len(defaults); i++ {
		assert.False(t, defaults[i].Amount.GreaterThan(defaults[i-1].Amount), "not descending at %d", i)
	}
	for _, tx := range defaults {
		assert.Equal(t, models.Withdrawal, tx.Type)
		assert.Equal(t, models.Completed, tx.Status)
		assert.Equal(t, a.ID, tx.AccountID)
	}
	requireDecimal(t, "40", defaults[4].Amount)
}

func TestTransactionHistoryByMonth(t *testing.T) {
	l, a := seedHistory(t)

	history, err := l.aggregations.TransactionHistory(context.Background(), a.ID, at(time.January, 1, 0), at(time.December, 31, 0), "")
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, "2024-03", history[0].Label)
	assert.True(t, history[0].Bucket.Equal(at(time.March, 1, 0)))
	requireDecimal(t, "1000", history[0].TotalIncome)
	requireDecimal(t, "420.50", history[0].TotalExpenses)

	assert.Equal(t, "2024-04", history[1].Label)
	requireDecimal(t, "500", history[1].TotalIncome)
	requireDecimal(t, "210", history[1].TotalExpenses)
}

func TestTransactionHistoryByWeek(t *testing.T) {
	l, a := seedHistory(t)

	history, err := l.aggregations.TransactionHistory(context.Background(), a.ID, at(time.March, 1, 0), at(time.March, 31, 0), models.ByWeek)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, "2024-W09", history[0].Label)
	assert.True(t, history[0].Bucket.Equal(at(time.February, 26, 0)))
	requireDecimal(t, "1000", history[0].TotalIncome)

	// Monday through Sunday fall into one bucket.
	assert.Equal(t, "2024-W10", history[1].Label)
	requireDecimal(t, "380.50", history[1].TotalExpenses)

	assert.Equal(t, "2024-W11", history[2].Label)
	requireDecimal(t, "40", history[2].TotalExpenses)
}

func TestTransactionHistoryByDay(t *testing.T) {
	l, a := seedHistory(t)

	history, err := l.aggregations.TransactionHistory(context.Background(), a.ID, at(time.March, 4, 0), time.Date(2024, 3, 4, 23, 59, 59, 0, time.UTC), models.ByDay)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2024-03-04", history[0].Label)
	requireDecimal(t, "0", history[0].TotalIncome)
	requireDecimal(t, "180.50", history[0].TotalExpenses)
}

func TestTransactionHistoryKeepsTransferOnlyPeriods(t *testing.T) {
	l, a := seedHistory(t)

	history, err := l.aggregations.TransactionHistory(context.Background(), a.ID, at(time.March, 5, 0), time.Date(2024, 3, 5, 23, 59, 59, 0, time.UTC), models.ByDay)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2024-03-05", history[0].Label)
	requireDecimal(t, "0", history[0].TotalIncome)
	requireDecimal(t, "0", history[0].TotalExpenses)
}

func TestTransactionHistoryUsesConfiguredCalendar(t *testing.T) {
	l := newTestLedger(t, nil)
	a := l.open(t, "owner-1", "100", "10000")

	// 23:30 UTC on March 31st is already April in UTC+2.
	l.clock.Set(time.Date(2024, 3, 31, 23, 30, 0, 0, time.UTC))
	l.withdraw(t, a.ID, "10", models.Food)

	plus2 := NewAggregationService(l.store, time.FixedZone("UTC+2", 2*60*60))
	history, err := plus2.TransactionHistory(context.Background(), a.ID, time.Time{}, time.Time{}, models.ByMonth)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2024-04", history[0].Label)

	utc, err := l.aggregations.TransactionHistory(context.Background(), a.ID, time.Time{}, time.Time{}, models.ByMonth)
	require.NoError(t, err)
	require.Len(t, utc, 1)
	assert.Equal(t, "2024-03", utc[0].Label)
}

func TestAggregationErrors(t *testing.T) {
	l, a := seedHistory(t)
	ctx := context.Background()

	_, err := l.aggregations.TransactionHistory(ctx, "missing", time.Time{}, time.Time{}, "year")
	assert.Equal(t, apperrors.CodeInvalidGroupBy, apperrors.CodeOf(err))

	_, err = l.aggregations.TransactionHistory(ctx, "missing", time.Time{}, time.Time{}, models.ByDay)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = l.aggregations.IncomeAndExpenses(ctx, "missing", time.Time{}, time.Time{})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = l.aggregations.SpendingByCategory(ctx, "missing", time.Time{}, time.Time{})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = l.aggregations.TopExpenses(ctx, "missing", 5)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = l.aggregations.IncomeAndExpenses(ctx, a.ID, at(time.April, 1, 0), at(time.March, 1, 0))
	assert.True(t, apperrors.IsValidationError(err))
}
