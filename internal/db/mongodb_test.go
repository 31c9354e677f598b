package db

import (
	"testing"
	"time"

	"github.com/abkawan/personal-banking/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementEntryIndexesBothSidesOfTransfer(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	tx := &models.Transaction{
		ID:            "tx-1",
		AccountID:     "A",
		FromAccountID: "A",
		ToAccountID:   "B",
		Type:          models.Transfer,
		Status:        models.Completed,
		Category:      models.Bills,
		Amount:        decimal.RequireFromString("125.50"),
		BalanceAfter:  decimal.RequireFromString("874.50"),
		Reference:     "rent-march",
		CreatedAt:     created,
	}

	entry, err := toStatementEntry(tx, created.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, entry.AccountIDs)
	assert.Equal(t, "125.5", entry.Amount.String())

	back, err := entry.toTransaction()
	require.NoError(t, err)
	assert.True(t, back.Amount.Equal(tx.Amount))
	assert.True(t, back.BalanceAfter.Equal(tx.BalanceAfter))
	assert.Equal(t, tx.ToAccountID, back.ToAccountID)
	assert.Equal(t, models.Bills, back.Category)
	assert.Equal(t, "rent-march", back.Reference)
}

func TestStatementEntryForMovement(t *testing.T) {
	tx := &models.Transaction{
		ID:           "tx-2",
		AccountID:    "A",
		Type:         models.Deposit,
		Status:       models.Completed,
		Category:     models.Other,
		Amount:       decimal.NewFromInt(40),
		BalanceAfter: decimal.NewFromInt(40),
	}

	entry, err := toStatementEntry(tx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, entry.AccountIDs)
	assert.Empty(t, entry.ToAccountID)
}

func TestDecimal128Conversion(t *testing.T) {
	for _, s := range []string{"0", "0.01", "9999999.99", "123456789012345.67"} {
		d := decimal.RequireFromString(s)
		v, err := toDecimal128(d)
		require.NoError(t, err)

		back, err := fromDecimal128(v)
		require.NoError(t, err)
		assert.Truef(t, back.Equal(d), "%s came back as %s", s, back)
	}
}
