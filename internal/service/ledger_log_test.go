package service

import (
	"testing"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestValidateRecord(t *testing.T) {
	valid := func() *models.Transaction {
		return &models.Transaction{
			AccountID: "a", FromAccountID: "a", ToAccountID: "b",
			Type: models.Transfer, Status: models.Completed, Category: models.Other, Amount: dec("1"),
		}
	}

	assert.NoError(t, validateRecord(valid()))

	tests := []struct {
		name   string
		mutate func(*models.Transaction)
		code   apperrors.Code
	}{
		{"zero amount", func(r *models.Transaction) { r.Amount = dec("0") }, apperrors.CodeInvalidAmount},
		{"same endpoints", func(r *models.Transaction) { r.ToAccountID = "a" }, apperrors.CodeInvalidTransfer},
		{"transfer without destination", func(r *models.Transaction) { r.ToAccountID = "" }, apperrors.CodeValidation},
		{"deposit with counterparty", func(r *models.Transaction) { r.Type = models.Deposit }, apperrors.CodeValidation},
		{"unknown type", func(r *models.Transaction) { r.Type = "refund" }, apperrors.CodeValidation},
		{"unknown status", func(r *models.Transaction) { r.Status = "settled" }, apperrors.CodeValidation},
		{"unknown category", func(r *models.Transaction) { r.Category = "travel" }, apperrors.CodeValidation},
		{"missing account", func(r *models.Transaction) { r.AccountID = "" }, apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			assert.Equal(t, tt.code, apperrors.CodeOf(validateRecord(r)))
		})
	}
}
