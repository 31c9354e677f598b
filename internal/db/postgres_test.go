package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"testing"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	plain := stderrors.New("plain")

	tests := []struct {
		name string
		err  error
		want apperrors.Code
	}{
		{"serialization failure", &pq.Error{Code: "40001"}, apperrors.CodeConcurrencyConflict},
		{"deadlock", fmt.Errorf("lock: %w", &pq.Error{Code: "40P01"}), apperrors.CodeConcurrencyConflict},
		{"lock not available", &pq.Error{Code: "55P03"}, apperrors.CodeConcurrencyConflict},
		{"negative balance", &pq.Error{Code: "23514", Constraint: "accounts_balance_check"}, apperrors.CodeInsufficientFunds},
		{"other check", &pq.Error{Code: "23514", Constraint: "transfer_limits_check"}, apperrors.CodeValidation},
		{"reused reference", &pq.Error{Code: "23505", Constraint: "idx_transactions_reference"}, apperrors.CodeConcurrencyConflict},
		{"duplicate number", &pq.Error{Code: "23505", Constraint: "accounts_account_number_key"}, apperrors.CodeValidation},
		{"statement timeout", &pq.Error{Code: "57014"}, apperrors.CodeUnavailable},
		{"connection failure", &pq.Error{Code: "08006"}, apperrors.CodeUnavailable},
		{"deadline", fmt.Errorf("commit: %w", context.DeadlineExceeded), apperrors.CodeUnavailable},
		{"bad conn", driver.ErrBadConn, apperrors.CodeUnavailable},
		{"conn done", sql.ErrConnDone, apperrors.CodeUnavailable},
		{"unrelated pq error", &pq.Error{Code: "42P01"}, ""},
		{"plain", plain, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperrors.CodeOf(classify(tt.err)))
		})
	}

	assert.Nil(t, classify(nil))
	assert.Same(t, plain, classify(plain))

	coded := apperrors.NotFound("account", "a")
	assert.Same(t, coded, classify(coded))
}
