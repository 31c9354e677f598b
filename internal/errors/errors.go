package errors

import (
	"errors"
	"fmt"
)

// Code is the stable identifier of a ledger error.
type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeInvalidAmount       Code = "INVALID_AMOUNT"
	CodeInvalidTransfer     Code = "INVALID_TRANSFER"
	CodeInsufficientFunds   Code = "INSUFFICIENT_FUNDS"
	CodeLimitExceeded       Code = "LIMIT_EXCEEDED"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeUnavailable         Code = "UNAVAILABLE"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeInvalidGroupBy      Code = "INVALID_GROUP_BY"
)

// Error is the operational error returned by the ledger core.
type Error struct {
	Code    Code
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field '%s')", msg, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "resource not found"}
	ErrInvalidAmount       = &Error{Code: CodeInvalidAmount, Message: "amount must be greater than zero"}
	ErrInvalidTransfer     = &Error{Code: CodeInvalidTransfer, Message: "source and destination accounts cannot be the same"}
	ErrInsufficientFunds   = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrLimitExceeded       = &Error{Code: CodeLimitExceeded, Message: "transfer limit exceeded"}
	ErrConcurrencyConflict = &Error{Code: CodeConcurrencyConflict, Message: "concurrent update conflict"}
	ErrUnavailable         = &Error{Code: CodeUnavailable, Message: "backing store unavailable"}
	ErrValidation          = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrInvalidGroupBy      = &Error{Code: CodeInvalidGroupBy, Message: "groupBy must be one of day, week, month"}
)

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func NotFound(entity, id string) error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func NewValidationError(field, message string) error {
	return &Error{Code: CodeValidation, Message: message, Field: field}
}

func LimitExceeded(window string, message string) error {
	return &Error{Code: CodeLimitExceeded, Message: message, Field: window}
}

func Conflict(cause error) error {
	return &Error{Code: CodeConcurrencyConflict, Message: "concurrent update conflict", Cause: cause}
}

func Unavailable(cause error) error {
	return &Error{Code: CodeUnavailable, Message: "backing store unavailable", Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

func IsLimitExceeded(err error) bool {
	return errors.Is(err, ErrLimitExceeded)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsRetryable reports whether the unit of work may be replayed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsBusinessRejection reports rule violations that leave a failed record in the log.
func IsBusinessRejection(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrLimitExceeded)
}
