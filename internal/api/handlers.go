package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Dependencies are the services the HTTP adapter exposes.
type Dependencies struct {
	Accounts     *service.AccountService
	Limits       *service.LimitPolicy
	Transactions *service.TransactionService
	Insights     *service.AggregationService
	// Statements is optional; without it the statement route answers 503.
	Statements *service.StatementService

	// Ping reports whether the authoritative store is reachable.
	Ping func(ctx context.Context) error
	// PublisherState reports the event publisher's breaker state.
	PublisherState func() string

	// Location is the calendar used to read YYYY-MM-DD dates.
	Location *time.Location
	Logger   *zap.Logger
}

// Handler is for handling api requests
type Handler struct {
	deps     Dependencies
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(deps Dependencies) *Handler {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		deps:     deps,
		validate: validate,
		logger:   deps.Logger.Named("api"),
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error string         `json:"error"`
	Code  apperrors.Code `json:"code,omitempty"`
	Field string         `json:"field,omitempty"`
}

// for error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeInvalidAmount, apperrors.CodeInvalidTransfer, apperrors.CodeValidation, apperrors.CodeInvalidGroupBy:
		return http.StatusBadRequest
	case apperrors.CodeConcurrencyConflict:
		return http.StatusConflict
	case apperrors.CodeInsufficientFunds, apperrors.CodeLimitExceeded:
		return http.StatusUnprocessableEntity
	case apperrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondServiceError maps a ledger error onto its HTTP status. Errors without
// a ledger code are reported as 500 without details.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		h.logger.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := statusFor(appErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	respondJSON(w, status, errorResponse{Error: appErr.Message, Code: appErr.Code, Field: appErr.Field})
}

// decode reads and validates a JSON body into dst.
func (h *Handler) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewValidationError("body", "invalid request payload")
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return apperrors.NewValidationError(fe.Field(), "failed on the '"+fe.Tag()+"' rule")
		}
		return apperrors.NewValidationError("body", err.Error())
	}
	return nil
}

// handles health check
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	status := http.StatusOK

	if h.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			body["status"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	if h.deps.PublisherState != nil {
		body["publisher"] = h.deps.PublisherState()
	}

	respondJSON(w, status, body)
}

// sets up the API routes
func SetupRoutes(r *mux.Router, deps Dependencies) {
	h := NewHandler(deps)

	// Health check (check if API is working)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// Account routes
	r.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	r.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	r.HandleFunc("/accounts/{id}/status", h.UpdateAccountStatus).Methods("PATCH")
	r.HandleFunc("/owners/{ownerId}/accounts", h.ListOwnerAccounts).Methods("GET")

	// Transfer limit routes
	r.HandleFunc("/owners/{ownerId}/transfer-limits", h.UpdateTransferLimits).Methods("PUT")
	r.HandleFunc("/owners/{ownerId}/transfer-limits", h.GetTransferLimits).Methods("GET")
	r.HandleFunc("/owners/{ownerId}/transfer-limits/check", h.CheckTransferLimits).Methods("GET")

	// Transaction routes
	r.HandleFunc("/accounts/{id}/deposits", h.Deposit).Methods("POST")
	r.HandleFunc("/accounts/{id}/withdrawals", h.Withdraw).Methods("POST")
	r.HandleFunc("/transfers", h.Transfer).Methods("POST")
	r.HandleFunc("/transactions/{id}", h.GetTransaction).Methods("GET")
	r.HandleFunc("/accounts/{id}/transactions", h.GetTransactions).Methods("GET")
	r.HandleFunc("/accounts/{id}/statement", h.GetStatement).Methods("GET")

	// Insight routes
	insights := r.PathPrefix("/accounts/{id}/insights").Subrouter()
	insights.HandleFunc("/income-expenses", h.IncomeAndExpenses).Methods("GET")
	insights.HandleFunc("/spending-by-category", h.SpendingByCategory).Methods("GET")
	insights.HandleFunc("/top-expenses", h.TopExpenses).Methods("GET")
	insights.HandleFunc("/history", h.TransactionHistory).Methods("GET")
}
