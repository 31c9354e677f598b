package api

import (
	"net/http"

	apperrors "github.com/abkawan/personal-banking/internal/errors"
	"github.com/abkawan/personal-banking/internal/models"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// account creation
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if err := h.decode(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	account, err := h.deps.Accounts.OpenAccount(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, models.NewAccountResponse(account))
}

// handles account retrieval
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.deps.Accounts.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

func (h *Handler) UpdateAccountStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateStatusRequest
	if err := h.decode(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	account, err := h.deps.Accounts.SetStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

// ListOwnerAccounts lists an owner's accounts; ?active=true restricts it to active ones.
func (h *Handler) ListOwnerAccounts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	accounts, err := h.deps.Accounts.ListAccounts(r.Context(), mux.Vars(r)["ownerId"], activeOnly)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	response := make([]models.AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		response = append(response, models.NewAccountResponse(account))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *Handler) UpdateTransferLimits(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTransferLimitsRequest
	if err := h.decode(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	limits, err := h.deps.Limits.UpdateTransferLimits(r.Context(), mux.Vars(r)["ownerId"], req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, limits)
}

func (h *Handler) GetTransferLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := h.deps.Limits.GetTransferLimits(r.Context(), mux.Vars(r)["ownerId"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, limits)
}

// CheckTransferLimits reports the headroom left for ?amount in every window.
func (h *Handler) CheckTransferLimits(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		h.respondServiceError(w, r, apperrors.NewValidationError("amount", "amount must be a decimal number"))
		return
	}

	headroom, err := h.deps.Limits.CheckWithinLimits(r.Context(), mux.Vars(r)["ownerId"], amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, headroom)
}
