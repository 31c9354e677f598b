package api

import (
	"context"
	"net/http"

	"github.com/abkawan/personal-banking/internal/models"
	"github.com/gorilla/mux"
)

type movementFunc func(ctx context.Context, req *models.MovementRequest) (*models.Transaction, error)

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.deps.Transactions.Deposit)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.deps.Transactions.Withdraw)
}

func (h *Handler) movement(w http.ResponseWriter, r *http.Request, apply movementFunc) {
	var req models.MovementRequest
	if err := h.decode(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	req.AccountID = mux.Vars(r)["id"]

	tx, err := apply(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, tx)
}

// handles transfers between two accounts
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req models.TransferRequest
	if err := h.decode(r, &req); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	tx, err := h.deps.Transactions.Transfer(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, tx)
}

// GetTransaction handles transaction retrieval
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.deps.Transactions.GetTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, tx)
}

// GetTransactions handles transaction list retrieval
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	txs, err := h.deps.Transactions.GetTransactionsByAccountID(r.Context(), mux.Vars(r)["id"], limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if txs == nil {
		txs = []*models.Transaction{}
	}
	respondJSON(w, http.StatusOK, txs)
}

// GetStatement pages through the statement projection.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	if h.deps.Statements == nil {
		respondError(w, http.StatusServiceUnavailable, "statements are not available")
		return
	}
	limit, offset := pagination(r)

	txs, err := h.deps.Statements.GetStatement(r.Context(), mux.Vars(r)["id"], limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if txs == nil {
		txs = []*models.Transaction{}
	}
	respondJSON(w, http.StatusOK, txs)
}
