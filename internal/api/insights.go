package api

import (
	"net/http"

	"github.com/abkawan/personal-banking/internal/models"
	"github.com/gorilla/mux"
)

func (h *Handler) IncomeAndExpenses(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.dateRange(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	result, err := h.deps.Insights.IncomeAndExpenses(r.Context(), mux.Vars(r)["id"], start, end)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) SpendingByCategory(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.dateRange(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	result, err := h.deps.Insights.SpendingByCategory(r.Context(), mux.Vars(r)["id"], start, end)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if result == nil {
		result = []models.CategorySpending{}
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) TopExpenses(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Insights.TopExpenses(r.Context(), mux.Vars(r)["id"], queryInt(r, "limit"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if result == nil {
		result = []*models.Transaction{}
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) TransactionHistory(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.dateRange(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	groupBy := models.GroupBy(r.URL.Query().Get("groupBy"))

	result, err := h.deps.Insights.TransactionHistory(r.Context(), mux.Vars(r)["id"], start, end, groupBy)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if result == nil {
		result = []models.HistoryBucket{}
	}
	respondJSON(w, http.StatusOK, result)
}
