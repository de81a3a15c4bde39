package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"dailyfocus/internal/core"
)

// allocationRequest is the wire shape for budget allocations. Planned
// amounts are decimal strings; spent is engine-managed and ignored on
// input.
type allocationRequest struct {
	UserID        int64 `json:"userId"`
	TransactionID int64 `json:"transactionId"`
	Allocations   []struct {
		Category string `json:"category"`
		Planned  string `json:"planned"`
	} `json:"allocations"`
}

func (req allocationRequest) toAllocations() ([]core.CategoryAllocation, error) {
	out := make([]core.CategoryAllocation, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		planned, err := core.ParseDecimalToCents(a.Planned)
		if err != nil {
			return nil, fmt.Errorf("allocation %s: %w", a.Category, err)
		}
		out = append(out, core.CategoryAllocation{
			Category: core.Category(strings.TrimSpace(a.Category)),
			Planned:  core.Money{Cents: planned},
		})
	}
	return out, nil
}

func summaryCacheKey(userID int64) string {
	return fmt.Sprintf("summary:%d", userID)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	var (
		records []core.AllocationRecord
		err     error
	)
	if userID, ok := queryID(r, "userId"); ok {
		records, err = s.repo.AllocationRecordsByUser(r.Context(), userID)
	} else {
		records, err = s.repo.ListAllocationRecords(r.Context())
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "List budgets failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []core.AllocationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetBudgetByTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID, err := pathID(r, "transactionId")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	record, ok, err := s.repo.AllocationRecordByTransactionID(r.Context(), transactionID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Get budget by transaction failed",
			"transaction_id", transactionID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "budget not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleBudgetSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	key := summaryCacheKey(userID)
	if cached, ok := s.summaryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, map[string]any{"categories": cached})
		return
	}

	summary, err := s.budgets.GetSummary(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Budget summary failed", "user_id", userID, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if summary == nil {
		summary = []core.CategorySummary{}
	}
	s.summaryCache.Set(key, summary)

	writeJSON(w, http.StatusOK, map[string]any{"categories": summary})
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := readJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID < 1 || req.TransactionID < 1 {
		errorJSON(w, http.StatusUnprocessableEntity, "userId and transactionId are required")
		return
	}
	allocations, err := req.toAllocations()
	if err != nil {
		errorJSON(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	record, err := s.budgets.CreateAllocation(r.Context(), req.UserID, req.TransactionID, allocations)
	if err != nil {
		budgetError(w, err)
		return
	}
	s.summaryCache.Delete(summaryCacheKey(req.UserID))
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	var req allocationRequest
	if err := readJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	allocations, err := req.toAllocations()
	if err != nil {
		errorJSON(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	record, err := s.budgets.UpdateAllocation(r.Context(), id, allocations)
	if err != nil {
		budgetError(w, err)
		return
	}
	s.summaryCache.Delete(summaryCacheKey(record.UserID))
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	record, ok, err := s.repo.AllocationRecordByID(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Lookup budget failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "budget not found")
		return
	}

	if err := s.budgets.DeleteAllocation(r.Context(), id); err != nil {
		budgetError(w, err)
		return
	}
	s.summaryCache.Delete(summaryCacheKey(record.UserID))
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
