package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"dailyfocus/internal/amqp"
	"dailyfocus/internal/budget"
	"dailyfocus/internal/core"
)

// transactionRequest is the wire shape for creating and updating
// transactions. Amount is a decimal string ("12.34" or "12,34").
type transactionRequest struct {
	UserID      int64  `json:"userId"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Notes       string `json:"notes"`
}

func (req transactionRequest) toTransaction() (core.Transaction, error) {
	amount, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{
		UserID:      req.UserID,
		Type:        core.TransactionType(strings.TrimSpace(req.Type)),
		Description: strings.TrimSpace(req.Description),
		Amount:      core.Money{Cents: amount},
		Category:    core.Category(strings.TrimSpace(req.Category)),
		Date:        strings.TrimSpace(req.Date),
		Notes:       req.Notes,
	}
	return t, t.Validate()
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var (
		txns []core.Transaction
		err  error
	)
	if userID, ok := queryID(r, "userId"); ok {
		txns, err = s.repo.TransactionsByUser(r.Context(), userID)
	} else {
		txns, err = s.repo.ListTransactions(r.Context())
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "List transactions failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if txns == nil {
		txns = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	txn, ok, err := s.repo.TransactionByID(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Get transaction failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := readJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.toTransaction()
	if err != nil {
		errorJSON(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if _, ok, err := s.repo.UserByID(r.Context(), in.UserID); err != nil {
		slog.ErrorContext(r.Context(), "Check transaction owner failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	} else if !ok {
		errorJSON(w, http.StatusUnprocessableEntity, "unknown user")
		return
	}

	txn, err := s.repo.CreateTransaction(r.Context(), in)
	if err != nil {
		slog.ErrorContext(r.Context(), "Create transaction failed", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	if txn.Type == core.Expense && txn.Amount.Positive() {
		s.recordExpenseSpend(r, txn)
		s.summaryCache.Delete(summaryCacheKey(txn.UserID))
	}

	writeJSON(w, http.StatusCreated, txn)
}

// recordExpenseSpend routes an expense into spend aggregation. With a
// publisher configured the event goes through the queue with a durable
// pending row; otherwise it is applied inline. Either way a failure
// never fails the transaction creation.
func (s *Server) recordExpenseSpend(r *http.Request, txn core.Transaction) {
	ctx := r.Context()

	if s.publisher != nil {
		eventID, err := s.repo.InsertSpendEvent(ctx, txn.UserID, txn.Category, txn.Amount.Cents)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to store spend event", "error", err)
			return
		}
		msg := amqp.NewSpendEventMessage(eventID, txn.UserID, txn.Category, txn.Amount.Cents)
		if err := s.publisher.PublishSpendEvent(ctx, msg); err != nil {
			// The pending row survives; worker recovery will apply it.
			slog.ErrorContext(ctx, "Failed to publish spend event",
				"event_id", eventID, "error", err)
		}
		return
	}

	err := s.budgets.RecordSpend(ctx, txn.UserID, txn.Category, txn.Amount)
	switch {
	case err == nil:
	case errors.Is(err, budget.ErrNoMatchingCategory):
		slog.InfoContext(ctx, "Expense matched no budget allocation",
			"user_id", txn.UserID, "category", txn.Category)
	default:
		slog.ErrorContext(ctx, "Failed to record spend inline",
			"user_id", txn.UserID, "error", err)
	}
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	var req transactionRequest
	if err := readJSON(r, &req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.toTransaction()
	if err != nil {
		errorJSON(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	in.ID = id

	txn, ok, err := s.repo.UpdateTransaction(r.Context(), in)
	if err != nil {
		slog.ErrorContext(r.Context(), "Update transaction failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	txn, ok, err := s.repo.DeleteTransaction(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Delete transaction failed", "id", id, "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		errorJSON(w, http.StatusNotFound, "transaction not found")
		return
	}
	// Linked allocation records were removed with it.
	s.summaryCache.Delete(summaryCacheKey(txn.UserID))
	writeJSON(w, http.StatusOK, txn)
}
