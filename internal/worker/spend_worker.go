// Package worker applies spend events against allocations and exports
// transactions to the configured backup sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dailyfocus/internal/amqp"
	"dailyfocus/internal/budget"
	"dailyfocus/internal/core"
	"dailyfocus/internal/sheets"
	"dailyfocus/internal/storage"
)

// SpendWorker consumes spend events and applies them to the owner's
// allocations through the budget engine. It also drives the backup
// export of transactions.
type SpendWorker struct {
	storage   *storage.Repository
	budgets   *budget.Service
	exporter  sheets.TransactionAppender
	batchSize int
}

func NewSpendWorker(repo *storage.Repository, budgets *budget.Service, exporter sheets.TransactionAppender, batchSize int) *SpendWorker {
	return &SpendWorker{
		storage:   repo,
		budgets:   budgets,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleSpendEvent processes a single spend event message from AMQP.
// An event that matches no allocation is final: it is marked applied
// and never requeued.
func (w *SpendWorker) HandleSpendEvent(ctx context.Context, msg *amqp.SpendEventMessage) error {
	slog.InfoContext(ctx, "Processing spend event",
		"event_id", msg.EventID,
		"user_id", msg.UserID,
		"category", msg.Category,
		"amount_cents", msg.AmountCents)

	err := w.budgets.RecordSpend(ctx, msg.UserID, msg.Category, core.Money{Cents: msg.AmountCents})
	switch {
	case err == nil:
	case errors.Is(err, budget.ErrNoMatchingCategory):
		slog.WarnContext(ctx, "Spend event matched no allocation",
			"event_id", msg.EventID,
			"user_id", msg.UserID,
			"category", msg.Category)
	case errors.Is(err, budget.ErrValidation):
		slog.ErrorContext(ctx, "Dropping invalid spend event",
			"event_id", msg.EventID, "error", err)
		if markErr := w.storage.MarkSpendEventError(ctx, msg.EventID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark spend event error",
				"event_id", msg.EventID, "error", markErr)
		}
		return nil
	default:
		return fmt.Errorf("record spend: %w", err)
	}

	if err := w.storage.MarkSpendEventApplied(ctx, msg.EventID); err != nil {
		return fmt.Errorf("mark spend event applied: %w", err)
	}
	return nil
}

// ProcessPendingEvents applies spend events still marked pending.
// Backup mechanism in case AMQP messages are lost.
func (w *SpendWorker) ProcessPendingEvents(ctx context.Context) error {
	pending, err := w.storage.PendingSpendEvents(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending spend events: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending spend events", "count", len(pending))

	for _, ev := range pending {
		msg := &amqp.SpendEventMessage{
			EventID:     ev.ID,
			UserID:      ev.UserID,
			Category:    ev.Category,
			AmountCents: ev.AmountCents,
			Timestamp:   ev.CreatedAt,
		}
		if err := w.HandleSpendEvent(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to apply pending spend event",
				"event_id", ev.ID, "error", err)
		}
	}
	return nil
}

// StartupCheck recovers spend events left pending by a crash between
// publish and apply. Uses a larger batch than the poll loop.
func (w *SpendWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.PendingSpendEvents(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending spend events for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending spend events found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending spend events on startup, processing...",
		"count", len(pending))

	applied := 0
	failed := 0
	for _, ev := range pending {
		msg := &amqp.SpendEventMessage{
			EventID:     ev.ID,
			UserID:      ev.UserID,
			Category:    ev.Category,
			AmountCents: ev.AmountCents,
			Timestamp:   ev.CreatedAt,
		}
		if err := w.HandleSpendEvent(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to apply spend event during startup",
				"event_id", ev.ID, "error", err)
			failed++
			continue
		}
		applied++
	}

	slog.InfoContext(ctx, "Startup spend check completed",
		"total", len(pending),
		"applied", applied,
		"errors", failed)
	return nil
}

// ProcessPendingExports appends not-yet-exported transactions to the
// backup sheet and flags them exported.
func (w *SpendWorker) ProcessPendingExports(ctx context.Context) error {
	if w.exporter == nil {
		return nil
	}

	pending, err := w.storage.PendingExportTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending export transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Exporting transactions", "count", len(pending))

	for _, txn := range pending {
		ref, err := w.exporter.Append(ctx, txn)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction",
				"id", txn.ID, "error", err)
			continue
		}
		if err := w.storage.MarkExported(ctx, txn.ID); err != nil {
			slog.WarnContext(ctx, "Failed to mark transaction exported",
				"id", txn.ID, "error", err)
			continue
		}
		slog.InfoContext(ctx, "Exported transaction",
			"id", txn.ID,
			"sheet_ref", ref)
	}
	return nil
}
