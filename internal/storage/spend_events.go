package storage

import (
	"context"
	"fmt"
	"time"

	"dailyfocus/internal/core"
)

// SpendEvent is a durable copy of a published spend message. Pending
// rows are reapplied by the worker on startup so a crash between
// publish and apply loses nothing.
type SpendEvent struct {
	ID          int64
	UserID      int64
	Category    core.Category
	AmountCents int64
	Status      string
	CreatedAt   time.Time
}

const (
	SpendEventPending = "pending"
	SpendEventApplied = "applied"
	SpendEventError   = "error"
)

func (r *Repository) InsertSpendEvent(ctx context.Context, userID int64, category core.Category, amountCents int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO spend_events (user_id, category, amount_cents, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, category, amountCents, SpendEventPending, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert spend event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("spend event id: %w", err)
	}
	return id, nil
}

func (r *Repository) PendingSpendEvents(ctx context.Context, limit int) ([]SpendEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, category, amount_cents, status, created_at
		 FROM spend_events WHERE status = ? ORDER BY id LIMIT ?`,
		SpendEventPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending spend events: %w", err)
	}
	defer rows.Close()

	var out []SpendEvent
	for rows.Next() {
		var ev SpendEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Category, &ev.AmountCents, &ev.Status, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan spend event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *Repository) MarkSpendEventApplied(ctx context.Context, id int64) error {
	return r.setSpendEventStatus(ctx, id, SpendEventApplied)
}

func (r *Repository) MarkSpendEventError(ctx context.Context, id int64) error {
	return r.setSpendEventStatus(ctx, id, SpendEventError)
}

func (r *Repository) setSpendEventStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE spend_events SET status = ?, applied_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark spend event %s: %w", status, err)
	}
	return nil
}
