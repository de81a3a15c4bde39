package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"dailyfocus/internal/core"
)

const transactionColumns = `id, user_id, type, description, amount_cents, category, date, notes, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var t core.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.Description, &t.Amount.Cents,
		&t.Category, &t.Date, &t.Notes, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateTransaction stores a transaction and returns it with the
// assigned id.
func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, description, amount_cents, category, date, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, string(t.Type), t.Description, t.Amount.Cents, string(t.Category),
		t.Date, t.Notes, now, now)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now

	slog.InfoContext(ctx, "Transaction stored",
		"id", id,
		"user_id", t.UserID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"category", t.Category)
	return t, nil
}

// TransactionByID returns the transaction, reporting absence via ok.
func (r *Repository) TransactionByID(ctx context.Context, id int64) (core.Transaction, bool, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return core.Transaction{}, false, nil
	}
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("query transaction: %w", err)
	}
	return t, true, nil
}

// TransactionsByUser lists the user's transactions, newest last.
func (r *Repository) TransactionsByUser(ctx context.Context, userID int64) ([]core.Transaction, error) {
	return r.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY id`, userID)
}

// ListTransactions returns every stored transaction.
func (r *Repository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return r.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY id`)
}

func (r *Repository) listTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTransaction replaces the mutable fields of a transaction.
func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, bool, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET type = ?, description = ?, amount_cents = ?, category = ?, date = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		string(t.Type), t.Description, t.Amount.Cents, string(t.Category),
		t.Date, t.Notes, now, t.ID)
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("update transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("update rows affected: %w", err)
	}
	if affected == 0 {
		return core.Transaction{}, false, nil
	}
	return r.TransactionByID(ctx, t.ID)
}

// DeleteTransaction removes a transaction and, in the same SQL
// transaction, the allocation record tied to it. Dangling allocation
// records are not allowed: a transaction delete cascades explicitly.
func (r *Repository) DeleteTransaction(ctx context.Context, id int64) (core.Transaction, bool, error) {
	existing, ok, err := r.TransactionByID(ctx, id)
	if err != nil || !ok {
		return core.Transaction{}, ok, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM allocations WHERE record_id IN
		   (SELECT id FROM allocation_records WHERE user_id = ? AND transaction_id = ?)`,
		existing.UserID, id); err != nil {
		return core.Transaction{}, false, fmt.Errorf("delete linked allocations: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM allocation_records WHERE user_id = ? AND transaction_id = ?`,
		existing.UserID, id); err != nil {
		return core.Transaction{}, false, fmt.Errorf("delete linked allocation record: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return core.Transaction{}, false, fmt.Errorf("delete transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Transaction{}, false, fmt.Errorf("commit delete transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id, "user_id", existing.UserID)
	return existing, true, nil
}

// PendingExportTransactions returns transactions not yet appended to the
// external backup sheet.
func (r *Repository) PendingExportTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	return r.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE exported = 0 ORDER BY id LIMIT ?`, limit)
}

// MarkExported flags a transaction as successfully exported.
func (r *Repository) MarkExported(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET exported = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction exported: %w", err)
	}
	return nil
}
