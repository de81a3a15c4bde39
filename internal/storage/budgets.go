package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"dailyfocus/internal/core"
)

// AllocationRecordsByUser returns every allocation record the user owns,
// allocations in insertion order.
func (r *Repository) AllocationRecordsByUser(ctx context.Context, userID int64) ([]core.AllocationRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, transaction_id, created_at, updated_at
		 FROM allocation_records WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query allocation records: %w", err)
	}
	defer rows.Close()

	var records []core.AllocationRecord
	for rows.Next() {
		var rec core.AllocationRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.TransactionID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan allocation record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocation records: %w", err)
	}

	for i := range records {
		allocs, err := r.allocationsForRecord(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Allocations = allocs
	}
	return records, nil
}

// ListAllocationRecords returns every allocation record in the store.
// Used by backup export.
func (r *Repository) ListAllocationRecords(ctx context.Context) ([]core.AllocationRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, transaction_id, created_at, updated_at
		 FROM allocation_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query allocation records: %w", err)
	}
	defer rows.Close()

	var records []core.AllocationRecord
	for rows.Next() {
		var rec core.AllocationRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.TransactionID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan allocation record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocation records: %w", err)
	}
	for i := range records {
		allocs, err := r.allocationsForRecord(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Allocations = allocs
	}
	return records, nil
}

// AllocationRecordByID returns the record, reporting absence via ok.
func (r *Repository) AllocationRecordByID(ctx context.Context, id int64) (core.AllocationRecord, bool, error) {
	return r.allocationRecordWhere(ctx,
		`SELECT id, user_id, transaction_id, created_at, updated_at
		 FROM allocation_records WHERE id = ?`, id)
}

// AllocationRecordByTransaction returns the record tied to the
// transaction, reporting absence via ok.
func (r *Repository) AllocationRecordByTransaction(ctx context.Context, userID, transactionID int64) (core.AllocationRecord, bool, error) {
	return r.allocationRecordWhere(ctx,
		`SELECT id, user_id, transaction_id, created_at, updated_at
		 FROM allocation_records WHERE user_id = ? AND transaction_id = ?`, userID, transactionID)
}

// AllocationRecordByTransactionID looks up by transaction alone,
// regardless of owner.
func (r *Repository) AllocationRecordByTransactionID(ctx context.Context, transactionID int64) (core.AllocationRecord, bool, error) {
	return r.allocationRecordWhere(ctx,
		`SELECT id, user_id, transaction_id, created_at, updated_at
		 FROM allocation_records WHERE transaction_id = ?`, transactionID)
}

func (r *Repository) allocationRecordWhere(ctx context.Context, query string, args ...any) (core.AllocationRecord, bool, error) {
	var rec core.AllocationRecord
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&rec.ID, &rec.UserID, &rec.TransactionID, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return core.AllocationRecord{}, false, nil
	}
	if err != nil {
		return core.AllocationRecord{}, false, fmt.Errorf("query allocation record: %w", err)
	}
	allocs, err := r.allocationsForRecord(ctx, rec.ID)
	if err != nil {
		return core.AllocationRecord{}, false, err
	}
	rec.Allocations = allocs
	return rec, true, nil
}

func (r *Repository) allocationsForRecord(ctx context.Context, recordID int64) ([]core.CategoryAllocation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, planned_cents, spent_cents
		 FROM allocations WHERE record_id = ? ORDER BY id`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query allocations: %w", err)
	}
	defer rows.Close()

	var allocs []core.CategoryAllocation
	for rows.Next() {
		var a core.CategoryAllocation
		if err := rows.Scan(&a.Category, &a.Planned.Cents, &a.Spent.Cents); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// InsertAllocationRecord stores a new record with its allocation rows in
// one transaction and returns it with the assigned id.
func (r *Repository) InsertAllocationRecord(ctx context.Context, rec core.AllocationRecord) (core.AllocationRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.AllocationRecord{}, fmt.Errorf("begin insert allocation record: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO allocation_records (user_id, transaction_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		rec.UserID, rec.TransactionID, now, now)
	if err != nil {
		return core.AllocationRecord{}, fmt.Errorf("insert allocation record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.AllocationRecord{}, fmt.Errorf("allocation record id: %w", err)
	}

	for _, a := range rec.Allocations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO allocations (record_id, category, planned_cents, spent_cents)
			 VALUES (?, ?, ?, ?)`,
			id, string(a.Category), a.Planned.Cents, a.Spent.Cents); err != nil {
			return core.AllocationRecord{}, fmt.Errorf("insert allocation row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.AllocationRecord{}, fmt.Errorf("commit allocation record: %w", err)
	}

	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	slog.InfoContext(ctx, "Allocation record stored",
		"record_id", id,
		"user_id", rec.UserID,
		"transaction_id", rec.TransactionID)
	return rec, nil
}

// ReplaceAllocationRecord swaps the record's allocation rows wholesale.
// The single-transaction write means a failed replace applies nothing.
func (r *Repository) ReplaceAllocationRecord(ctx context.Context, id int64, allocations []core.CategoryAllocation) (core.AllocationRecord, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.AllocationRecord{}, false, fmt.Errorf("begin replace allocation record: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE allocation_records SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return core.AllocationRecord{}, false, fmt.Errorf("touch allocation record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.AllocationRecord{}, false, fmt.Errorf("replace rows affected: %w", err)
	}
	if affected == 0 {
		return core.AllocationRecord{}, false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM allocations WHERE record_id = ?`, id); err != nil {
		return core.AllocationRecord{}, false, fmt.Errorf("clear allocations: %w", err)
	}
	for _, a := range allocations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO allocations (record_id, category, planned_cents, spent_cents)
			 VALUES (?, ?, ?, ?)`,
			id, string(a.Category), a.Planned.Cents, a.Spent.Cents); err != nil {
			return core.AllocationRecord{}, false, fmt.Errorf("insert allocation row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.AllocationRecord{}, false, fmt.Errorf("commit replace: %w", err)
	}

	rec, ok, err := r.AllocationRecordByID(ctx, id)
	if err != nil || !ok {
		return rec, ok, err
	}
	slog.InfoContext(ctx, "Allocation record replaced", "record_id", id, "categories", len(allocations))
	return rec, true, nil
}

// DeleteAllocationRecord removes the record; its allocation rows go with
// it via the foreign-key cascade.
func (r *Repository) DeleteAllocationRecord(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM allocation_records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete allocation record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rows affected: %w", err)
	}
	return affected > 0, nil
}

// AddSpend increments spent for the category across every allocation row
// the user owns, in a single UPDATE. This is the one operation that must
// not be read-modify-write: the in-database arithmetic makes concurrent
// spends commute instead of clobbering each other.
func (r *Repository) AddSpend(ctx context.Context, userID int64, category core.Category, amountCents int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin add spend: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE allocations SET spent_cents = spent_cents + ?
		 WHERE category = ?
		   AND record_id IN (SELECT id FROM allocation_records WHERE user_id = ?)`,
		amountCents, string(category), userID)
	if err != nil {
		return 0, fmt.Errorf("add spend: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("add spend rows affected: %w", err)
	}

	if affected > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE allocation_records SET updated_at = ?
			 WHERE user_id = ?
			   AND id IN (SELECT record_id FROM allocations WHERE category = ?)`,
			time.Now().UTC(), userID, string(category)); err != nil {
			return 0, fmt.Errorf("touch records after spend: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit add spend: %w", err)
	}
	return affected, nil
}
