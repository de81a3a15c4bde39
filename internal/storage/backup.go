package storage

import (
	"context"
	"fmt"
	"time"

	"dailyfocus/internal/core"
)

const backupVersion = "4.0.0"

// Backup is a full snapshot of the store in export format.
type Backup struct {
	Version    string     `json:"version"`
	ExportDate time.Time  `json:"exportDate"`
	Data       BackupData `json:"data"`
}

type BackupData struct {
	Users        []core.User             `json:"users"`
	Tasks        []core.Task             `json:"tasks"`
	Transactions []core.Transaction      `json:"transactions"`
	Groups       []core.Group            `json:"groups"`
	Budgets      []core.AllocationRecord `json:"budgets"`
}

// ExportAll snapshots every table into a Backup. Reads are not inside
// one transaction; the caller serializes writes around exports.
func (r *Repository) ExportAll(ctx context.Context) (Backup, error) {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return Backup{}, err
	}
	tasks, err := r.ListTasks(ctx)
	if err != nil {
		return Backup{}, err
	}
	transactions, err := r.ListTransactions(ctx)
	if err != nil {
		return Backup{}, err
	}
	groups, err := r.ListGroups(ctx)
	if err != nil {
		return Backup{}, err
	}
	budgets, err := r.ListAllocationRecords(ctx)
	if err != nil {
		return Backup{}, err
	}
	return Backup{
		Version:    backupVersion,
		ExportDate: time.Now().UTC(),
		Data: BackupData{
			Users:        users,
			Tasks:        tasks,
			Transactions: transactions,
			Groups:       groups,
			Budgets:      budgets,
		},
	}, nil
}

// RestoreAll wipes the store and loads the backup, preserving the
// original ids. Everything happens in one transaction.
func (r *Repository) RestoreAll(ctx context.Context, b Backup) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"allocations", "allocation_records", "spend_events",
		"transactions", "group_members", "tasks", "groups", "users",
	} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, u := range b.Data.Users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, name, email, password, avatar, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.Name, u.Email, u.Password, u.Avatar, u.CreatedAt, u.UpdatedAt); err != nil {
			return fmt.Errorf("restore user: %w", err)
		}
	}
	for _, g := range b.Data.Groups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO groups (id, name, description, owner_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			g.ID, g.Name, g.Description, g.OwnerID, g.CreatedAt, g.UpdatedAt); err != nil {
			return fmt.Errorf("restore group: %w", err)
		}
		for _, member := range g.Members {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`,
				g.ID, member); err != nil {
				return fmt.Errorf("restore membership: %w", err)
			}
		}
	}
	for _, t := range b.Data.Tasks {
		assigned, err := encodeAssigned(t.AssignedTo)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, user_id, group_id, title, description, priority, due_date, status, assigned_to, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.UserID, t.GroupID, t.Title, t.Description, t.Priority,
			t.DueDate, t.Status, assigned, t.CreatedAt, t.UpdatedAt); err != nil {
			return fmt.Errorf("restore task: %w", err)
		}
	}
	for _, txn := range b.Data.Transactions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (id, user_id, type, description, amount_cents, category, date, notes, exported, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			txn.ID, txn.UserID, txn.Type, txn.Description, txn.Amount.Cents,
			txn.Category, txn.Date, txn.Notes, txn.CreatedAt, txn.UpdatedAt); err != nil {
			return fmt.Errorf("restore transaction: %w", err)
		}
	}
	for _, rec := range b.Data.Budgets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO allocation_records (id, user_id, transaction_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.ID, rec.UserID, rec.TransactionID, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("restore allocation record: %w", err)
		}
		for _, a := range rec.Allocations {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO allocations (record_id, category, planned_cents, spent_cents)
				 VALUES (?, ?, ?, ?)`,
				rec.ID, a.Category, a.Planned.Cents, a.Spent.Cents); err != nil {
				return fmt.Errorf("restore allocation: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}
	return nil
}
