package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"dailyfocus/internal/core"
)

const userColumns = `id, name, email, password, avatar, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Avatar, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser stores a user. Email uniqueness is checked here rather than
// left to the constraint so the caller gets a clean duplicate signal.
func (r *Repository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password, avatar, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.Password, u.Avatar, now, now)
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	slog.InfoContext(ctx, "User stored", "id", id, "email", u.Email)
	return u, nil
}

func (r *Repository) UserByID(ctx context.Context, id int64) (core.User, bool, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return core.User{}, false, nil
	}
	if err != nil {
		return core.User{}, false, fmt.Errorf("query user: %w", err)
	}
	return u, true, nil
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (core.User, bool, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err == sql.ErrNoRows {
		return core.User{}, false, nil
	}
	if err != nil {
		return core.User{}, false, fmt.Errorf("query user by email: %w", err)
	}
	return u, true, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateUser(ctx context.Context, u core.User) (core.User, bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, password = ?, avatar = ?, updated_at = ? WHERE id = ?`,
		u.Name, u.Email, u.Password, u.Avatar, time.Now().UTC(), u.ID)
	if err != nil {
		return core.User{}, false, fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.User{}, false, fmt.Errorf("update user rows affected: %w", err)
	}
	if affected == 0 {
		return core.User{}, false, nil
	}
	return r.UserByID(ctx, u.ID)
}

// DeleteUser removes the user and everything they own: tasks,
// transactions, allocation records, owned groups, and their memberships
// in other groups. One SQL transaction so a failed delete applies
// nothing.
func (r *Repository) DeleteUser(ctx context.Context, id int64) (core.User, bool, error) {
	existing, ok, err := r.UserByID(ctx, id)
	if err != nil || !ok {
		return core.User{}, ok, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.User{}, false, fmt.Errorf("begin delete user: %w", err)
	}
	defer tx.Rollback()

	statements := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM allocations WHERE record_id IN (SELECT id FROM allocation_records WHERE user_id = ?)`, []any{id}},
		{`DELETE FROM allocation_records WHERE user_id = ?`, []any{id}},
		{`DELETE FROM spend_events WHERE user_id = ?`, []any{id}},
		{`DELETE FROM transactions WHERE user_id = ?`, []any{id}},
		{`DELETE FROM tasks WHERE user_id = ?`, []any{id}},
		{`DELETE FROM group_members WHERE user_id = ?`, []any{id}},
		{`DELETE FROM group_members WHERE group_id IN (SELECT id FROM groups WHERE owner_id = ?)`, []any{id}},
		{`DELETE FROM tasks WHERE group_id IN (SELECT id FROM groups WHERE owner_id = ?)`, []any{id}},
		{`DELETE FROM groups WHERE owner_id = ?`, []any{id}},
		{`DELETE FROM users WHERE id = ?`, []any{id}},
	}
	for _, st := range statements {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return core.User{}, false, fmt.Errorf("cascade delete user: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.User{}, false, fmt.Errorf("commit delete user: %w", err)
	}

	slog.InfoContext(ctx, "User deleted with cascade", "id", id, "email", existing.Email)
	return existing, true, nil
}
