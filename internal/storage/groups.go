package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dailyfocus/internal/core"
)

const groupColumns = `id, name, description, owner_id, created_at, updated_at`

func scanGroup(row interface{ Scan(...any) error }) (core.Group, error) {
	var g core.Group
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.OwnerID, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

// CreateGroup stores the group and registers the owner as its first
// member.
func (r *Repository) CreateGroup(ctx context.Context, g core.Group) (core.Group, error) {
	now := time.Now().UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Group{}, fmt.Errorf("begin create group: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO groups (name, description, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		g.Name, g.Description, g.OwnerID, now, now)
	if err != nil {
		return core.Group{}, fmt.Errorf("insert group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Group{}, fmt.Errorf("group id: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`, id, g.OwnerID); err != nil {
		return core.Group{}, fmt.Errorf("insert owner membership: %w", err)
	}
	for _, member := range g.Members {
		if member == g.OwnerID {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`, id, member); err != nil {
			return core.Group{}, fmt.Errorf("insert membership: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return core.Group{}, fmt.Errorf("commit create group: %w", err)
	}

	created, _, err := r.GroupByID(ctx, id)
	return created, err
}

func (r *Repository) GroupByID(ctx context.Context, id int64) (core.Group, bool, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return core.Group{}, false, nil
	}
	if err != nil {
		return core.Group{}, false, fmt.Errorf("query group: %w", err)
	}
	g.Members, err = r.groupMembers(ctx, id)
	if err != nil {
		return core.Group{}, false, err
	}
	return g, true, nil
}

func (r *Repository) GroupsByUser(ctx context.Context, userID int64) ([]core.Group, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+groupColumns+` FROM groups
		 WHERE id IN (SELECT group_id FROM group_members WHERE user_id = ?)
		 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query groups by user: %w", err)
	}
	return r.collectGroups(ctx, rows)
}

func (r *Repository) ListGroups(ctx context.Context) ([]core.Group, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	return r.collectGroups(ctx, rows)
}

func (r *Repository) collectGroups(ctx context.Context, rows *sql.Rows) ([]core.Group, error) {
	var out []core.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for i := range out {
		members, err := r.groupMembers(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Members = members
	}
	return out, nil
}

func (r *Repository) groupMembers(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY user_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	members := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func (r *Repository) UpdateGroup(ctx context.Context, g core.Group) (core.Group, bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE groups SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		g.Name, g.Description, time.Now().UTC(), g.ID)
	if err != nil {
		return core.Group{}, false, fmt.Errorf("update group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.Group{}, false, fmt.Errorf("update group rows affected: %w", err)
	}
	if affected == 0 {
		return core.Group{}, false, nil
	}
	return r.GroupByID(ctx, g.ID)
}

// DeleteGroup removes the group along with its memberships and its
// tasks.
func (r *Repository) DeleteGroup(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete group: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete group members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE group_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete group tasks: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete group rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete group: %w", err)
	}
	return affected > 0, nil
}

func (r *Repository) AddGroupMember(ctx context.Context, groupID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`, groupID, userID)
	if err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

func (r *Repository) RemoveGroupMember(ctx context.Context, groupID, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("remove group member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove group member rows affected: %w", err)
	}
	return affected > 0, nil
}
