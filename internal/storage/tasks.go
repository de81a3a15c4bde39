package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dailyfocus/internal/core"
)

const taskColumns = `id, user_id, group_id, title, description, priority, due_date, status, assigned_to, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (core.Task, error) {
	var t core.Task
	var assigned string
	err := row.Scan(&t.ID, &t.UserID, &t.GroupID, &t.Title, &t.Description,
		&t.Priority, &t.DueDate, &t.Status, &assigned, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return core.Task{}, err
	}
	if err := json.Unmarshal([]byte(assigned), &t.AssignedTo); err != nil {
		return core.Task{}, fmt.Errorf("decode assigned_to: %w", err)
	}
	return t, nil
}

func encodeAssigned(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode assigned_to: %w", err)
	}
	return string(b), nil
}

func (r *Repository) CreateTask(ctx context.Context, t core.Task) (core.Task, error) {
	assigned, err := encodeAssigned(t.AssignedTo)
	if err != nil {
		return core.Task{}, err
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (user_id, group_id, title, description, priority, due_date, status, assigned_to, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.GroupID, t.Title, t.Description, t.Priority, t.DueDate, t.Status, assigned, now, now)
	if err != nil {
		return core.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Task{}, fmt.Errorf("task id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return t, nil
}

func (r *Repository) TaskByID(ctx context.Context, id int64) (core.Task, bool, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return core.Task{}, false, nil
	}
	if err != nil {
		return core.Task{}, false, fmt.Errorf("query task: %w", err)
	}
	return t, true, nil
}

// TasksByUser returns the user's own tasks plus tasks of groups they
// belong to.
func (r *Repository) TasksByUser(ctx context.Context, userID int64) ([]core.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = ?
		    OR group_id IN (SELECT group_id FROM group_members WHERE user_id = ?)
		 ORDER BY id`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query tasks by user: %w", err)
	}
	return collectTasks(rows)
}

func (r *Repository) TasksByGroup(ctx context.Context, groupID int64) ([]core.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE group_id = ? ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query tasks by group: %w", err)
	}
	return collectTasks(rows)
}

func (r *Repository) ListTasks(ctx context.Context) ([]core.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]core.Task, error) {
	defer rows.Close()
	var out []core.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateTask(ctx context.Context, t core.Task) (core.Task, bool, error) {
	assigned, err := encodeAssigned(t.AssignedTo)
	if err != nil {
		return core.Task{}, false, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET group_id = ?, title = ?, description = ?, priority = ?,
		        due_date = ?, status = ?, assigned_to = ?, updated_at = ?
		 WHERE id = ?`,
		t.GroupID, t.Title, t.Description, t.Priority, t.DueDate, t.Status,
		assigned, time.Now().UTC(), t.ID)
	if err != nil {
		return core.Task{}, false, fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.Task{}, false, fmt.Errorf("update task rows affected: %w", err)
	}
	if affected == 0 {
		return core.Task{}, false, nil
	}
	return r.TaskByID(ctx, t.ID)
}

func (r *Repository) DeleteTask(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete task rows affected: %w", err)
	}
	return affected > 0, nil
}
