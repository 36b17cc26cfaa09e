package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const taskColumns = `id, user_id, title, description, status, priority, due_date, assigned_by, completed_at, created_at, updated_at`

func scanTask(row rowScanner) (Task, error) {
	var task Task
	var dueDate, completedAt sql.NullTime
	var assignedBy sql.NullString
	if err := row.Scan(&task.ID, &task.UserID, &task.Title, &task.Description, &task.Status, &task.Priority, &dueDate, &assignedBy, &completedAt, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return Task{}, err
	}
	task.DueDate = nullableTime(dueDate)
	task.AssignedBy = nullableString(assignedBy)
	task.CompletedAt = nullableTime(completedAt)
	return task, nil
}

func collectTasks(rows *sql.Rows) ([]Task, error) {
	defer rows.Close()
	items := make([]Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, userID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

// TasksTouchedOn returns tasks completed, updated or due on the given day.
func (s *PostgresStore) TasksTouchedOn(ctx context.Context, userID string, day time.Time) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id=$1
			AND (completed_at::date = $2::date OR updated_at::date = $2::date OR due_date = $2::date)
		ORDER BY status, priority DESC, created_at
	`, userID, day)
	if err != nil {
		return nil, fmt.Errorf("tasks touched on day: %w", err)
	}
	return collectTasks(rows)
}

func (s *PostgresStore) CreateTask(ctx context.Context, task Task) (Task, error) {
	created, err := scanTask(s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, status, priority, due_date, assigned_by, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CASE WHEN $5::text = 'done' THEN NOW() END)
		RETURNING `+taskColumns,
		task.ID, task.UserID, task.Title, task.Description, task.Status, task.Priority, task.DueDate, task.AssignedBy))
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return created, nil
}

// UpdateTask applies a partial update. completed_at is stamped when the
// resulting status is done (keeping an earlier stamp) and cleared otherwise.
func (s *PostgresStore) UpdateTask(ctx context.Context, id, userID string, patch TaskPatch) (Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx, `
		UPDATE tasks SET
			title = COALESCE($3::text, title),
			description = COALESCE($4::text, description),
			status = COALESCE($5::text, status),
			priority = COALESCE($6::text, priority),
			due_date = CASE WHEN $7::boolean THEN NULL ELSE COALESCE($8::date, due_date) END,
			completed_at = CASE
				WHEN COALESCE($5::text, status) = 'done' THEN COALESCE(completed_at, NOW())
				ELSE NULL
			END,
			updated_at = NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING `+taskColumns,
		id, userID, patch.Title, patch.Description, patch.Status, patch.Priority, patch.ClearDueDate, patch.DueDate))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
