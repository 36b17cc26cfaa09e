package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userSelect = `
	SELECT u.id, u.external_id, u.email, u.display_name, u.avatar_url, u.position, u.phone, u.role, u.user_type,
		u.department_id, COALESCE(d.name, ''), u.superior_id, u.created_at, u.updated_at
	FROM users u
	LEFT JOIN departments d ON d.id = u.department_id`

func scanUser(row rowScanner) (User, error) {
	var user User
	var departmentID, superiorID sql.NullString
	if err := row.Scan(&user.ID, &user.ExternalID, &user.Email, &user.DisplayName, &user.AvatarURL, &user.Position, &user.Phone,
		&user.Role, &user.UserType, &departmentID, &user.DepartmentName, &superiorID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.DepartmentID = nullableString(departmentID)
	user.SuperiorID = nullableString(superiorID)
	return user, nil
}

// UpsertUserByExternalID creates the account on first login. On later logins
// only the email is refreshed; role is set from the candidate only on creation.
func (s *PostgresStore) UpsertUserByExternalID(ctx context.Context, candidate User) (User, error) {
	role := candidate.Role
	if role == "" {
		role = "user"
	}
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, external_id, email, display_name, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (external_id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = CASE WHEN users.display_name = '' THEN EXCLUDED.display_name ELSE users.display_name END,
			updated_at = NOW()
		RETURNING id
	`, candidate.ID, candidate.ExternalID, candidate.Email, candidate.DisplayName, role).Scan(&id)
	if err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetUser(ctx, id)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE u.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, userSelect+` ORDER BY u.display_name, u.id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, id string, patch UserPatch) (User, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			display_name = COALESCE($2::text, display_name),
			position = COALESCE($3::text, position),
			phone = COALESCE($4::text, phone),
			avatar_url = COALESCE($5::text, avatar_url),
			role = COALESCE($6::text, role),
			user_type = COALESCE($7::text, user_type),
			department_id = CASE WHEN $8::boolean THEN NULL ELSE COALESCE($9::text, department_id) END,
			superior_id = CASE WHEN $10::boolean THEN NULL ELSE COALESCE($11::text, superior_id) END,
			updated_at = NOW()
		WHERE id=$1
	`, id, patch.DisplayName, patch.Position, patch.Phone, patch.AvatarURL, patch.Role, patch.UserType,
		patch.ClearDepartment, patch.DepartmentID, patch.ClearSuperior, patch.SuperiorID)
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	affected, err := rowsAffected(result)
	if err != nil {
		return User{}, err
	}
	if affected == 0 {
		return User{}, ErrNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *PostgresStore) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, parent_id, sort_order, created_at, updated_at
		FROM departments
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	items := make([]Department, 0)
	for rows.Next() {
		department, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		items = append(items, department)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate departments: %w", err)
	}
	return items, nil
}

func scanDepartment(row rowScanner) (Department, error) {
	var department Department
	var parentID sql.NullString
	if err := row.Scan(&department.ID, &department.Name, &parentID, &department.SortOrder, &department.CreatedAt, &department.UpdatedAt); err != nil {
		return Department{}, err
	}
	department.ParentID = nullableString(parentID)
	return department, nil
}

func (s *PostgresStore) CreateDepartment(ctx context.Context, department Department) (Department, error) {
	var created Department
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if department.ParentID != nil {
			if err := departmentExists(ctx, tx, *department.ParentID); err != nil {
				return err
			}
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO departments (id, name, parent_id, sort_order)
			VALUES ($1, $2, $3, $4)
			RETURNING id, name, parent_id, sort_order, created_at, updated_at
		`, department.ID, department.Name, department.ParentID, department.SortOrder)
		var err error
		if created, err = scanDepartment(row); err != nil {
			return fmt.Errorf("insert department: %w", err)
		}
		return nil
	})
	if err != nil {
		return Department{}, err
	}
	return created, nil
}

// UpdateDepartment renames or re-parents a department. A parent that is the
// department itself or one of its descendants is rejected.
func (s *PostgresStore) UpdateDepartment(ctx context.Context, id string, name *string, parentID *string, clearParent bool, sortOrder *int) (Department, error) {
	var updated Department
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if parentID != nil && !clearParent {
			if err := departmentExists(ctx, tx, *parentID); err != nil {
				return err
			}
			var cycle bool
			err := tx.QueryRowContext(ctx, `
				WITH RECURSIVE ancestors AS (
					SELECT id, parent_id FROM departments WHERE id=$1
					UNION
					SELECT d.id, d.parent_id FROM departments d JOIN ancestors a ON d.id = a.parent_id
				)
				SELECT EXISTS(SELECT 1 FROM ancestors WHERE id=$2)
			`, *parentID, id).Scan(&cycle)
			if err != nil {
				return fmt.Errorf("check department cycle: %w", err)
			}
			if cycle {
				return ErrInvalidParent
			}
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE departments SET
				name = COALESCE($2::text, name),
				parent_id = CASE WHEN $3::boolean THEN NULL ELSE COALESCE($4::text, parent_id) END,
				sort_order = COALESCE($5::int, sort_order),
				updated_at = NOW()
			WHERE id=$1
			RETURNING id, name, parent_id, sort_order, created_at, updated_at
		`, id, name, clearParent, parentID, sortOrder)
		department, err := scanDepartment(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("update department: %w", err)
		}
		updated = department
		return nil
	})
	if err != nil {
		return Department{}, err
	}
	return updated, nil
}

// DeleteDepartment refuses while child departments exist and detaches members.
func (s *PostgresStore) DeleteDepartment(ctx context.Context, id string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var children int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM departments WHERE parent_id=$1`, id).Scan(&children); err != nil {
			return fmt.Errorf("count child departments: %w", err)
		}
		if children > 0 {
			return ErrHasChildren
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET department_id=NULL, updated_at=NOW() WHERE department_id=$1`, id); err != nil {
			return fmt.Errorf("detach department members: %w", err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM departments WHERE id=$1`, id)
		if err != nil {
			return fmt.Errorf("delete department: %w", err)
		}
		affected, err := rowsAffected(result)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func departmentExists(ctx context.Context, q queryer, id string) error {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM departments WHERE id=$1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check department: %w", err)
	}
	if !exists {
		return ErrInvalidParent
	}
	return nil
}

func (s *PostgresStore) InsertActivity(ctx context.Context, entry ActivityLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (user_id, action, target_type, target_id, detail)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.UserID, entry.Action, entry.TargetType, entry.TargetID, entry.Detail)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

// ListActivity returns the user's activity for one calendar day, newest first.
func (s *PostgresStore) ListActivity(ctx context.Context, userID string, day time.Time, limit int) ([]ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, target_type, target_id, detail, created_at
		FROM activity_logs
		WHERE user_id=$1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, userID, start, start.AddDate(0, 0, 1), limit)
	if err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	defer rows.Close()

	items := make([]ActivityLog, 0)
	for rows.Next() {
		var item ActivityLog
		if err := rows.Scan(&item.ID, &item.UserID, &item.Action, &item.TargetType, &item.TargetID, &item.Detail, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity logs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) RevokeSession(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_sessions (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsSessionRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_sessions WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked session: %w", err)
	}
	return revoked, nil
}
