package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const folderColumns = `id, user_id, name, parent_id, level, sort_order, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner) (Folder, error) {
	var folder Folder
	var parentID sql.NullString
	if err := row.Scan(&folder.ID, &folder.UserID, &folder.Name, &parentID, &folder.Level, &folder.SortOrder, &folder.CreatedAt, &folder.UpdatedAt); err != nil {
		return Folder{}, err
	}
	folder.ParentID = nullableString(parentID)
	return folder, nil
}

func (s *PostgresStore) ListFolders(ctx context.Context, userID string) ([]Folder, error) {
	return listFolders(ctx, s.db, userID, false)
}

func listFolders(ctx context.Context, q queryer, userID string, lock bool) ([]Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE user_id=$1 ORDER BY sort_order, name`
	if lock {
		query += ` FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	items := make([]Folder, 0)
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		items = append(items, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetFolder(ctx context.Context, id, userID string) (Folder, error) {
	folder, err := scanFolder(s.db.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id=$1 AND user_id=$2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Folder{}, ErrNotFound
	}
	if err != nil {
		return Folder{}, fmt.Errorf("get folder: %w", err)
	}
	return folder, nil
}

// CreateFolder inserts a folder one level below its parent (or at level 1)
// and appends it after its existing siblings.
func (s *PostgresStore) CreateFolder(ctx context.Context, folder Folder) (Folder, error) {
	var created Folder
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		level := 1
		if folder.ParentID != nil {
			var parentLevel int
			err := tx.QueryRowContext(ctx, `SELECT level FROM folders WHERE id=$1 AND user_id=$2`, *folder.ParentID, folder.UserID).Scan(&parentLevel)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("lookup parent folder: %w", err)
			}
			level = parentLevel + 1
		}
		if level > MaxFolderDepth {
			return ErrDepthExceeded
		}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO folders (id, user_id, name, parent_id, level, sort_order)
			VALUES ($1, $2, $3, $4, $5, (
				SELECT COALESCE(MAX(sort_order), 0) + 1
				FROM folders
				WHERE user_id=$2 AND parent_id IS NOT DISTINCT FROM $4
			))
			RETURNING `+folderColumns,
			folder.ID, folder.UserID, folder.Name, folder.ParentID, level)
		inserted, err := scanFolder(row)
		if err != nil {
			return fmt.Errorf("insert folder: %w", err)
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Folder{}, err
	}
	return created, nil
}

func (s *PostgresStore) RenameFolder(ctx context.Context, id, userID, name string) (Folder, error) {
	folder, err := scanFolder(s.db.QueryRowContext(ctx, `
		UPDATE folders SET name=$3, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
		RETURNING `+folderColumns, id, userID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Folder{}, ErrNotFound
	}
	if err != nil {
		return Folder{}, fmt.Errorf("rename folder: %w", err)
	}
	return folder, nil
}

// MoveFolder re-parents a folder and rewrites the level of the whole moved
// subtree in the same transaction.
func (s *PostgresStore) MoveFolder(ctx context.Context, id, userID string, newParentID *string) (Folder, error) {
	var moved Folder
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		folders, err := listFolders(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		levels, err := newFolderTree(folders).planMove(id, newParentID)
		if err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE folders SET parent_id=$3, level=$4, updated_at=NOW()
			WHERE id=$1 AND user_id=$2
			RETURNING `+folderColumns, id, userID, newParentID, levels[id])
		if moved, err = scanFolder(row); err != nil {
			return fmt.Errorf("move folder: %w", err)
		}

		for descendantID, level := range levels {
			if descendantID == id {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE folders SET level=$3, updated_at=NOW()
				WHERE id=$1 AND user_id=$2 AND level <> $3
			`, descendantID, userID, level); err != nil {
				return fmt.Errorf("relevel folder %s: %w", descendantID, err)
			}
		}
		return nil
	})
	if err != nil {
		return Folder{}, err
	}
	return moved, nil
}

// DeleteFolder removes a folder and all of its descendants, children first.
// Files inside any removed folder are moved to the root, never deleted.
func (s *PostgresStore) DeleteFolder(ctx context.Context, id, userID string) ([]string, error) {
	var deleted []string
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		folders, err := listFolders(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		tree := newFolderTree(folders)
		if _, ok := tree.byID[id]; !ok {
			return ErrNotFound
		}

		order := tree.deleteOrder(id)
		for _, folderID := range order {
			if _, err := tx.ExecContext(ctx, `UPDATE knowledge_files SET folder_id=NULL WHERE folder_id=$1`, folderID); err != nil {
				return fmt.Errorf("detach files from folder %s: %w", folderID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id=$1 AND user_id=$2`, folderID, userID); err != nil {
				return fmt.Errorf("delete folder %s: %w", folderID, err)
			}
		}
		deleted = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nullableTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	v := value.Time
	return &v
}
