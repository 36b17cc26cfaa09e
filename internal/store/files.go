package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const fileColumns = `id, user_id, folder_id, file_name, file_type, file_size, content, storage_key, uploaded_at`

func scanFile(row rowScanner) (KnowledgeFile, error) {
	var file KnowledgeFile
	var folderID sql.NullString
	if err := row.Scan(&file.ID, &file.UserID, &folderID, &file.FileName, &file.FileType, &file.FileSize, &file.Content, &file.StorageKey, &file.UploadedAt); err != nil {
		return KnowledgeFile{}, err
	}
	file.FolderID = nullableString(folderID)
	return file, nil
}

func collectFiles(rows *sql.Rows) ([]KnowledgeFile, error) {
	defer rows.Close()
	items := make([]KnowledgeFile, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan knowledge file: %w", err)
		}
		items = append(items, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge files: %w", err)
	}
	return items, nil
}

// ListFiles returns the user's files, newest first. A non-nil folderID
// restricts the result to that folder.
func (s *PostgresStore) ListFiles(ctx context.Context, userID string, folderID *string) ([]KnowledgeFile, error) {
	query := `SELECT ` + fileColumns + ` FROM knowledge_files WHERE user_id=$1`
	args := []any{userID}
	if folderID != nil {
		query += ` AND folder_id=$2`
		args = append(args, *folderID)
	}
	query += ` ORDER BY uploaded_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list knowledge files: %w", err)
	}
	return collectFiles(rows)
}

// FilesByIDs returns the subset of ids the user owns, in the order of ids.
func (s *PostgresStore) FilesByIDs(ctx context.Context, userID string, ids []string) ([]KnowledgeFile, error) {
	if len(ids) == 0 {
		return []KnowledgeFile{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fileColumns+`
		FROM knowledge_files
		WHERE user_id=$1 AND id = ANY($2::text[])
		ORDER BY array_position($2::text[], id)
	`, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("files by ids: %w", err)
	}
	return collectFiles(rows)
}

func (s *PostgresStore) GetFile(ctx context.Context, id, userID string) (KnowledgeFile, error) {
	file, err := scanFile(s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM knowledge_files WHERE id=$1 AND user_id=$2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return KnowledgeFile{}, ErrNotFound
	}
	if err != nil {
		return KnowledgeFile{}, fmt.Errorf("get knowledge file: %w", err)
	}
	return file, nil
}

// InsertFile stores a file record. A folder that is not owned by the user is NotFound.
func (s *PostgresStore) InsertFile(ctx context.Context, file KnowledgeFile) (KnowledgeFile, error) {
	var inserted KnowledgeFile
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := ensureFolderOwned(ctx, tx, file.FolderID, file.UserID); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO knowledge_files (id, user_id, folder_id, file_name, file_type, file_size, content, storage_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+fileColumns,
			file.ID, file.UserID, file.FolderID, file.FileName, file.FileType, file.FileSize, file.Content, file.StorageKey)
		var err error
		if inserted, err = scanFile(row); err != nil {
			return fmt.Errorf("insert knowledge file: %w", err)
		}
		return nil
	})
	if err != nil {
		return KnowledgeFile{}, err
	}
	return inserted, nil
}

// DeleteFile removes a file and returns the deleted row so callers can clean up its blob.
func (s *PostgresStore) DeleteFile(ctx context.Context, id, userID string) (KnowledgeFile, error) {
	file, err := scanFile(s.db.QueryRowContext(ctx, `
		DELETE FROM knowledge_files WHERE id=$1 AND user_id=$2
		RETURNING `+fileColumns, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return KnowledgeFile{}, ErrNotFound
	}
	if err != nil {
		return KnowledgeFile{}, fmt.Errorf("delete knowledge file: %w", err)
	}
	return file, nil
}

// MoveFile puts a file into folderID, or at the root when folderID is nil.
func (s *PostgresStore) MoveFile(ctx context.Context, id, userID string, folderID *string) (KnowledgeFile, error) {
	var moved KnowledgeFile
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := ensureFolderOwned(ctx, tx, folderID, userID); err != nil {
			return err
		}
		file, err := scanFile(tx.QueryRowContext(ctx, `
			UPDATE knowledge_files SET folder_id=$3
			WHERE id=$1 AND user_id=$2
			RETURNING `+fileColumns, id, userID, folderID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("move knowledge file: %w", err)
		}
		moved = file
		return nil
	})
	if err != nil {
		return KnowledgeFile{}, err
	}
	return moved, nil
}

func ensureFolderOwned(ctx context.Context, q queryer, folderID *string, userID string) error {
	if folderID == nil {
		return nil
	}
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM folders WHERE id=$1 AND user_id=$2)`, *folderID, userID).Scan(&exists); err != nil {
		return fmt.Errorf("check folder owner: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}
