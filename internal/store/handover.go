package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// UserAssetCounts reports what a handover of userID would move right now.
func (s *PostgresStore) UserAssetCounts(ctx context.Context, userID string) (AssetCounts, error) {
	return getUserAssetCounts(ctx, s.db, userID)
}

func getUserAssetCounts(ctx context.Context, q queryer, userID string) (AssetCounts, error) {
	var counts AssetCounts
	err := q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM knowledge_files WHERE user_id=$1),
			(SELECT COUNT(*) FROM folders WHERE user_id=$1),
			(SELECT COUNT(*) FROM tasks WHERE user_id=$1 AND status <> 'done'),
			(SELECT COUNT(*) FROM tasks WHERE user_id=$1 AND status = 'done'),
			(SELECT COUNT(*) FROM chat_sessions WHERE user_id=$1)
	`, userID).Scan(&counts.Files, &counts.Folders, &counts.OpenTasks, &counts.CompletedTasks, &counts.Sessions)
	if err != nil {
		return AssetCounts{}, fmt.Errorf("count user assets: %w", err)
	}
	return counts, nil
}

// TransferAssets moves every file, folder, chat session, chat message and
// open task from entry.FromUserID to entry.ToUserID and appends the audit
// row, all in one transaction. Completed tasks stay with the source user.
// The counts recorded in the log are taken before anything is moved.
func (s *PostgresStore) TransferAssets(ctx context.Context, entry HandoverLog) (HandoverLog, error) {
	var saved HandoverLog
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		lockKeys := []string{entry.FromUserID, entry.ToUserID}
		sort.Strings(lockKeys)
		for _, key := range lockKeys {
			if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('handover:' || $1::text))`, key); err != nil {
				return fmt.Errorf("lock handover %s: %w", key, err)
			}
		}

		counts, err := getUserAssetCounts(ctx, tx, entry.FromUserID)
		if err != nil {
			return err
		}

		steps := []struct {
			name  string
			query string
		}{
			{"knowledge files", `UPDATE knowledge_files SET user_id=$2 WHERE user_id=$1`},
			{"folders", `UPDATE folders SET user_id=$2, updated_at=NOW() WHERE user_id=$1`},
			{"chat sessions", `UPDATE chat_sessions SET user_id=$2 WHERE user_id=$1`},
			{"chat messages", `UPDATE chat_messages SET user_id=$2 WHERE user_id=$1`},
			{"open tasks", `UPDATE tasks SET user_id=$2, updated_at=NOW() WHERE user_id=$1 AND status <> 'done'`},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, entry.FromUserID, entry.ToUserID); err != nil {
				return fmt.Errorf("transfer %s: %w", step.name, err)
			}
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO handover_logs (id, from_user_id, to_user_id, operator_id, files_transferred, folders_transferred, tasks_transferred, sessions_transferred, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, from_user_id, to_user_id, operator_id, files_transferred, folders_transferred, tasks_transferred, sessions_transferred, note, created_at
		`, entry.ID, entry.FromUserID, entry.ToUserID, entry.OperatorID, counts.Files, counts.Folders, counts.OpenTasks, counts.Sessions, entry.Note).Scan(
			&saved.ID, &saved.FromUserID, &saved.ToUserID, &saved.OperatorID,
			&saved.FilesTransferred, &saved.FoldersTransferred, &saved.TasksTransferred, &saved.SessionsTransferred,
			&saved.Note, &saved.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert handover log: %w", err)
		}
		return nil
	})
	if err != nil {
		return HandoverLog{}, err
	}
	return saved, nil
}

func (s *PostgresStore) ListHandoverLogs(ctx context.Context, limit int) ([]HandoverLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.from_user_id, fu.display_name, h.to_user_id, tu.display_name, h.operator_id, ou.display_name,
			h.files_transferred, h.folders_transferred, h.tasks_transferred, h.sessions_transferred, h.note, h.created_at
		FROM handover_logs h
		JOIN users fu ON fu.id = h.from_user_id
		JOIN users tu ON tu.id = h.to_user_id
		JOIN users ou ON ou.id = h.operator_id
		ORDER BY h.created_at DESC, h.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list handover logs: %w", err)
	}
	defer rows.Close()

	items := make([]HandoverLog, 0)
	for rows.Next() {
		var item HandoverLog
		if err := rows.Scan(&item.ID, &item.FromUserID, &item.FromUserName, &item.ToUserID, &item.ToUserName, &item.OperatorID, &item.OperatorName,
			&item.FilesTransferred, &item.FoldersTransferred, &item.TasksTransferred, &item.SessionsTransferred, &item.Note, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan handover log: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate handover logs: %w", err)
	}
	return items, nil
}
