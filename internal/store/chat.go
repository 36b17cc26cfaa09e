package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ChatHistoryWindow is how many prior messages are replayed to the model.
const ChatHistoryWindow = 10

const sessionColumns = `id, user_id, title, created_at, updated_at`
const messageColumns = `id, session_id, user_id, role, content, created_at`

func scanSession(row rowScanner) (ChatSession, error) {
	var session ChatSession
	err := row.Scan(&session.ID, &session.UserID, &session.Title, &session.CreatedAt, &session.UpdatedAt)
	return session, err
}

func scanMessage(row rowScanner) (ChatMessage, error) {
	var message ChatMessage
	err := row.Scan(&message.ID, &message.SessionID, &message.UserID, &message.Role, &message.Content, &message.CreatedAt)
	return message, err
}

func (s *PostgresStore) ListSessions(ctx context.Context, userID string) ([]ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE user_id=$1 ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	defer rows.Close()

	items := make([]ChatSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat session: %w", err)
		}
		items = append(items, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat sessions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id, userID string) (ChatSession, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM chat_sessions WHERE id=$1 AND user_id=$2`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return ChatSession{}, ErrNotFound
	}
	if err != nil {
		return ChatSession{}, fmt.Errorf("get chat session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session ChatSession) (ChatSession, error) {
	created, err := scanSession(s.db.QueryRowContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, title)
		VALUES ($1, $2, $3)
		RETURNING `+sessionColumns, session.ID, session.UserID, session.Title))
	if err != nil {
		return ChatSession{}, fmt.Errorf("insert chat session: %w", err)
	}
	return created, nil
}

// SetSessionTitleIfEmpty names an untitled session; an existing title is kept.
func (s *PostgresStore) SetSessionTitleIfEmpty(ctx context.Context, id, userID, title string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_sessions SET title=$3, updated_at=NOW()
		WHERE id=$1 AND user_id=$2 AND title=''
	`, id, userID, title)
	if err != nil {
		return fmt.Errorf("set chat session title: %w", err)
	}
	return nil
}

// DeleteSession removes a session; its messages go with it through the FK cascade.
func (s *PostgresStore) DeleteSession(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete chat session: %w", err)
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

func (s *PostgresStore) ListMessages(ctx context.Context, sessionID, userID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.session_id, m.user_id, m.role, m.content, m.created_at
		FROM chat_messages m
		JOIN chat_sessions cs ON cs.id = m.session_id
		WHERE m.session_id=$1 AND cs.user_id=$2
		ORDER BY m.created_at, m.seq
	`, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return collectMessages(rows)
}

// RecentMessages returns the last limit messages of a session in chronological order.
func (s *PostgresStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM (
			SELECT `+messageColumns+`, seq
			FROM chat_messages
			WHERE session_id=$1
			ORDER BY created_at DESC, seq DESC
			LIMIT $2
		) recent
		ORDER BY created_at, seq
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent chat messages: %w", err)
	}
	return collectMessages(rows)
}

func (s *PostgresStore) InsertMessage(ctx context.Context, message ChatMessage) (ChatMessage, error) {
	var inserted ChatMessage
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO chat_messages (id, session_id, user_id, role, content)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+messageColumns,
			message.ID, message.SessionID, message.UserID, message.Role, message.Content)
		var err error
		if inserted, err = scanMessage(row); err != nil {
			return fmt.Errorf("insert chat message: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET updated_at=NOW() WHERE id=$1`, message.SessionID); err != nil {
			return fmt.Errorf("touch chat session: %w", err)
		}
		return nil
	})
	if err != nil {
		return ChatMessage{}, err
	}
	return inserted, nil
}

func collectMessages(rows *sql.Rows) ([]ChatMessage, error) {
	defer rows.Close()
	items := make([]ChatMessage, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		items = append(items, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return items, nil
}
