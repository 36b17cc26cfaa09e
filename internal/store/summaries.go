package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const summarySelect = `
	SELECT ds.id, ds.user_id, u.display_name, ds.summary_date, ds.content, ds.status, ds.sent_to, ds.sent_at, ds.created_at, ds.updated_at
	FROM daily_summaries ds
	JOIN users u ON u.id = ds.user_id`

const summaryReturning = `id, user_id, '' AS user_name, summary_date, content, status, sent_to, sent_at, created_at, updated_at`

func scanSummary(row rowScanner) (DailySummary, error) {
	var summary DailySummary
	var sentTo sql.NullString
	var sentAt sql.NullTime
	if err := row.Scan(&summary.ID, &summary.UserID, &summary.UserName, &summary.SummaryDate, &summary.Content, &summary.Status, &sentTo, &sentAt, &summary.CreatedAt, &summary.UpdatedAt); err != nil {
		return DailySummary{}, err
	}
	summary.SentTo = nullableString(sentTo)
	summary.SentAt = nullableTime(sentAt)
	return summary, nil
}

func (s *PostgresStore) ListSummaries(ctx context.Context, userID string) ([]DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, summarySelect+` WHERE ds.user_id=$1 ORDER BY ds.summary_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list daily summaries: %w", err)
	}
	return collectSummaries(rows)
}

// ReceivedSummaries lists summaries that were sent to userID as the superior.
func (s *PostgresStore) ReceivedSummaries(ctx context.Context, userID string) ([]DailySummary, error) {
	rows, err := s.db.QueryContext(ctx, summarySelect+` WHERE ds.sent_to=$1 ORDER BY ds.sent_at DESC NULLS LAST, ds.summary_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list received summaries: %w", err)
	}
	return collectSummaries(rows)
}

func (s *PostgresStore) GetSummary(ctx context.Context, id string) (DailySummary, error) {
	summary, err := scanSummary(s.db.QueryRowContext(ctx, summarySelect+` WHERE ds.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return DailySummary{}, ErrNotFound
	}
	if err != nil {
		return DailySummary{}, fmt.Errorf("get daily summary: %w", err)
	}
	return summary, nil
}

// UpsertSummary writes the draft for (user, date). A summary that was
// already sent is never overwritten.
func (s *PostgresStore) UpsertSummary(ctx context.Context, summary DailySummary) (DailySummary, error) {
	saved, err := scanSummary(s.db.QueryRowContext(ctx, `
		INSERT INTO daily_summaries (id, user_id, summary_date, content, status)
		VALUES ($1, $2, $3::date, $4, 'draft')
		ON CONFLICT (user_id, summary_date) DO UPDATE
			SET content = EXCLUDED.content, updated_at = NOW()
			WHERE daily_summaries.status = 'draft'
		RETURNING `+summaryReturning,
		summary.ID, summary.UserID, summary.SummaryDate, summary.Content))
	if errors.Is(err, sql.ErrNoRows) {
		return DailySummary{}, ErrSummaryLocked
	}
	if err != nil {
		return DailySummary{}, fmt.Errorf("upsert daily summary: %w", err)
	}
	return saved, nil
}

// MarkSummarySent moves a draft to sent and records the recipient.
func (s *PostgresStore) MarkSummarySent(ctx context.Context, id, userID, recipientID string) (DailySummary, error) {
	sent, err := scanSummary(s.db.QueryRowContext(ctx, `
		UPDATE daily_summaries
		SET status='sent', sent_to=$3, sent_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND user_id=$2 AND status='draft'
		RETURNING `+summaryReturning, id, userID, recipientID))
	if errors.Is(err, sql.ErrNoRows) {
		return DailySummary{}, s.summaryMissReason(ctx, id, userID)
	}
	if err != nil {
		return DailySummary{}, fmt.Errorf("send daily summary: %w", err)
	}
	return sent, nil
}

func (s *PostgresStore) DeleteSummary(ctx context.Context, id, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM daily_summaries WHERE id=$1 AND user_id=$2 AND status='draft'`, id, userID)
	if err != nil {
		return fmt.Errorf("delete daily summary: %w", err)
	}
	affected, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		return s.summaryMissReason(ctx, id, userID)
	}
	return nil
}

// summaryMissReason tells a sent summary (locked) apart from a missing one.
func (s *PostgresStore) summaryMissReason(ctx context.Context, id, userID string) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM daily_summaries WHERE id=$1 AND user_id=$2`, id, userID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup daily summary: %w", err)
	}
	if status == SummaryStatusSent {
		return ErrSummaryLocked
	}
	return ErrNotFound
}

func collectSummaries(rows *sql.Rows) ([]DailySummary, error) {
	defer rows.Close()
	items := make([]DailySummary, 0)
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily summary: %w", err)
		}
		items = append(items, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily summaries: %w", err)
	}
	return items, nil
}
