package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

func scanPost(row rowScanner) (IntelligencePost, error) {
	var post IntelligencePost
	var tags []byte
	if err := row.Scan(&post.ID, &post.Category, &post.Title, &post.Source, &post.Summary, &post.AIInsight, &tags, &post.ViewCount, &post.PublishedAt, &post.CreatedAt, &post.IsFavorite); err != nil {
		return IntelligencePost{}, err
	}
	post.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &post.Tags); err != nil {
			return IntelligencePost{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	return post, nil
}

// ListPosts returns the global feed newest first, flagging the caller's favorites.
// An empty category means all categories.
func (s *PostgresStore) ListPosts(ctx context.Context, userID, category string, limit int) ([]IntelligencePost, error) {
	query := `
		SELECT p.id, p.category, p.title, p.source, p.summary, p.ai_insight, p.tags, p.view_count, p.published_at, p.created_at,
			(f.user_id IS NOT NULL) AS is_favorite
		FROM intelligence_posts p
		LEFT JOIN user_favorites f ON f.intel_id = p.id AND f.user_id = $1
		WHERE ($2::text = '' OR p.category = $2::text)
		ORDER BY p.published_at DESC, p.id`
	args := []any{userID, category}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list intelligence posts: %w", err)
	}
	return collectPosts(rows)
}

func (s *PostgresStore) ListFavorites(ctx context.Context, userID string) ([]IntelligencePost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.category, p.title, p.source, p.summary, p.ai_insight, p.tags, p.view_count, p.published_at, p.created_at,
			TRUE AS is_favorite
		FROM user_favorites f
		JOIN intelligence_posts p ON p.id = f.intel_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return collectPosts(rows)
}

func (s *PostgresStore) CountPosts(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM intelligence_posts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count intelligence posts: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountFavorites(ctx context.Context, userID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_favorites WHERE user_id=$1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count favorites: %w", err)
	}
	return count, nil
}

// ToggleFavorite flips membership of (userID, intelID) and returns whether
// the post is a favorite afterwards.
func (s *PostgresStore) ToggleFavorite(ctx context.Context, userID, intelID string) (bool, error) {
	var favorite bool
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM intelligence_posts WHERE id=$1)`, intelID).Scan(&exists); err != nil {
			return fmt.Errorf("check intelligence post: %w", err)
		}
		if !exists {
			return ErrNotFound
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM user_favorites WHERE user_id=$1 AND intel_id=$2`, userID, intelID)
		if err != nil {
			return fmt.Errorf("delete favorite: %w", err)
		}
		affected, err := rowsAffected(result)
		if err != nil {
			return err
		}
		if affected > 0 {
			favorite = false
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_favorites (user_id, intel_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, intel_id) DO NOTHING
		`, userID, intelID); err != nil {
			return fmt.Errorf("insert favorite: %w", err)
		}
		favorite = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return favorite, nil
}

func (s *PostgresStore) RecordView(ctx context.Context, intelID string) (int, error) {
	var views int
	err := s.db.QueryRowContext(ctx, `
		UPDATE intelligence_posts SET view_count = view_count + 1
		WHERE id=$1
		RETURNING view_count
	`, intelID).Scan(&views)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("record view: %w", err)
	}
	return views, nil
}

// InsertPosts writes all posts in one statement so a cycle is all-or-nothing.
func (s *PostgresStore) InsertPosts(ctx context.Context, posts []IntelligencePost) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	const columns = 8
	placeholders := make([]string, 0, len(posts))
	args := make([]any, 0, len(posts)*columns)
	for i, post := range posts {
		tags := post.Tags
		if tags == nil {
			tags = []string{}
		}
		encoded, err := json.Marshal(tags)
		if err != nil {
			return 0, fmt.Errorf("encode tags: %w", err)
		}
		base := i * columns
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d::jsonb, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args, post.ID, post.Category, post.Title, post.Source, post.Summary, post.AIInsight, string(encoded), post.PublishedAt)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO intelligence_posts (id, category, title, source, summary, ai_insight, tags, published_at)
		VALUES `+strings.Join(placeholders, ", "), args...)
	if err != nil {
		return 0, fmt.Errorf("insert intelligence posts: %w", err)
	}
	affected, err := rowsAffected(result)
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func collectPosts(rows *sql.Rows) ([]IntelligencePost, error) {
	defer rows.Close()
	items := make([]IntelligencePost, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intelligence post: %w", err)
		}
		items = append(items, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intelligence posts: %w", err)
	}
	return items, nil
}
