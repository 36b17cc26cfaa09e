package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true: if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search matches the generated fts column with plainto_tsquery, falling back
// to a case-insensitive file name match so short tokens still hit.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" || q.UserID == "" {
		return nil, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	const where = `
		kf.user_id = $1
		AND (kf.fts @@ plainto_tsquery('simple', $2) OR kf.file_name ILIKE '%' || $2 || '%')`

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM knowledge_files kf WHERE `+where, q.UserID, text).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT kf.id, kf.file_name, kf.file_type, kf.folder_id,
			ts_headline('simple', coalesce(kf.content, ''), plainto_tsquery('simple', $2), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM knowledge_files kf
		WHERE `+where+`
		ORDER BY ts_rank(kf.fts, plainto_tsquery('simple', $2)) DESC, kf.uploaded_at DESC
		LIMIT $3
	`, q.UserID, text, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var r Result
		var folderID sql.NullString
		if err := rows.Scan(&r.ID, &r.FileName, &r.FileType, &folderID, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		if folderID.Valid {
			r.FolderID = &folderID.String
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]FileRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, folder_id, file_name, file_type, content
		FROM knowledge_files
	`)
	if err != nil {
		return nil, fmt.Errorf("load knowledge files: %w", err)
	}
	defer rows.Close()

	records := make([]FileRecord, 0)
	for rows.Next() {
		var r FileRecord
		var folderID sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &folderID, &r.FileName, &r.FileType, &r.Content); err != nil {
			return nil, fmt.Errorf("scan knowledge file: %w", err)
		}
		if folderID.Valid {
			r.FolderID = &folderID.String
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge files: %w", err)
	}
	return records, nil
}
