// Package search finds knowledge files by text, through Meilisearch when it
// is reachable and PostgreSQL full-text search otherwise.
package search

import (
	"context"
	"unicode/utf8"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string  `json:"id"`
	FileName string  `json:"fileName"`
	FileType string  `json:"fileType"`
	FolderID *string `json:"folderId"`
	Snippet  string  `json:"snippet"`
}

// Query describes a search request. UserID always scopes the results.
type Query struct {
	UserID string
	Text   string
	Limit  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// FileRecord is the data we index for a knowledge file.
type FileRecord struct {
	ID       string  `json:"id"`
	UserID   string  `json:"userId"`
	FolderID *string `json:"folderId"`
	FileName string  `json:"fileName"`
	FileType string  `json:"fileType"`
	Content  string  `json:"content"`
}

// maxIndexedContent caps how much extracted text is pushed to the index.
const maxIndexedContent = 200_000

func (r FileRecord) trimmed() FileRecord {
	if len(r.Content) > maxIndexedContent {
		cut := maxIndexedContent
		for cut > 0 && !utf8.RuneStart(r.Content[cut]) {
			cut--
		}
		r.Content = r.Content[:cut]
	}
	return r
}
