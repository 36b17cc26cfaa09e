package search

import (
	"context"

	"go.uber.org/zap"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili  *Meili
	pgfts  Searcher
	logger *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts Searcher, logger *zap.Logger) *Service {
	return &Service{meili: meili, pgfts: pgfts, logger: logger}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn("meilisearch error, falling back to pgfts", zap.Error(err))
	}

	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		s.logger.Error("pgfts search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexFiles indexes files (fire-and-forget to Meilisearch).
func (s *Service) IndexFiles(records ...FileRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(records) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexFiles(records); err != nil {
			s.logger.Warn("index knowledge files", zap.Int("count", len(records)), zap.Error(err))
		}
	}()
}

// DeleteFile removes a file from the search index (fire-and-forget).
func (s *Service) DeleteFile(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteFile(id); err != nil {
			s.logger.Warn("delete knowledge file from index", zap.String("id", id), zap.Error(err))
		}
	}()
}

// ReindexAllFromPG pushes every knowledge file from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context, loader interface {
	LoadAllRecords(ctx context.Context) ([]FileRecord, error)
}) {
	if s.meili == nil || !s.meili.Healthy() || loader == nil {
		return
	}
	records, err := loader.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Error("reindex load failed", zap.Error(err))
		return
	}
	if err := s.meili.IndexFiles(records); err != nil {
		s.logger.Error("reindex knowledge files", zap.Error(err))
	}
}

// Close stops background work owned by the service.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
