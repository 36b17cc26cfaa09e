package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"workhub/api/internal/intel"
	"workhub/api/internal/rbac"
)

const feedPageSize = 100

func (s *Service) ListPosts(ctx context.Context, userID, category string) ([]map[string]any, error) {
	category = strings.TrimSpace(category)
	if category == "all" {
		category = ""
	}
	if category != "" && !intel.ValidCategory(category) {
		return nil, validation("category must be one of industry, competitor, supply_chain")
	}
	posts, err := s.store.ListPosts(ctx, userID, category, feedPageSize)
	if err != nil {
		return nil, err
	}
	return mapSlice(posts, postJSON), nil
}

func (s *Service) ListFavorites(ctx context.Context, userID string) ([]map[string]any, error) {
	posts, err := s.store.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mapSlice(posts, postJSON), nil
}

func (s *Service) ToggleFavorite(ctx context.Context, userID, intelID string) (map[string]any, error) {
	isFavorite, err := s.store.ToggleFavorite(ctx, userID, intelID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"intelId": intelID, "isFavorite": isFavorite}, nil
}

func (s *Service) RecordView(ctx context.Context, intelID string) (map[string]any, error) {
	views, err := s.store.RecordView(ctx, intelID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"intelId": intelID, "viewCount": views}, nil
}

func (s *Service) SchedulerStatus() intel.Status {
	if s.scheduler == nil {
		return intel.Status{State: intel.StateIdle}
	}
	return s.scheduler.Status()
}

// TriggerIntel runs a generation cycle now. Admin only.
func (s *Service) TriggerIntel(ctx context.Context, session Session) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionTriggerIntel) {
		return nil, forbidden()
	}
	if s.scheduler == nil {
		return nil, externalServiceError("Intelligence generation is not available")
	}
	posts, err := s.scheduler.Trigger(ctx)
	if err != nil {
		s.logger.Error("manual intelligence generation failed", zap.String("user_id", session.UserID), zap.Error(err))
		if intel.IsGenerationError(err) {
			return nil, err
		}
		return nil, externalServiceError(fmt.Sprintf("Intelligence generation failed: %v", err))
	}
	s.recordActivity(ctx, session.UserID, "trigger_intel", "intelligence", "", fmt.Sprintf("%d posts", len(posts)))
	return map[string]any{"count": len(posts), "posts": mapSlice(posts, postJSON)}, nil
}
