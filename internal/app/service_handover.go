package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"workhub/api/internal/rbac"
	"workhub/api/internal/store"
	"workhub/api/internal/util"
)

func (s *Service) GetUserAssets(ctx context.Context, session Session, userID string) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionHandover) {
		return nil, forbidden()
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	counts, err := s.store.UserAssetCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"userId":         userID,
		"files":          counts.Files,
		"folders":        counts.Folders,
		"openTasks":      counts.OpenTasks,
		"completedTasks": counts.CompletedTasks,
		"sessions":       counts.Sessions,
	}, nil
}

// TransferAssets hands every file, folder, open task and chat session of one
// user to another and records the audit entry, all in one transaction.
func (s *Service) TransferAssets(ctx context.Context, session Session, fromUserID, toUserID, note string) (map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionHandover) {
		return nil, forbidden()
	}
	fromUserID = strings.TrimSpace(fromUserID)
	toUserID = strings.TrimSpace(toUserID)
	if fromUserID == "" || toUserID == "" {
		return nil, validation("fromUserId and toUserId are required")
	}
	if fromUserID == toUserID {
		return nil, validation("Source and target user must be different")
	}
	fromUser, err := s.store.GetUser(ctx, fromUserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Source user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load source user: %w", err)
	}
	toUser, err := s.store.GetUser(ctx, toUserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Target user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load target user: %w", err)
	}

	if !s.beginHandover(fromUserID) {
		return nil, domainError(http.StatusConflict, "HANDOVER_IN_PROGRESS", "A handover for this user is already running", nil)
	}
	defer s.endHandover(fromUserID)

	entry, err := s.store.TransferAssets(ctx, store.HandoverLog{
		ID:         util.NewID("hnd"),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		OperatorID: session.UserID,
		Note:       strings.TrimSpace(note),
	})
	if err != nil {
		return nil, err
	}
	entry.FromUserName = fromUser.DisplayName
	entry.ToUserName = toUser.DisplayName
	entry.OperatorName = session.UserName

	s.logger.Info("assets handed over",
		zap.String("from_user_id", fromUserID),
		zap.String("to_user_id", toUserID),
		zap.String("operator_id", session.UserID),
		zap.Int("files", entry.FilesTransferred),
		zap.Int("folders", entry.FoldersTransferred),
		zap.Int("tasks", entry.TasksTransferred),
		zap.Int("sessions", entry.SessionsTransferred),
	)
	s.recordActivity(ctx, session.UserID, "handover", "user", fromUserID,
		fmt.Sprintf("%s -> %s: %d files, %d folders, %d tasks, %d sessions",
			fromUser.DisplayName, toUser.DisplayName,
			entry.FilesTransferred, entry.FoldersTransferred, entry.TasksTransferred, entry.SessionsTransferred))

	if entry.FilesTransferred > 0 {
		moved, err := s.store.ListFiles(ctx, toUserID, nil)
		if err != nil {
			s.logger.Warn("reindex handed over files", zap.String("user_id", toUserID), zap.Error(err))
		} else {
			s.indexFiles(moved...)
		}
	}
	return handoverJSON(entry), nil
}

func (s *Service) beginHandover(fromUserID string) bool {
	s.handoverMu.Lock()
	defer s.handoverMu.Unlock()
	if _, busy := s.handoverInFlight[fromUserID]; busy {
		return false
	}
	s.handoverInFlight[fromUserID] = struct{}{}
	return true
}

func (s *Service) endHandover(fromUserID string) {
	s.handoverMu.Lock()
	defer s.handoverMu.Unlock()
	delete(s.handoverInFlight, fromUserID)
}

func (s *Service) ListHandoverLogs(ctx context.Context, session Session) ([]map[string]any, error) {
	if !s.Can(session.Role, rbac.ActionHandover) {
		return nil, forbidden()
	}
	entries, err := s.store.ListHandoverLogs(ctx, 200)
	if err != nil {
		return nil, err
	}
	return mapSlice(entries, handoverJSON), nil
}
