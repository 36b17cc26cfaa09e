package app

import (
	"context"
	"strconv"
	"strings"

	"workhub/api/internal/store"
	"workhub/api/internal/util"
)

func (s *Service) ListFolders(ctx context.Context, userID string) ([]map[string]any, error) {
	folders, err := s.store.ListFolders(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mapSlice(folders, folderJSON), nil
}

func (s *Service) CreateFolder(ctx context.Context, userID, name string, parentID *string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validation("name is required")
	}
	created, err := s.store.CreateFolder(ctx, store.Folder{
		ID:       util.NewID("fld"),
		UserID:   userID,
		Name:     name,
		ParentID: normalizeOptionalID(parentID),
	})
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, userID, "create_folder", "folder", created.ID, created.Name)
	return folderJSON(created), nil
}

func (s *Service) RenameFolder(ctx context.Context, id, userID, name string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validation("name is required")
	}
	renamed, err := s.store.RenameFolder(ctx, id, userID, name)
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, userID, "rename_folder", "folder", renamed.ID, renamed.Name)
	return folderJSON(renamed), nil
}

// MoveFolder re-parents a folder. A nil or empty parent moves it to the root.
func (s *Service) MoveFolder(ctx context.Context, id, userID string, parentID *string) (map[string]any, error) {
	parentID = normalizeOptionalID(parentID)
	if parentID != nil && *parentID == id {
		return nil, validation("A folder cannot be its own parent")
	}
	moved, err := s.store.MoveFolder(ctx, id, userID, parentID)
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, userID, "move_folder", "folder", moved.ID, moved.Name)
	return folderJSON(moved), nil
}

func (s *Service) DeleteFolder(ctx context.Context, id, userID string) (map[string]any, error) {
	deleted, err := s.store.DeleteFolder(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, userID, "delete_folder", "folder", id, strconv.Itoa(len(deleted))+" folders removed")
	return map[string]any{"ok": true, "deletedFolderIds": deleted}, nil
}

func normalizeOptionalID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return &trimmed
}
