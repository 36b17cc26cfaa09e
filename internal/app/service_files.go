package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"workhub/api/internal/blob"
	"workhub/api/internal/extract"
	"workhub/api/internal/search"
	"workhub/api/internal/store"
	"workhub/api/internal/util"
)

const (
	MaxUploadBytes    = 10 << 20
	minExtractedRunes = 5
)

func (s *Service) ListFiles(ctx context.Context, userID string, folderID *string) ([]map[string]any, error) {
	files, err := s.store.ListFiles(ctx, userID, normalizeOptionalID(folderID))
	if err != nil {
		return nil, err
	}
	return mapSlice(files, fileJSON), nil
}

// UploadFile extracts text from an uploaded document and stores it. An
// extraction failure never rejects the upload; the content falls back to a
// placeholder naming the file.
func (s *Service) UploadFile(ctx context.Context, userID string, folderID *string, fileName string, data []byte) (map[string]any, error) {
	name := strings.TrimSpace(filepath.Base(strings.ReplaceAll(fileName, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return nil, validation("file name is required")
	}
	fileType, err := extract.TypeOf(name)
	if err != nil {
		return nil, validation("Only .txt, .pdf and .docx files are supported")
	}
	if len(data) > MaxUploadBytes {
		return nil, validation("File exceeds the 10 MB limit")
	}

	text, err := s.extractor.Extract(fileType, data)
	if err != nil {
		s.logger.Warn("text extraction failed",
			zap.String("file_name", name),
			zap.String("file_type", fileType),
			zap.Error(err),
		)
		text = ""
	}
	content := strings.TrimSpace(text)
	if utf8.RuneCountInString(content) < minExtractedRunes {
		content = placeholderContent(name, len(data))
	}

	fileID := util.NewID("kf")
	storageKey := s.storeBlob(ctx, userID, fileID, name, data)

	saved, err := s.store.InsertFile(ctx, store.KnowledgeFile{
		ID:         fileID,
		UserID:     userID,
		FolderID:   normalizeOptionalID(folderID),
		FileName:   name,
		FileType:   fileType,
		FileSize:   int64(len(data)),
		Content:    content,
		StorageKey: storageKey,
	})
	if err != nil {
		s.removeBlob(ctx, storageKey)
		return nil, err
	}

	s.indexFiles(saved)
	s.recordActivity(ctx, userID, "upload_file", "knowledge_file", saved.ID, saved.FileName)
	payload := fileJSON(saved)
	payload["contentLength"] = utf8.RuneCountInString(saved.Content)
	return payload, nil
}

func placeholderContent(name string, size int) string {
	return fmt.Sprintf("[File: %s, size: %d bytes] Text content could not be extracted from this file.", name, size)
}

// storeBlob keeps the original bytes when blob storage is configured and
// returns the object key, or "" when nothing was stored.
func (s *Service) storeBlob(ctx context.Context, userID, fileID, name string, data []byte) string {
	if s.blobs == nil {
		return ""
	}
	key := blob.ObjectKey(userID, fileID, name)
	if err := s.blobs.Put(ctx, key, data, http.DetectContentType(data)); err != nil {
		s.logger.Warn("store upload blob", zap.String("key", key), zap.Error(err))
		return ""
	}
	return key
}

func (s *Service) removeBlob(ctx context.Context, key string) {
	if s.blobs == nil || key == "" {
		return
	}
	if err := s.blobs.Remove(ctx, key); err != nil {
		s.logger.Warn("remove upload blob", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) DeleteFile(ctx context.Context, id, userID string) error {
	deleted, err := s.store.DeleteFile(ctx, id, userID)
	if err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteFile(deleted.ID)
	}
	s.removeBlob(ctx, deleted.StorageKey)
	s.recordActivity(ctx, userID, "delete_file", "knowledge_file", deleted.ID, deleted.FileName)
	return nil
}

func (s *Service) MoveFile(ctx context.Context, id, userID string, folderID *string) (map[string]any, error) {
	moved, err := s.store.MoveFile(ctx, id, userID, normalizeOptionalID(folderID))
	if err != nil {
		return nil, err
	}
	s.indexFiles(moved)
	s.recordActivity(ctx, userID, "move_file", "knowledge_file", moved.ID, moved.FileName)
	return fileJSON(moved), nil
}

func (s *Service) SearchFiles(ctx context.Context, userID, text string, limit int) (search.Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{Results: []search.Result{}}, nil
	}
	if s.search == nil {
		return search.Response{}, errors.New("search is not configured")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	return s.search.Search(ctx, search.Query{UserID: userID, Text: text, Limit: limit}), nil
}
