package app

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"workhub/api/internal/store"
)

const MaxAvatarBytes = 2 << 20

func (s *Service) GetProfile(ctx context.Context, userID string) (map[string]any, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return userJSON(user), nil
}

// UpdateProfile applies the self-service subset of a user update: display
// name, position, phone and superior.
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UserInput) (map[string]any, error) {
	patch, err := s.userPatch(ctx, userID, input)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateUser(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, userID, "update_profile", "user", userID, "")
	return userJSON(updated), nil
}

// UploadAvatar stores a sniffed image as a data URL on the user row.
func (s *Service) UploadAvatar(ctx context.Context, userID string, data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, validation("avatar file is required")
	}
	if len(data) > MaxAvatarBytes {
		return nil, validation("Avatar exceeds the 2 MB limit")
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return nil, validation("Avatar must be an image")
	}
	mime, _, _ = strings.Cut(mime, ";")

	avatarURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	updated, err := s.store.UpdateUser(ctx, userID, store.UserPatch{AvatarURL: &avatarURL})
	if err != nil {
		return nil, err
	}
	return map[string]any{"avatarUrl": updated.AvatarURL}, nil
}

func (s *Service) ListActivity(ctx context.Context, userID, date string) ([]map[string]any, error) {
	day := s.now()
	if strings.TrimSpace(date) != "" {
		parsed, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		day = parsed
	}
	entries, err := s.store.ListActivity(ctx, userID, day, 200)
	if err != nil {
		return nil, err
	}
	return mapSlice(entries, activityJSON), nil
}
