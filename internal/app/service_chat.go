package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"workhub/api/internal/ai"
	"workhub/api/internal/search"
	"workhub/api/internal/store"
	"workhub/api/internal/util"
)

const (
	chatHistoryWindow  = 10
	chatContextDocs    = 3
	chatContextBudget  = 12000
	chatDocumentBudget = 4000
	chatTitleRunes     = 30
)

const chatSystemPrompt = `You are the knowledge assistant of an enterprise workspace.
Answer using the user's documents below when they are relevant and say so when they are not.
Reply in the language of the question. Use Markdown for structure.`

func (s *Service) ListSessions(ctx context.Context, userID string) ([]map[string]any, error) {
	sessions, err := s.store.ListSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mapSlice(sessions, chatSessionJSON), nil
}

func (s *Service) CreateSession(ctx context.Context, userID, title string) (map[string]any, error) {
	session, err := s.store.CreateSession(ctx, store.ChatSession{
		ID:     util.NewID("chs"),
		UserID: userID,
		Title:  truncateRunes(strings.TrimSpace(title), 200),
	})
	if err != nil {
		return nil, err
	}
	return chatSessionJSON(session), nil
}

func (s *Service) ListMessages(ctx context.Context, sessionID, userID string) ([]map[string]any, error) {
	messages, err := s.store.ListMessages(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return mapSlice(messages, chatMessageJSON), nil
}

func (s *Service) DeleteSession(ctx context.Context, sessionID, userID string) error {
	return s.store.DeleteSession(ctx, sessionID, userID)
}

// SendMessage stores the user's message and streams the assistant reply
// through emit. The reply is persisted only when the stream completes; a
// cancelled request leaves no assistant message behind.
func (s *Service) SendMessage(ctx context.Context, sessionID, userID, content string, fileIDs []string, emit func(chunk string) error) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validation("content is required")
	}
	session, err := s.store.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.InsertMessage(ctx, store.ChatMessage{
		ID:        util.NewID("msg"),
		SessionID: session.ID,
		UserID:    userID,
		Role:      ai.RoleUser,
		Content:   content,
	}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(session.Title) == "" {
		if err := s.store.SetSessionTitleIfEmpty(ctx, session.ID, userID, truncateRunes(content, chatTitleRunes)); err != nil {
			s.logger.Warn("set chat session title", zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	docs, err := s.contextDocuments(ctx, userID, content, fileIDs)
	if err != nil {
		return nil, err
	}
	history, err := s.store.RecentMessages(ctx, session.ID, chatHistoryWindow)
	if err != nil {
		return nil, err
	}
	messages := make([]ai.Message, 0, len(history))
	for _, message := range history {
		messages = append(messages, ai.Message{Role: message.Role, Content: message.Content})
	}

	reply, err := s.model.Stream(ctx, ai.Request{
		System:   chatSystemPrompt + "\n\n" + renderDocuments(docs),
		Messages: messages,
	}, emit)
	if ctx.Err() != nil {
		s.logger.Info("chat stream cancelled", zap.String("session_id", session.ID))
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("stream chat reply: %w", err)
	}

	saved, err := s.store.InsertMessage(ctx, store.ChatMessage{
		ID:        util.NewID("msg"),
		SessionID: session.ID,
		UserID:    userID,
		Role:      ai.RoleAssistant,
		Content:   reply,
	})
	if err != nil {
		return nil, err
	}
	return chatMessageJSON(saved), nil
}

// contextDocuments picks the documents handed to the model: the files the
// user attached, else the best search hits, else the most recent uploads.
func (s *Service) contextDocuments(ctx context.Context, userID, question string, fileIDs []string) ([]store.KnowledgeFile, error) {
	if len(fileIDs) > 0 {
		return s.store.FilesByIDs(ctx, userID, fileIDs)
	}
	if s.search != nil {
		resp := s.search.Search(ctx, search.Query{UserID: userID, Text: question, Limit: chatContextDocs})
		if len(resp.Results) > 0 {
			ids := make([]string, 0, len(resp.Results))
			for _, hit := range resp.Results {
				ids = append(ids, hit.ID)
			}
			docs, err := s.store.FilesByIDs(ctx, userID, ids)
			if err != nil {
				return nil, err
			}
			if len(docs) > 0 {
				return docs, nil
			}
		}
	}
	recent, err := s.store.ListFiles(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	return head(recent, chatContextDocs), nil
}

func renderDocuments(docs []store.KnowledgeFile) string {
	if len(docs) == 0 {
		return "The user has no documents yet."
	}
	var b strings.Builder
	b.WriteString("User documents:\n")
	remaining := chatContextBudget
	for _, doc := range docs {
		if remaining <= 0 {
			break
		}
		limit := min(chatDocumentBudget, remaining)
		body := truncateRunes(doc.Content, limit)
		remaining -= utf8.RuneCountInString(body)
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", doc.FileName, body)
	}
	return b.String()
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit])
}
