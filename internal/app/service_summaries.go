package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"workhub/api/internal/ai"
	"workhub/api/internal/email"
	"workhub/api/internal/export"
	"workhub/api/internal/store"
	"workhub/api/internal/util"
)

const summarySystemPrompt = `You write concise daily work summaries for an employee to send to their manager.
Use Markdown with the sections "Completed", "In progress", "Plans" and "Notes".
Only report what the task list and notes support. Keep it under 400 words.`

func (s *Service) ListSummaries(ctx context.Context, userID string) ([]map[string]any, error) {
	summaries, err := s.store.ListSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mapSlice(summaries, summaryJSON), nil
}

func (s *Service) ReceivedSummaries(ctx context.Context, userID string) ([]map[string]any, error) {
	summaries, err := s.store.ReceivedSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mapSlice(summaries, summaryJSON), nil
}

// GenerateSummary streams a summary of the user's work on date and saves it
// as the draft for that day. A summary that was already sent stays locked.
func (s *Service) GenerateSummary(ctx context.Context, userID, date, notes string, emit func(chunk string) error) (map[string]any, error) {
	day := startOfDay(s.now())
	if strings.TrimSpace(date) != "" {
		parsed, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		day = parsed
	}

	existing, err := s.store.ListSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, summary := range existing {
		if sameDay(summary.SummaryDate, day) && summary.Status == store.SummaryStatusSent {
			return nil, store.ErrSummaryLocked
		}
	}

	touched, err := s.store.TasksTouchedOn(ctx, userID, day)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	due := make([]store.Task, 0)
	for _, task := range all {
		if task.DueDate != nil && sameDay(*task.DueDate, day) && task.Status != store.TaskStatusDone {
			due = append(due, task)
		}
	}

	content, err := s.model.Stream(ctx, ai.Request{
		System:   summarySystemPrompt,
		Messages: []ai.Message{{Role: ai.RoleUser, Content: buildSummaryPrompt(day, touched, due, notes)}},
	}, emit)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("stream daily summary: %w", err)
	}

	saved, err := s.store.UpsertSummary(ctx, store.DailySummary{
		ID:          util.NewID("sum"),
		UserID:      userID,
		SummaryDate: day,
		Content:     strings.TrimSpace(content),
	})
	if err != nil {
		return nil, err
	}
	return summaryJSON(saved), nil
}

func buildSummaryPrompt(day time.Time, touched, due []store.Task, notes string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n\nTasks completed or updated today:\n", day.Format(dateLayout))
	writeTaskLines(&b, touched)
	b.WriteString("\nTasks due today:\n")
	writeTaskLines(&b, due)
	if notes = strings.TrimSpace(notes); notes != "" {
		fmt.Fprintf(&b, "\nNotes from the employee:\n%s\n", notes)
	}
	return b.String()
}

func writeTaskLines(b *strings.Builder, tasks []store.Task) {
	if len(tasks) == 0 {
		b.WriteString("- none\n")
		return
	}
	for _, task := range tasks {
		fmt.Fprintf(b, "- [%s] %s (priority %s)", task.Status, task.Title, task.Priority)
		if task.Description != "" {
			fmt.Fprintf(b, ": %s", task.Description)
		}
		b.WriteString("\n")
	}
}

// SendSummary forwards a draft to the author's superior and locks it.
func (s *Service) SendSummary(ctx context.Context, id, userID string) (map[string]any, error) {
	author, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if author.SuperiorID == nil || *author.SuperiorID == "" {
		return nil, validation("Set a superior in your profile before sending summaries")
	}
	superior, err := s.store.GetUser(ctx, *author.SuperiorID)
	if err != nil {
		return nil, notFound("Superior not found")
	}

	sent, err := s.store.MarkSummarySent(ctx, id, userID, superior.ID)
	if err != nil {
		return nil, err
	}
	sent.UserName = author.DisplayName
	s.recordActivity(ctx, userID, "send_summary", "daily_summary", sent.ID, superior.DisplayName)
	s.mailSummary(author, superior, sent)
	return summaryJSON(sent), nil
}

func (s *Service) mailSummary(author, superior store.User, summary store.DailySummary) {
	if s.mail == nil || !s.mail.IsConfigured() {
		return
	}
	body, err := export.MarkdownToHTML(summary.Content)
	if err != nil {
		s.logger.Warn("render summary mail", zap.String("summary_id", summary.ID), zap.Error(err))
		return
	}
	err = s.mail.SendSummary(email.SummaryMail{
		To:            superior.Email,
		RecipientName: superior.DisplayName,
		AuthorName:    author.DisplayName,
		Date:          summary.SummaryDate.Format(dateLayout),
		BodyHTML:      body,
	})
	if err != nil {
		s.logger.Warn("send summary mail",
			zap.String("summary_id", summary.ID),
			zap.String("to_user_id", superior.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) DeleteSummary(ctx context.Context, id, userID string) error {
	return s.store.DeleteSummary(ctx, id, userID)
}

// ExportSummary renders a summary to PDF or DOCX for its author or recipient.
func (s *Service) ExportSummary(ctx context.Context, id, userID, format string) (*export.Result, error) {
	target, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	summary, err := s.store.GetSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	recipient := summary.SentTo != nil && *summary.SentTo == userID
	if summary.UserID != userID && !recipient {
		return nil, notFound("Summary not found")
	}
	return s.exporter.ExportSummary(ctx, export.SummaryDocument{
		Title:    "Daily Summary",
		Author:   summary.UserName,
		Date:     summary.SummaryDate,
		Status:   summary.Status,
		Markdown: summary.Content,
	}, target)
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return a.Format(dateLayout) == b.Format(dateLayout)
}
