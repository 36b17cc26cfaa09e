package app

import (
	"context"
	"strings"
	"time"

	"workhub/api/internal/rbac"
	"workhub/api/internal/store"
	"workhub/api/internal/util"
)

// TaskInput carries optional task fields. DueDate is YYYY-MM-DD; an empty
// string clears it on update.
type TaskInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"dueDate"`
	AssigneeID  *string `json:"assigneeId"`
}

func validTaskStatus(status string) bool {
	switch status {
	case store.TaskStatusTodo, store.TaskStatusInProgress, store.TaskStatusDone:
		return true
	default:
		return false
	}
}

func validTaskPriority(priority string) bool {
	switch priority {
	case store.TaskPriorityLow, store.TaskPriorityMedium, store.TaskPriorityHigh:
		return true
	default:
		return false
	}
}

func (s *Service) ListTasks(ctx context.Context, userID string) ([]map[string]any, error) {
	tasks, err := s.store.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mapSlice(tasks, taskJSON), nil
}

func (s *Service) CreateTask(ctx context.Context, session Session, input TaskInput) (map[string]any, error) {
	task := store.Task{
		ID:       util.NewID("tsk"),
		UserID:   session.UserID,
		Status:   store.TaskStatusTodo,
		Priority: store.TaskPriorityMedium,
	}
	if input.Title != nil {
		task.Title = strings.TrimSpace(*input.Title)
	}
	if task.Title == "" {
		return nil, validation("title is required")
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil && *input.Status != "" {
		if !validTaskStatus(*input.Status) {
			return nil, validation("status must be one of todo, in_progress, done")
		}
		task.Status = *input.Status
	}
	if input.Priority != nil && *input.Priority != "" {
		if !validTaskPriority(*input.Priority) {
			return nil, validation("priority must be one of low, medium, high")
		}
		task.Priority = *input.Priority
	}
	if input.DueDate != nil && *input.DueDate != "" {
		due, err := parseDate(*input.DueDate)
		if err != nil {
			return nil, err
		}
		task.DueDate = &due
	}

	if assigneeID := normalizeOptionalID(input.AssigneeID); assigneeID != nil && *assigneeID != session.UserID {
		assignee, err := s.store.GetUser(ctx, *assigneeID)
		if err != nil {
			return nil, notFound("Assignee not found")
		}
		if !rbac.CanAssignTask(rbac.Normalize(session.Role), session.UserID, assignee.SuperiorID) {
			return nil, forbidden()
		}
		task.UserID = assignee.ID
		assignedBy := session.UserID
		task.AssignedBy = &assignedBy
	}

	created, err := s.store.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, session.UserID, "create_task", "task", created.ID, created.Title)
	return taskJSON(created), nil
}

func (s *Service) UpdateTask(ctx context.Context, id, userID string, input TaskInput) (map[string]any, error) {
	var patch store.TaskPatch
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, validation("title cannot be empty")
		}
		patch.Title = &title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		patch.Description = &description
	}
	if input.Status != nil {
		if !validTaskStatus(*input.Status) {
			return nil, validation("status must be one of todo, in_progress, done")
		}
		patch.Status = input.Status
	}
	if input.Priority != nil {
		if !validTaskPriority(*input.Priority) {
			return nil, validation("priority must be one of low, medium, high")
		}
		patch.Priority = input.Priority
	}
	if input.DueDate != nil {
		if strings.TrimSpace(*input.DueDate) == "" {
			patch.ClearDueDate = true
		} else {
			due, err := parseDate(*input.DueDate)
			if err != nil {
				return nil, err
			}
			patch.DueDate = &due
		}
	}

	updated, err := s.store.UpdateTask(ctx, id, userID, patch)
	if err != nil {
		return nil, err
	}
	action := "update_task"
	if patch.Status != nil && *patch.Status == store.TaskStatusDone {
		action = "complete_task"
	}
	s.recordActivity(ctx, userID, action, "task", updated.ID, updated.Title)
	return taskJSON(updated), nil
}

func (s *Service) DeleteTask(ctx context.Context, id, userID string) error {
	if err := s.store.DeleteTask(ctx, id, userID); err != nil {
		return err
	}
	s.recordActivity(ctx, userID, "delete_task", "task", id, "")
	return nil
}

func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, validation("dates must use the YYYY-MM-DD format")
	}
	return parsed, nil
}
