package app

import (
	"time"

	"workhub/api/internal/store"
)

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func formatOptionalDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func userJSON(user store.User) map[string]any {
	return map[string]any{
		"id":             user.ID,
		"email":          user.Email,
		"displayName":    user.DisplayName,
		"avatarUrl":      user.AvatarURL,
		"position":       user.Position,
		"phone":          user.Phone,
		"role":           user.Role,
		"userType":       user.UserType,
		"departmentId":   user.DepartmentID,
		"departmentName": user.DepartmentName,
		"superiorId":     user.SuperiorID,
		"createdAt":      formatTime(user.CreatedAt),
	}
}

func departmentJSON(department store.Department) map[string]any {
	return map[string]any{
		"id":        department.ID,
		"name":      department.Name,
		"parentId":  department.ParentID,
		"sortOrder": department.SortOrder,
		"createdAt": formatTime(department.CreatedAt),
		"updatedAt": formatTime(department.UpdatedAt),
	}
}

func folderJSON(folder store.Folder) map[string]any {
	return map[string]any{
		"id":        folder.ID,
		"name":      folder.Name,
		"parentId":  folder.ParentID,
		"level":     folder.Level,
		"sortOrder": folder.SortOrder,
		"createdAt": formatTime(folder.CreatedAt),
		"updatedAt": formatTime(folder.UpdatedAt),
	}
}

// fileJSON omits the extracted content; it can be large and the list views never show it.
func fileJSON(file store.KnowledgeFile) map[string]any {
	return map[string]any{
		"id":         file.ID,
		"folderId":   file.FolderID,
		"fileName":   file.FileName,
		"fileType":   file.FileType,
		"fileSize":   file.FileSize,
		"uploadedAt": formatTime(file.UploadedAt),
	}
}

func taskJSON(task store.Task) map[string]any {
	return map[string]any{
		"id":          task.ID,
		"title":       task.Title,
		"description": task.Description,
		"status":      task.Status,
		"priority":    task.Priority,
		"dueDate":     formatOptionalDate(task.DueDate),
		"assignedBy":  task.AssignedBy,
		"completedAt": formatOptionalTime(task.CompletedAt),
		"createdAt":   formatTime(task.CreatedAt),
		"updatedAt":   formatTime(task.UpdatedAt),
	}
}

func chatSessionJSON(session store.ChatSession) map[string]any {
	return map[string]any{
		"id":        session.ID,
		"title":     session.Title,
		"createdAt": formatTime(session.CreatedAt),
		"updatedAt": formatTime(session.UpdatedAt),
	}
}

func chatMessageJSON(message store.ChatMessage) map[string]any {
	return map[string]any{
		"id":        message.ID,
		"sessionId": message.SessionID,
		"role":      message.Role,
		"content":   message.Content,
		"createdAt": formatTime(message.CreatedAt),
	}
}

func postJSON(post store.IntelligencePost) map[string]any {
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"id":          post.ID,
		"category":    post.Category,
		"title":       post.Title,
		"source":      post.Source,
		"summary":     post.Summary,
		"aiInsight":   post.AIInsight,
		"tags":        tags,
		"viewCount":   post.ViewCount,
		"isFavorite":  post.IsFavorite,
		"publishedAt": formatTime(post.PublishedAt),
	}
}

func summaryJSON(summary store.DailySummary) map[string]any {
	return map[string]any{
		"id":        summary.ID,
		"userId":    summary.UserID,
		"userName":  summary.UserName,
		"date":      summary.SummaryDate.Format(dateLayout),
		"content":   summary.Content,
		"status":    summary.Status,
		"sentTo":    summary.SentTo,
		"sentAt":    formatOptionalTime(summary.SentAt),
		"createdAt": formatTime(summary.CreatedAt),
		"updatedAt": formatTime(summary.UpdatedAt),
	}
}

func handoverJSON(entry store.HandoverLog) map[string]any {
	return map[string]any{
		"id":                  entry.ID,
		"fromUserId":          entry.FromUserID,
		"fromUserName":        entry.FromUserName,
		"toUserId":            entry.ToUserID,
		"toUserName":          entry.ToUserName,
		"operatorId":          entry.OperatorID,
		"operatorName":        entry.OperatorName,
		"filesTransferred":    entry.FilesTransferred,
		"foldersTransferred":  entry.FoldersTransferred,
		"tasksTransferred":    entry.TasksTransferred,
		"sessionsTransferred": entry.SessionsTransferred,
		"note":                entry.Note,
		"createdAt":           formatTime(entry.CreatedAt),
	}
}

func activityJSON(entry store.ActivityLog) map[string]any {
	return map[string]any{
		"id":         entry.ID,
		"action":     entry.Action,
		"targetType": entry.TargetType,
		"targetId":   entry.TargetID,
		"detail":     entry.Detail,
		"createdAt":  formatTime(entry.CreatedAt),
	}
}

func mapSlice[T any](items []T, fn func(T) map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
