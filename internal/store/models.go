package store

import "time"

const MaxFolderDepth = 3

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"

	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"

	SummaryStatusDraft = "draft"
	SummaryStatusSent  = "sent"
)

type User struct {
	ID             string
	ExternalID     string
	Email          string
	DisplayName    string
	AvatarURL      string
	Position       string
	Phone          string
	Role           string
	UserType       string
	DepartmentID   *string
	DepartmentName string
	SuperiorID     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserPatch holds the optional fields an admin or the user can change.
// Nil means "leave as is". ClearSuperior/ClearDepartment unset the pointer columns.
type UserPatch struct {
	DisplayName     *string
	Position        *string
	Phone           *string
	AvatarURL       *string
	Role            *string
	UserType        *string
	DepartmentID    *string
	ClearDepartment bool
	SuperiorID      *string
	ClearSuperior   bool
}

type Department struct {
	ID        string
	Name      string
	ParentID  *string
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Folder struct {
	ID        string
	UserID    string
	Name      string
	ParentID  *string
	Level     int
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type KnowledgeFile struct {
	ID         string
	UserID     string
	FolderID   *string
	FileName   string
	FileType   string
	FileSize   int64
	Content    string
	StorageKey string
	UploadedAt time.Time
}

type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	AssignedBy  *string
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *string
	Priority     *string
	DueDate      *time.Time
	ClearDueDate bool
}

type ChatSession struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ChatMessage struct {
	ID        string
	SessionID string
	UserID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

type IntelligencePost struct {
	ID          string
	Category    string
	Title       string
	Source      string
	Summary     string
	AIInsight   string
	Tags        []string
	ViewCount   int
	PublishedAt time.Time
	CreatedAt   time.Time
	IsFavorite  bool
}

type DailySummary struct {
	ID          string
	UserID      string
	UserName    string
	SummaryDate time.Time
	Content     string
	Status      string
	SentTo      *string
	SentAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AssetCounts is the snapshot taken before a handover mutates anything.
type AssetCounts struct {
	Files          int
	Folders        int
	OpenTasks      int
	CompletedTasks int
	Sessions       int
}

type HandoverLog struct {
	ID                  string
	FromUserID          string
	FromUserName        string
	ToUserID            string
	ToUserName          string
	OperatorID          string
	OperatorName        string
	FilesTransferred    int
	FoldersTransferred  int
	TasksTransferred    int
	SessionsTransferred int
	Note                string
	CreatedAt           time.Time
}

type ActivityLog struct {
	ID         int64
	UserID     string
	Action     string
	TargetType string
	TargetID   string
	Detail     string
	CreatedAt  time.Time
}
