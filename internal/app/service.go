package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"workhub/api/internal/ai"
	"workhub/api/internal/auth"
	"workhub/api/internal/config"
	"workhub/api/internal/email"
	"workhub/api/internal/export"
	"workhub/api/internal/extract"
	"workhub/api/internal/intel"
	"workhub/api/internal/rbac"
	"workhub/api/internal/search"
	"workhub/api/internal/store"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Email     string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

type dataStore interface {
	Ping(context.Context) error

	UpsertUserByExternalID(context.Context, store.User) (store.User, error)
	GetUser(context.Context, string) (store.User, error)
	ListUsers(context.Context) ([]store.User, error)
	UpdateUser(context.Context, string, store.UserPatch) (store.User, error)

	ListDepartments(context.Context) ([]store.Department, error)
	CreateDepartment(context.Context, store.Department) (store.Department, error)
	UpdateDepartment(context.Context, string, *string, *string, bool, *int) (store.Department, error)
	DeleteDepartment(context.Context, string) error

	ListFolders(context.Context, string) ([]store.Folder, error)
	CreateFolder(context.Context, store.Folder) (store.Folder, error)
	RenameFolder(context.Context, string, string, string) (store.Folder, error)
	MoveFolder(context.Context, string, string, *string) (store.Folder, error)
	DeleteFolder(context.Context, string, string) ([]string, error)

	ListFiles(context.Context, string, *string) ([]store.KnowledgeFile, error)
	FilesByIDs(context.Context, string, []string) ([]store.KnowledgeFile, error)
	InsertFile(context.Context, store.KnowledgeFile) (store.KnowledgeFile, error)
	DeleteFile(context.Context, string, string) (store.KnowledgeFile, error)
	MoveFile(context.Context, string, string, *string) (store.KnowledgeFile, error)

	ListTasks(context.Context, string) ([]store.Task, error)
	TasksTouchedOn(context.Context, string, time.Time) ([]store.Task, error)
	CreateTask(context.Context, store.Task) (store.Task, error)
	UpdateTask(context.Context, string, string, store.TaskPatch) (store.Task, error)
	DeleteTask(context.Context, string, string) error

	ListSessions(context.Context, string) ([]store.ChatSession, error)
	GetSession(context.Context, string, string) (store.ChatSession, error)
	CreateSession(context.Context, store.ChatSession) (store.ChatSession, error)
	SetSessionTitleIfEmpty(context.Context, string, string, string) error
	DeleteSession(context.Context, string, string) error
	ListMessages(context.Context, string, string) ([]store.ChatMessage, error)
	RecentMessages(context.Context, string, int) ([]store.ChatMessage, error)
	InsertMessage(context.Context, store.ChatMessage) (store.ChatMessage, error)

	ListPosts(context.Context, string, string, int) ([]store.IntelligencePost, error)
	ListFavorites(context.Context, string) ([]store.IntelligencePost, error)
	CountPosts(context.Context) (int, error)
	CountFavorites(context.Context, string) (int, error)
	ToggleFavorite(context.Context, string, string) (bool, error)
	RecordView(context.Context, string) (int, error)

	ListSummaries(context.Context, string) ([]store.DailySummary, error)
	ReceivedSummaries(context.Context, string) ([]store.DailySummary, error)
	GetSummary(context.Context, string) (store.DailySummary, error)
	UpsertSummary(context.Context, store.DailySummary) (store.DailySummary, error)
	MarkSummarySent(context.Context, string, string, string) (store.DailySummary, error)
	DeleteSummary(context.Context, string, string) error

	UserAssetCounts(context.Context, string) (store.AssetCounts, error)
	TransferAssets(context.Context, store.HandoverLog) (store.HandoverLog, error)
	ListHandoverLogs(context.Context, int) ([]store.HandoverLog, error)

	InsertActivity(context.Context, store.ActivityLog) error
	ListActivity(context.Context, string, time.Time, int) ([]store.ActivityLog, error)

	RevokeSession(context.Context, string, time.Time) error
	IsSessionRevoked(context.Context, string) (bool, error)
}

// revocationStore remembers logged-out token ids until they expire.
type revocationStore interface {
	RevokeSession(ctx context.Context, jti string, expiresAt time.Time) error
	IsSessionRevoked(ctx context.Context, jti string) (bool, error)
}

type searchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexFiles(records ...search.FileRecord)
	DeleteFile(id string)
}

type blobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
}

type mailer interface {
	IsConfigured() bool
	SendSummary(mail email.SummaryMail) error
}

type summaryExporter interface {
	ExportSummary(ctx context.Context, doc export.SummaryDocument, format export.Format) (*export.Result, error)
}

type intelScheduler interface {
	Status() intel.Status
	Trigger(ctx context.Context) ([]store.IntelligencePost, error)
}

type loginProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (auth.Identity, error)
}

// Deps are the collaborators a Service talks to. Optional ones may be nil.
type Deps struct {
	Store     dataStore
	Revoked   revocationStore
	Search    searchIndex
	Model     ai.Client
	Extractor extract.Extractor
	Scheduler intelScheduler
	Login     loginProvider
	Blobs     blobStore
	Mail      mailer
	Exporter  summaryExporter
}

type Service struct {
	cfg       config.Config
	store     dataStore
	revoked   revocationStore
	search    searchIndex
	model     ai.Client
	extractor extract.Extractor
	scheduler intelScheduler
	login     loginProvider
	blobs     blobStore
	mail      mailer
	exporter  summaryExporter
	logger    *zap.Logger
	now       func() time.Time

	handoverMu       sync.Mutex
	handoverInFlight map[string]struct{}
}

func New(cfg config.Config, deps Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		cfg:              cfg,
		store:            deps.Store,
		revoked:          deps.Revoked,
		search:           deps.Search,
		model:            deps.Model,
		extractor:        deps.Extractor,
		scheduler:        deps.Scheduler,
		login:            deps.Login,
		blobs:            deps.Blobs,
		mail:             deps.Mail,
		exporter:         deps.Exporter,
		logger:           logger,
		now:              time.Now,
		handoverInFlight: make(map[string]struct{}),
	}
	if svc.revoked == nil {
		svc.revoked = deps.Store
	}
	if svc.model == nil {
		svc.model = ai.Disabled{}
	}
	if svc.extractor == nil {
		svc.extractor = extract.Default{}
	}
	if svc.exporter == nil {
		svc.exporter = export.NewService()
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// recordActivity writes an activity log entry. Failures are logged, never returned.
func (s *Service) recordActivity(ctx context.Context, userID, action, targetType, targetID, detail string) {
	err := s.store.InsertActivity(ctx, store.ActivityLog{
		UserID:     userID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
	})
	if err != nil {
		s.logger.Warn("record activity",
			zap.String("user_id", userID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func (s *Service) indexFiles(files ...store.KnowledgeFile) {
	if s.search == nil || len(files) == 0 {
		return
	}
	records := make([]search.FileRecord, 0, len(files))
	for _, file := range files {
		records = append(records, search.FileRecord{
			ID:       file.ID,
			UserID:   file.UserID,
			FolderID: file.FolderID,
			FileName: file.FileName,
			FileType: file.FileType,
			Content:  file.Content,
		})
	}
	s.search.IndexFiles(records...)
}
