package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"workhub/api/internal/auth"
	"workhub/api/internal/config"
	"workhub/api/internal/store"
)

type fakeStore struct {
	pingFn func(context.Context) error

	upsertUserFn func(context.Context, store.User) (store.User, error)
	getUserFn    func(context.Context, string) (store.User, error)
	listUsersFn  func(context.Context) ([]store.User, error)
	updateUserFn func(context.Context, string, store.UserPatch) (store.User, error)

	listDepartmentsFn  func(context.Context) ([]store.Department, error)
	createDepartmentFn func(context.Context, store.Department) (store.Department, error)
	updateDepartmentFn func(context.Context, string, *string, *string, bool, *int) (store.Department, error)
	deleteDepartmentFn func(context.Context, string) error

	listFoldersFn  func(context.Context, string) ([]store.Folder, error)
	createFolderFn func(context.Context, store.Folder) (store.Folder, error)
	renameFolderFn func(context.Context, string, string, string) (store.Folder, error)
	moveFolderFn   func(context.Context, string, string, *string) (store.Folder, error)
	deleteFolderFn func(context.Context, string, string) ([]string, error)

	listFilesFn  func(context.Context, string, *string) ([]store.KnowledgeFile, error)
	filesByIDsFn func(context.Context, string, []string) ([]store.KnowledgeFile, error)
	insertFileFn func(context.Context, store.KnowledgeFile) (store.KnowledgeFile, error)
	deleteFileFn func(context.Context, string, string) (store.KnowledgeFile, error)
	moveFileFn   func(context.Context, string, string, *string) (store.KnowledgeFile, error)

	listTasksFn      func(context.Context, string) ([]store.Task, error)
	tasksTouchedOnFn func(context.Context, string, time.Time) ([]store.Task, error)
	createTaskFn     func(context.Context, store.Task) (store.Task, error)
	updateTaskFn     func(context.Context, string, string, store.TaskPatch) (store.Task, error)
	deleteTaskFn     func(context.Context, string, string) error

	listSessionsFn     func(context.Context, string) ([]store.ChatSession, error)
	getSessionFn       func(context.Context, string, string) (store.ChatSession, error)
	createSessionFn    func(context.Context, store.ChatSession) (store.ChatSession, error)
	setSessionTitleFn  func(context.Context, string, string, string) error
	deleteSessionFn    func(context.Context, string, string) error
	listMessagesFn     func(context.Context, string, string) ([]store.ChatMessage, error)
	recentMessagesFn   func(context.Context, string, int) ([]store.ChatMessage, error)
	insertMessageFn    func(context.Context, store.ChatMessage) (store.ChatMessage, error)
	listPostsFn        func(context.Context, string, string, int) ([]store.IntelligencePost, error)
	listFavoritesFn    func(context.Context, string) ([]store.IntelligencePost, error)
	countPostsFn       func(context.Context) (int, error)
	countFavoritesFn   func(context.Context, string) (int, error)
	toggleFavoriteFn   func(context.Context, string, string) (bool, error)
	recordViewFn       func(context.Context, string) (int, error)
	listSummariesFn    func(context.Context, string) ([]store.DailySummary, error)
	receivedFn         func(context.Context, string) ([]store.DailySummary, error)
	getSummaryFn       func(context.Context, string) (store.DailySummary, error)
	upsertSummaryFn    func(context.Context, store.DailySummary) (store.DailySummary, error)
	markSummarySentFn  func(context.Context, string, string, string) (store.DailySummary, error)
	deleteSummaryFn    func(context.Context, string, string) error
	assetCountsFn      func(context.Context, string) (store.AssetCounts, error)
	transferAssetsFn   func(context.Context, store.HandoverLog) (store.HandoverLog, error)
	listHandoverLogsFn func(context.Context, int) ([]store.HandoverLog, error)
	insertActivityFn   func(context.Context, store.ActivityLog) error
	listActivityFn     func(context.Context, string, time.Time, int) ([]store.ActivityLog, error)

	revoked map[string]time.Time
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) UpsertUserByExternalID(ctx context.Context, user store.User) (store.User, error) {
	if f.upsertUserFn != nil {
		return f.upsertUserFn(ctx, user)
	}
	return user, nil
}

// GetUser defaults to an existing user whose role follows the id prefix, so
// "admin-1" is an admin and everyone else a regular user.
func (f *fakeStore) GetUser(ctx context.Context, id string) (store.User, error) {
	if f.getUserFn != nil {
		return f.getUserFn(ctx, id)
	}
	role := "user"
	if strings.HasPrefix(id, "admin") {
		role = "admin"
	}
	return store.User{ID: id, DisplayName: "User " + id, Email: id + "@example.com", Role: role}, nil
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]store.User, error) {
	if f.listUsersFn != nil {
		return f.listUsersFn(ctx)
	}
	return []store.User{}, nil
}

func (f *fakeStore) UpdateUser(ctx context.Context, id string, patch store.UserPatch) (store.User, error) {
	if f.updateUserFn != nil {
		return f.updateUserFn(ctx, id, patch)
	}
	return store.User{ID: id}, nil
}

func (f *fakeStore) ListDepartments(ctx context.Context) ([]store.Department, error) {
	if f.listDepartmentsFn != nil {
		return f.listDepartmentsFn(ctx)
	}
	return []store.Department{}, nil
}

func (f *fakeStore) CreateDepartment(ctx context.Context, department store.Department) (store.Department, error) {
	if f.createDepartmentFn != nil {
		return f.createDepartmentFn(ctx, department)
	}
	return department, nil
}

func (f *fakeStore) UpdateDepartment(ctx context.Context, id string, name, parentID *string, clearParent bool, sortOrder *int) (store.Department, error) {
	if f.updateDepartmentFn != nil {
		return f.updateDepartmentFn(ctx, id, name, parentID, clearParent, sortOrder)
	}
	return store.Department{ID: id}, nil
}

func (f *fakeStore) DeleteDepartment(ctx context.Context, id string) error {
	if f.deleteDepartmentFn != nil {
		return f.deleteDepartmentFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) ListFolders(ctx context.Context, userID string) ([]store.Folder, error) {
	if f.listFoldersFn != nil {
		return f.listFoldersFn(ctx, userID)
	}
	return []store.Folder{}, nil
}

func (f *fakeStore) CreateFolder(ctx context.Context, folder store.Folder) (store.Folder, error) {
	if f.createFolderFn != nil {
		return f.createFolderFn(ctx, folder)
	}
	folder.Level = 1
	return folder, nil
}

func (f *fakeStore) RenameFolder(ctx context.Context, id, userID, name string) (store.Folder, error) {
	if f.renameFolderFn != nil {
		return f.renameFolderFn(ctx, id, userID, name)
	}
	return store.Folder{ID: id, UserID: userID, Name: name, Level: 1}, nil
}

func (f *fakeStore) MoveFolder(ctx context.Context, id, userID string, parentID *string) (store.Folder, error) {
	if f.moveFolderFn != nil {
		return f.moveFolderFn(ctx, id, userID, parentID)
	}
	return store.Folder{ID: id, UserID: userID, ParentID: parentID}, nil
}

func (f *fakeStore) DeleteFolder(ctx context.Context, id, userID string) ([]string, error) {
	if f.deleteFolderFn != nil {
		return f.deleteFolderFn(ctx, id, userID)
	}
	return []string{id}, nil
}

func (f *fakeStore) ListFiles(ctx context.Context, userID string, folderID *string) ([]store.KnowledgeFile, error) {
	if f.listFilesFn != nil {
		return f.listFilesFn(ctx, userID, folderID)
	}
	return []store.KnowledgeFile{}, nil
}

func (f *fakeStore) FilesByIDs(ctx context.Context, userID string, ids []string) ([]store.KnowledgeFile, error) {
	if f.filesByIDsFn != nil {
		return f.filesByIDsFn(ctx, userID, ids)
	}
	return []store.KnowledgeFile{}, nil
}

func (f *fakeStore) InsertFile(ctx context.Context, file store.KnowledgeFile) (store.KnowledgeFile, error) {
	if f.insertFileFn != nil {
		return f.insertFileFn(ctx, file)
	}
	return file, nil
}

func (f *fakeStore) DeleteFile(ctx context.Context, id, userID string) (store.KnowledgeFile, error) {
	if f.deleteFileFn != nil {
		return f.deleteFileFn(ctx, id, userID)
	}
	return store.KnowledgeFile{ID: id, UserID: userID}, nil
}

func (f *fakeStore) MoveFile(ctx context.Context, id, userID string, folderID *string) (store.KnowledgeFile, error) {
	if f.moveFileFn != nil {
		return f.moveFileFn(ctx, id, userID, folderID)
	}
	return store.KnowledgeFile{ID: id, UserID: userID, FolderID: folderID}, nil
}

func (f *fakeStore) ListTasks(ctx context.Context, userID string) ([]store.Task, error) {
	if f.listTasksFn != nil {
		return f.listTasksFn(ctx, userID)
	}
	return []store.Task{}, nil
}

func (f *fakeStore) TasksTouchedOn(ctx context.Context, userID string, day time.Time) ([]store.Task, error) {
	if f.tasksTouchedOnFn != nil {
		return f.tasksTouchedOnFn(ctx, userID, day)
	}
	return []store.Task{}, nil
}

func (f *fakeStore) CreateTask(ctx context.Context, task store.Task) (store.Task, error) {
	if f.createTaskFn != nil {
		return f.createTaskFn(ctx, task)
	}
	return task, nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, id, userID string, patch store.TaskPatch) (store.Task, error) {
	if f.updateTaskFn != nil {
		return f.updateTaskFn(ctx, id, userID, patch)
	}
	return store.Task{ID: id, UserID: userID}, nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, id, userID string) error {
	if f.deleteTaskFn != nil {
		return f.deleteTaskFn(ctx, id, userID)
	}
	return nil
}

func (f *fakeStore) ListSessions(ctx context.Context, userID string) ([]store.ChatSession, error) {
	if f.listSessionsFn != nil {
		return f.listSessionsFn(ctx, userID)
	}
	return []store.ChatSession{}, nil
}

func (f *fakeStore) GetSession(ctx context.Context, id, userID string) (store.ChatSession, error) {
	if f.getSessionFn != nil {
		return f.getSessionFn(ctx, id, userID)
	}
	return store.ChatSession{ID: id, UserID: userID}, nil
}

func (f *fakeStore) CreateSession(ctx context.Context, session store.ChatSession) (store.ChatSession, error) {
	if f.createSessionFn != nil {
		return f.createSessionFn(ctx, session)
	}
	return session, nil
}

func (f *fakeStore) SetSessionTitleIfEmpty(ctx context.Context, id, userID, title string) error {
	if f.setSessionTitleFn != nil {
		return f.setSessionTitleFn(ctx, id, userID, title)
	}
	return nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, id, userID string) error {
	if f.deleteSessionFn != nil {
		return f.deleteSessionFn(ctx, id, userID)
	}
	return nil
}

func (f *fakeStore) ListMessages(ctx context.Context, sessionID, userID string) ([]store.ChatMessage, error) {
	if f.listMessagesFn != nil {
		return f.listMessagesFn(ctx, sessionID, userID)
	}
	return []store.ChatMessage{}, nil
}

func (f *fakeStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]store.ChatMessage, error) {
	if f.recentMessagesFn != nil {
		return f.recentMessagesFn(ctx, sessionID, limit)
	}
	return []store.ChatMessage{}, nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, message store.ChatMessage) (store.ChatMessage, error) {
	if f.insertMessageFn != nil {
		return f.insertMessageFn(ctx, message)
	}
	return message, nil
}

func (f *fakeStore) ListPosts(ctx context.Context, userID, category string, limit int) ([]store.IntelligencePost, error) {
	if f.listPostsFn != nil {
		return f.listPostsFn(ctx, userID, category, limit)
	}
	return []store.IntelligencePost{}, nil
}

func (f *fakeStore) ListFavorites(ctx context.Context, userID string) ([]store.IntelligencePost, error) {
	if f.listFavoritesFn != nil {
		return f.listFavoritesFn(ctx, userID)
	}
	return []store.IntelligencePost{}, nil
}

func (f *fakeStore) CountPosts(ctx context.Context) (int, error) {
	if f.countPostsFn != nil {
		return f.countPostsFn(ctx)
	}
	return 0, nil
}

func (f *fakeStore) CountFavorites(ctx context.Context, userID string) (int, error) {
	if f.countFavoritesFn != nil {
		return f.countFavoritesFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeStore) ToggleFavorite(ctx context.Context, userID, intelID string) (bool, error) {
	if f.toggleFavoriteFn != nil {
		return f.toggleFavoriteFn(ctx, userID, intelID)
	}
	return true, nil
}

func (f *fakeStore) RecordView(ctx context.Context, intelID string) (int, error) {
	if f.recordViewFn != nil {
		return f.recordViewFn(ctx, intelID)
	}
	return 1, nil
}

func (f *fakeStore) ListSummaries(ctx context.Context, userID string) ([]store.DailySummary, error) {
	if f.listSummariesFn != nil {
		return f.listSummariesFn(ctx, userID)
	}
	return []store.DailySummary{}, nil
}

func (f *fakeStore) ReceivedSummaries(ctx context.Context, userID string) ([]store.DailySummary, error) {
	if f.receivedFn != nil {
		return f.receivedFn(ctx, userID)
	}
	return []store.DailySummary{}, nil
}

func (f *fakeStore) GetSummary(ctx context.Context, id string) (store.DailySummary, error) {
	if f.getSummaryFn != nil {
		return f.getSummaryFn(ctx, id)
	}
	return store.DailySummary{}, store.ErrNotFound
}

func (f *fakeStore) UpsertSummary(ctx context.Context, summary store.DailySummary) (store.DailySummary, error) {
	if f.upsertSummaryFn != nil {
		return f.upsertSummaryFn(ctx, summary)
	}
	summary.Status = store.SummaryStatusDraft
	return summary, nil
}

func (f *fakeStore) MarkSummarySent(ctx context.Context, id, userID, recipientID string) (store.DailySummary, error) {
	if f.markSummarySentFn != nil {
		return f.markSummarySentFn(ctx, id, userID, recipientID)
	}
	return store.DailySummary{ID: id, UserID: userID, Status: store.SummaryStatusSent, SentTo: &recipientID}, nil
}

func (f *fakeStore) DeleteSummary(ctx context.Context, id, userID string) error {
	if f.deleteSummaryFn != nil {
		return f.deleteSummaryFn(ctx, id, userID)
	}
	return nil
}

func (f *fakeStore) UserAssetCounts(ctx context.Context, userID string) (store.AssetCounts, error) {
	if f.assetCountsFn != nil {
		return f.assetCountsFn(ctx, userID)
	}
	return store.AssetCounts{}, nil
}

func (f *fakeStore) TransferAssets(ctx context.Context, entry store.HandoverLog) (store.HandoverLog, error) {
	if f.transferAssetsFn != nil {
		return f.transferAssetsFn(ctx, entry)
	}
	return entry, nil
}

func (f *fakeStore) ListHandoverLogs(ctx context.Context, limit int) ([]store.HandoverLog, error) {
	if f.listHandoverLogsFn != nil {
		return f.listHandoverLogsFn(ctx, limit)
	}
	return []store.HandoverLog{}, nil
}

func (f *fakeStore) InsertActivity(ctx context.Context, entry store.ActivityLog) error {
	if f.insertActivityFn != nil {
		return f.insertActivityFn(ctx, entry)
	}
	return nil
}

func (f *fakeStore) ListActivity(ctx context.Context, userID string, day time.Time, limit int) ([]store.ActivityLog, error) {
	if f.listActivityFn != nil {
		return f.listActivityFn(ctx, userID, day, limit)
	}
	return []store.ActivityLog{}, nil
}

func (f *fakeStore) RevokeSession(_ context.Context, jti string, expiresAt time.Time) error {
	if f.revoked == nil {
		f.revoked = make(map[string]time.Time)
	}
	f.revoked[jti] = expiresAt
	return nil
}

func (f *fakeStore) IsSessionRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := f.revoked[jti]
	return ok, nil
}

var testNow = time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

func newTestService(fs *fakeStore) *Service {
	return newTestServiceWithDeps(Deps{Store: fs})
}

func newTestServiceWithDeps(deps Deps) *Service {
	svc := New(config.Config{
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
		CORSOrigin:    "http://localhost:5173",
	}, deps, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

// tokenFor issues a session token for userID; the fake store decides its role.
func tokenFor(t *testing.T, svc *Service, userID string) string {
	t.Helper()
	session, err := svc.issueSession(store.User{ID: userID, DisplayName: "User " + userID})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return session.Token
}

func adminSession() Session {
	return Session{UserID: "admin-1", UserName: "Admin", Role: "admin"}
}

func userSession(id string) Session {
	return Session{UserID: id, UserName: "User " + id, Role: "user"}
}

func TestSessionFromTokenReadsRoleFromStore(t *testing.T) {
	fs := &fakeStore{
		getUserFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, DisplayName: "Promoted", Role: "admin"}, nil
		},
	}
	svc := newTestService(fs)

	session, err := svc.issueSession(store.User{ID: "user-1", Role: "user"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	resolved, err := svc.SessionFromToken(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("SessionFromToken error = %v", err)
	}
	if resolved.Role != "admin" || resolved.UserName != "Promoted" {
		t.Fatalf("session = %+v, want role and name from store", resolved)
	}
}

func TestSessionFromTokenRejectsMissingUser(t *testing.T) {
	fs := &fakeStore{
		getUserFn: func(context.Context, string) (store.User, error) {
			return store.User{}, store.ErrNotFound
		},
	}
	svc := newTestService(fs)
	token := tokenFor(t, svc, "ghost")

	if _, err := svc.SessionFromToken(context.Background(), token); err == nil {
		t.Fatal("expected deleted user to invalidate the token")
	}
}

func TestSessionExpiryFollowsServiceClock(t *testing.T) {
	svc := newTestService(&fakeStore{})
	issuedAt := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issuedAt }

	token := tokenFor(t, svc, "user-1")
	if _, err := svc.SessionFromToken(context.Background(), token); err != nil {
		t.Fatalf("SessionFromToken within TTL error = %v", err)
	}

	svc.now = func() time.Time { return issuedAt.Add(time.Hour) }
	if _, err := svc.SessionFromToken(context.Background(), token); !errors.Is(err, auth.ErrExpiredToken) {
		t.Fatalf("SessionFromToken after TTL error = %v, want ErrExpiredToken", err)
	}
}
