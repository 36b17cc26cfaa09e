package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestFolderLifecyclePostgres(t *testing.T) {
	s, ctx := newTestStore(t)

	root, err := s.CreateFolder(ctx, Folder{ID: "f_root", UserID: "u_a", Name: "Root"})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	if root.Level != 1 || root.SortOrder != 1 {
		t.Fatalf("root = level %d sort %d, want 1/1", root.Level, root.SortOrder)
	}
	mid, err := s.CreateFolder(ctx, Folder{ID: "f_mid", UserID: "u_a", Name: "Mid", ParentID: strPtr(root.ID)})
	if err != nil {
		t.Fatalf("create mid: %v", err)
	}
	leaf, err := s.CreateFolder(ctx, Folder{ID: "f_leaf", UserID: "u_a", Name: "Leaf", ParentID: strPtr(mid.ID)})
	if err != nil {
		t.Fatalf("create leaf: %v", err)
	}
	if leaf.Level != 3 {
		t.Fatalf("leaf level = %d, want 3", leaf.Level)
	}
	if _, err := s.CreateFolder(ctx, Folder{ID: "f_deep", UserID: "u_a", Name: "Deep", ParentID: strPtr(leaf.ID)}); !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("create level 4 error = %v, want ErrDepthExceeded", err)
	}
	if _, err := s.CreateFolder(ctx, Folder{ID: "f_other", UserID: "u_b", Name: "Other", ParentID: strPtr(root.ID)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("create under foreign parent error = %v, want ErrNotFound", err)
	}

	moved, err := s.MoveFolder(ctx, mid.ID, "u_a", nil)
	if err != nil {
		t.Fatalf("move mid to root: %v", err)
	}
	if moved.Level != 1 {
		t.Fatalf("moved level = %d, want 1", moved.Level)
	}
	gotLeaf, err := s.GetFolder(ctx, leaf.ID, "u_a")
	if err != nil {
		t.Fatalf("get leaf: %v", err)
	}
	if gotLeaf.Level != 2 {
		t.Fatalf("leaf level after cascade = %d, want 2", gotLeaf.Level)
	}

	file, err := s.InsertFile(ctx, KnowledgeFile{ID: "kf_1", UserID: "u_a", FolderID: strPtr(leaf.ID), FileName: "a.txt", FileType: "txt", FileSize: 5, Content: "hello"})
	if err != nil {
		t.Fatalf("insert file: %v", err)
	}

	deleted, err := s.DeleteFolder(ctx, mid.ID, "u_a")
	if err != nil {
		t.Fatalf("delete folder: %v", err)
	}
	if len(deleted) != 2 || deleted[0] != leaf.ID {
		t.Fatalf("deleted = %v, want leaf first", deleted)
	}
	got, err := s.GetFile(ctx, file.ID, "u_a")
	if err != nil {
		t.Fatalf("file must survive folder delete: %v", err)
	}
	if got.FolderID != nil {
		t.Fatalf("file folder = %v, want root", *got.FolderID)
	}
}

func TestTaskCompletedAtPostgres(t *testing.T) {
	s, ctx := newTestStore(t)

	task, err := s.CreateTask(ctx, Task{ID: "t_1", UserID: "u_a", Title: "Ship", Status: TaskStatusTodo, Priority: TaskPriorityMedium})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.CompletedAt != nil {
		t.Fatal("new todo task must not be completed")
	}

	done := TaskStatusDone
	task, err = s.UpdateTask(ctx, task.ID, "u_a", TaskPatch{Status: &done})
	if err != nil {
		t.Fatalf("complete task: %v", err)
	}
	if task.CompletedAt == nil {
		t.Fatal("entering done must stamp completed_at")
	}

	title := "Ship it"
	task, err = s.UpdateTask(ctx, task.ID, "u_a", TaskPatch{Title: &title})
	if err != nil {
		t.Fatalf("rename done task: %v", err)
	}
	if task.CompletedAt == nil {
		t.Fatal("editing a done task must keep completed_at")
	}

	reopened := TaskStatusInProgress
	task, err = s.UpdateTask(ctx, task.ID, "u_a", TaskPatch{Status: &reopened})
	if err != nil {
		t.Fatalf("reopen task: %v", err)
	}
	if task.CompletedAt != nil {
		t.Fatal("leaving done must clear completed_at")
	}

	if _, err := s.UpdateTask(ctx, task.ID, "u_b", TaskPatch{Status: &done}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign update error = %v, want ErrNotFound", err)
	}
}

func TestToggleFavoritePostgres(t *testing.T) {
	s, ctx := newTestStore(t)

	if _, err := s.InsertPosts(ctx, []IntelligencePost{{ID: "ip_1", Category: "industry", Title: "News", Tags: []string{"chips"}, PublishedAt: time.Now()}}); err != nil {
		t.Fatalf("insert post: %v", err)
	}

	for i, want := range []bool{true, false, true} {
		got, err := s.ToggleFavorite(ctx, "u_a", "ip_1")
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("toggle %d = %v, want %v", i, got, want)
		}
	}

	posts, err := s.ListPosts(ctx, "u_a", "", 0)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 1 || !posts[0].IsFavorite || posts[0].Tags[0] != "chips" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
	if _, err := s.ToggleFavorite(ctx, "u_a", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("toggle missing error = %v, want ErrNotFound", err)
	}
}

func TestSummaryLockPostgres(t *testing.T) {
	s, ctx := newTestStore(t)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	draft, err := s.UpsertSummary(ctx, DailySummary{ID: "ds_1", UserID: "u_a", SummaryDate: day, Content: "first"})
	if err != nil {
		t.Fatalf("upsert draft: %v", err)
	}
	if _, err := s.UpsertSummary(ctx, DailySummary{ID: "ds_2", UserID: "u_a", SummaryDate: day, Content: "second"}); err != nil {
		t.Fatalf("overwrite draft: %v", err)
	}
	if _, err := s.MarkSummarySent(ctx, draft.ID, "u_a", "u_b"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := s.UpsertSummary(ctx, DailySummary{ID: "ds_3", UserID: "u_a", SummaryDate: day, Content: "third"}); !errors.Is(err, ErrSummaryLocked) {
		t.Fatalf("overwrite sent error = %v, want ErrSummaryLocked", err)
	}
	if err := s.DeleteSummary(ctx, draft.ID, "u_a"); !errors.Is(err, ErrSummaryLocked) {
		t.Fatalf("delete sent error = %v, want ErrSummaryLocked", err)
	}

	received, err := s.ReceivedSummaries(ctx, "u_b")
	if err != nil {
		t.Fatalf("received: %v", err)
	}
	if len(received) != 1 || received[0].Content != "second" || received[0].UserName != "Ada" {
		t.Fatalf("unexpected received summaries: %+v", received)
	}
}

func TestTransferAssetsPostgres(t *testing.T) {
	s, ctx := newTestStore(t)

	if _, err := s.CreateFolder(ctx, Folder{ID: "f_1", UserID: "u_a", Name: "Docs"}); err != nil {
		t.Fatalf("create folder: %v", err)
	}
	if _, err := s.InsertFile(ctx, KnowledgeFile{ID: "kf_1", UserID: "u_a", FolderID: strPtr("f_1"), FileName: "a.txt", FileType: "txt"}); err != nil {
		t.Fatalf("insert file: %v", err)
	}
	for _, task := range []Task{
		{ID: "t_open", UserID: "u_a", Title: "Open", Status: TaskStatusTodo, Priority: TaskPriorityHigh},
		{ID: "t_done", UserID: "u_a", Title: "Done", Status: TaskStatusDone, Priority: TaskPriorityLow},
	} {
		if _, err := s.CreateTask(ctx, task); err != nil {
			t.Fatalf("create task %s: %v", task.ID, err)
		}
	}
	if _, err := s.CreateSession(ctx, ChatSession{ID: "cs_1", UserID: "u_a", Title: "Q"}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := s.InsertMessage(ctx, ChatMessage{ID: "cm_1", SessionID: "cs_1", UserID: "u_a", Role: "user", Content: "hi"}); err != nil {
		t.Fatalf("insert message: %v", err)
	}

	log, err := s.TransferAssets(ctx, HandoverLog{ID: "ho_1", FromUserID: "u_a", ToUserID: "u_b", OperatorID: "u_admin", Note: "leaving"})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if log.FilesTransferred != 1 || log.FoldersTransferred != 1 || log.TasksTransferred != 1 || log.SessionsTransferred != 1 {
		t.Fatalf("unexpected counts: %+v", log)
	}

	after, err := s.UserAssetCounts(ctx, "u_a")
	if err != nil {
		t.Fatalf("count source: %v", err)
	}
	if after.Files != 0 || after.Folders != 0 || after.OpenTasks != 0 || after.Sessions != 0 || after.CompletedTasks != 1 {
		t.Fatalf("source after transfer = %+v, want only the completed task", after)
	}
	moved, err := s.GetFile(ctx, "kf_1", "u_b")
	if err != nil {
		t.Fatalf("moved file: %v", err)
	}
	if moved.FolderID == nil || *moved.FolderID != "f_1" {
		t.Fatal("moved file must keep its folder")
	}

	logs, err := s.ListHandoverLogs(ctx, 10)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 || logs[0].OperatorName != "Root" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestTransferAssetsRollsBackOnFailure(t *testing.T) {
	s, ctx := newTestStore(t)

	if _, err := s.InsertFile(ctx, KnowledgeFile{ID: "kf_1", UserID: "u_a", FileName: "a.txt", FileType: "txt"}); err != nil {
		t.Fatalf("insert file: %v", err)
	}

	// Unknown operator violates the log's foreign key after the updates ran.
	if _, err := s.TransferAssets(ctx, HandoverLog{ID: "ho_1", FromUserID: "u_a", ToUserID: "u_b", OperatorID: "u_missing"}); err == nil {
		t.Fatal("expected transfer to fail")
	}
	if _, err := s.GetFile(ctx, "kf_1", "u_a"); err != nil {
		t.Fatalf("file must still belong to the source: %v", err)
	}
}

func TestHandoverLogImmutablePostgres(t *testing.T) {
	s, ctx := newTestStore(t)

	if _, err := s.TransferAssets(ctx, HandoverLog{ID: "ho_1", FromUserID: "u_a", ToUserID: "u_b", OperatorID: "u_admin"}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	for _, statement := range []string{
		`UPDATE handover_logs SET note='edited' WHERE id='ho_1'`,
		`DELETE FROM handover_logs WHERE id='ho_1'`,
	} {
		_, err := s.DB().ExecContext(ctx, statement)
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			t.Fatalf("%s: expected PostgreSQL error, got %v", statement, err)
		}
		if pgErr.SQLState() != "55000" {
			t.Fatalf("%s: SQLSTATE = %s, want 55000", statement, pgErr.SQLState())
		}
	}
}

func TestFilesByIDsKeepsRequestedOrder(t *testing.T) {
	s, ctx := newTestStore(t)

	for _, id := range []string{"kf_old", "kf_mid", "kf_new"} {
		if _, err := s.InsertFile(ctx, KnowledgeFile{ID: id, UserID: "u_a", FileName: id + ".txt", FileType: "txt", FileSize: 5, Content: "hello"}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if _, err := s.InsertFile(ctx, KnowledgeFile{ID: "kf_foreign", UserID: "u_b", FileName: "b.txt", FileType: "txt", FileSize: 5, Content: "hello"}); err != nil {
		t.Fatalf("insert foreign: %v", err)
	}

	files, err := s.FilesByIDs(ctx, "u_a", []string{"kf_mid", "kf_foreign", "kf_old", "kf_new"})
	if err != nil {
		t.Fatalf("files by ids: %v", err)
	}
	got := make([]string, 0, len(files))
	for _, file := range files {
		got = append(got, file.ID)
	}
	if diff := cmp.Diff([]string{"kf_mid", "kf_old", "kf_new"}, got); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}
