package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"workhub/api/internal/ai"
	"workhub/api/internal/email"
	"workhub/api/internal/export"
	"workhub/api/internal/intel"
	"workhub/api/internal/store"
)

type fakeScheduler struct {
	status    intel.Status
	triggerFn func(context.Context) ([]store.IntelligencePost, error)
}

func (f *fakeScheduler) Status() intel.Status { return f.status }

func (f *fakeScheduler) Trigger(ctx context.Context) ([]store.IntelligencePost, error) {
	if f.triggerFn != nil {
		return f.triggerFn(ctx)
	}
	return nil, nil
}

type fakeMailer struct {
	configured bool
	sent       []email.SummaryMail
	err        error
}

func (f *fakeMailer) IsConfigured() bool { return f.configured }

func (f *fakeMailer) SendSummary(mail email.SummaryMail) error {
	f.sent = append(f.sent, mail)
	return f.err
}

type fakeExporter struct {
	docs []export.SummaryDocument
}

func (f *fakeExporter) ExportSummary(_ context.Context, doc export.SummaryDocument, format export.Format) (*export.Result, error) {
	f.docs = append(f.docs, doc)
	return &export.Result{Data: []byte("%PDF-1.7"), Filename: "daily-summary.pdf", MimeType: "application/pdf"}, nil
}

func TestCreateTaskAppliesDefaults(t *testing.T) {
	var created store.Task
	fs := &fakeStore{
		createTaskFn: func(_ context.Context, task store.Task) (store.Task, error) {
			created = task
			return task, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, svc, "user-1", http.MethodPost, "/api/tasks", bytes.NewBufferString(`{"title":"  Draft budget  ","dueDate":"2026-03-10"}`)))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if created.Title != "Draft budget" || created.Status != store.TaskStatusTodo || created.Priority != store.TaskPriorityMedium {
		t.Fatalf("created = %+v", created)
	}
	if created.UserID != "user-1" || created.AssignedBy != nil {
		t.Fatalf("owner = %q assignedBy = %v", created.UserID, created.AssignedBy)
	}
	if payload := decodeJSON(t, rr); payload["dueDate"] != "2026-03-10" {
		t.Fatalf("dueDate = %v", payload["dueDate"])
	}
}

func TestCreateTaskValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "missing title", body: `{"title":"   "}`},
		{name: "bad status", body: `{"title":"x","status":"blocked"}`},
		{name: "bad priority", body: `{"title":"x","priority":"urgent"}`},
		{name: "bad due date", body: `{"title":"x","dueDate":"03/10/2026"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(&fakeStore{})
			server := NewHTTPServer(svc, "*", nil)
			rr := httptest.NewRecorder()
			server.Handler().ServeHTTP(rr, authedRequest(t, svc, "user-1", http.MethodPost, "/api/tasks", bytes.NewBufferString(tc.body)))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestCreateTaskAssignment(t *testing.T) {
	manager := "lead-1"
	cases := []struct {
		name       string
		session    Session
		superior   *string
		wantErr    bool
		wantAssign bool
	}{
		{name: "admin assigns anyone", session: adminSession(), wantAssign: true},
		{name: "superior assigns report", session: userSession("lead-1"), superior: &manager, wantAssign: true},
		{name: "peer cannot assign", session: userSession("peer-1"), superior: &manager, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var created store.Task
			fs := &fakeStore{
				getUserFn: func(_ context.Context, id string) (store.User, error) {
					return store.User{ID: id, SuperiorID: tc.superior}, nil
				},
				createTaskFn: func(_ context.Context, task store.Task) (store.Task, error) {
					created = task
					return task, nil
				},
			}
			svc := newTestService(fs)
			title := "Review contract"
			assignee := "report-1"

			_, err := svc.CreateTask(context.Background(), tc.session, TaskInput{Title: &title, AssigneeID: &assignee})
			if tc.wantErr {
				var domainErr *DomainError
				if !errors.As(err, &domainErr) || domainErr.Status != http.StatusForbidden {
					t.Fatalf("err = %v, want forbidden", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateTask error = %v", err)
			}
			if created.UserID != "report-1" || created.AssignedBy == nil || *created.AssignedBy != tc.session.UserID {
				t.Fatalf("created = %+v", created)
			}
		})
	}
}

func TestUpdateTaskEmptyDueDateClears(t *testing.T) {
	var patch store.TaskPatch
	fs := &fakeStore{
		updateTaskFn: func(_ context.Context, id, userID string, p store.TaskPatch) (store.Task, error) {
			patch = p
			return store.Task{ID: id, UserID: userID, Status: store.TaskStatusDone}, nil
		},
	}
	svc := newTestService(fs)
	done := store.TaskStatusDone
	empty := ""

	if _, err := svc.UpdateTask(context.Background(), "tsk-1", "user-1", TaskInput{Status: &done, DueDate: &empty}); err != nil {
		t.Fatalf("UpdateTask error = %v", err)
	}
	if !patch.ClearDueDate || patch.DueDate != nil || patch.Status == nil || *patch.Status != done {
		t.Fatalf("patch = %+v", patch)
	}
}

func TestToggleFavoriteAlternates(t *testing.T) {
	favorites := map[string]bool{}
	fs := &fakeStore{
		toggleFavoriteFn: func(_ context.Context, userID, intelID string) (bool, error) {
			key := userID + "/" + intelID
			favorites[key] = !favorites[key]
			return favorites[key], nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*", nil)

	got := make([]any, 0, 3)
	for range 3 {
		rr := httptest.NewRecorder()
		server.Handler().ServeHTTP(rr, authedRequest(t, svc, "user-1", http.MethodPost, "/api/intelligence-posts/int-1/favorite", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		got = append(got, decodeJSON(t, rr)["isFavorite"])
	}
	if diff := cmp.Diff([]any{true, false, true}, got); diff != "" {
		t.Fatalf("isFavorite sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestListPostsRejectsUnknownCategory(t *testing.T) {
	svc := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "*", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, svc, "user-1", http.MethodGet, "/api/intelligence-posts?category=gossip", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestTriggerIntelRequiresAdmin(t *testing.T) {
	triggered := 0
	scheduler := &fakeScheduler{
		triggerFn: func(context.Context) ([]store.IntelligencePost, error) {
			triggered++
			return []store.IntelligencePost{{ID: "int-1", Category: intel.CategoryIndustry}}, nil
		},
	}
	svc := newTestServiceWithDeps(Deps{Store: &fakeStore{}, Scheduler: scheduler})
	server := NewHTTPServer(svc, "*", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, svc, "user-1", http.MethodPost, "/api/intelligence-scheduler/trigger", nil))
	if rr.Code != http.StatusForbidden || triggered != 0 {
		t.Fatalf("user: status %d triggered %d", rr.Code, triggered)
	}

	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, svc, "admin-1", http.MethodPost, "/api/intelligence-scheduler/trigger", nil))
	if rr.Code != http.StatusOK || triggered != 1 {
		t.Fatalf("admin: status %d triggered %d", rr.Code, triggered)
	}
	if count := decodeJSON(t, rr)["count"]; count != float64(1) {
		t.Fatalf("count = %v", count)
	}
}

func TestTriggerIntelGenerationErrorMapsTo500(t *testing.T) {
	scheduler := &fakeScheduler{
		triggerFn: func(context.Context) ([]store.IntelligencePost, error) {
			return nil, &intel.GenerationError{Reason: "response was not valid JSON"}
		},
	}
	svc := newTestServiceWithDeps(Deps{Store: &fakeStore{}, Scheduler: scheduler})
	server := NewHTTPServer(svc, "*", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, svc, "admin-1", http.MethodPost, "/api/intelligence-scheduler/trigger", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if code := decodeJSON(t, rr)["code"]; code != "GENERATION_ERROR" {
		t.Fatalf("code = %v", code)
	}
}

func TestSchedulerStatusEndpoint(t *testing.T) {
	next := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	scheduler := &fakeScheduler{status: intel.Status{Running: true, State: intel.StateScheduled, Hour: 12, NextRunAt: &next}}
	svc := newTestServiceWithDeps(Deps{Store: &fakeStore{}, Scheduler: scheduler})
	server := NewHTTPServer(svc, "*", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, svc, "user-1", http.MethodGet, "/api/intelligence-scheduler/status", nil))
	payload := decodeJSON(t, rr)
	if payload["running"] != true || payload["state"] != string(intel.StateScheduled) {
		t.Fatalf("status = %v", payload)
	}
}

func TestGenerateSummaryStreamsAndSavesDraft(t *testing.T) {
	var saved store.DailySummary
	var prompt string
	fs := &fakeStore{
		tasksTouchedOnFn: func(context.Context, string, time.Time) ([]store.Task, error) {
			return []store.Task{{Title: "Ship release notes", Status: store.TaskStatusDone, Priority: "high"}}, nil
		},
		upsertSummaryFn: func(_ context.Context, summary store.DailySummary) (store.DailySummary, error) {
			saved = summary
			summary.Status = store.SummaryStatusDraft
			return summary, nil
		},
	}
	model := &fakeModel{
		streamFn: func(ctx context.Context, req ai.Request, onChunk func(string) error) (string, error) {
			prompt = req.Messages[0].Content
			return chunkedReply("## Completed\n", "- Ship release notes\n")(ctx, req, onChunk)
		},
	}
	svc := newTestServiceWithDeps(Deps{Store: fs, Model: model})
	server := NewHTTPServer(svc, "*", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, svc, "user-1", http.MethodPost, "/api/daily-summary", bytes.NewBufferString(`{"date":"2026-03-03","notes":"Met the auditors"}`)))

	events := sseEvents(t, rr.Body.String())
	if len(events) != 3 || events[2]["done"] != true {
		t.Fatalf("events = %v", events)
	}
	if saved.SummaryDate.Format(dateLayout) != "2026-03-03" || !strings.HasPrefix(saved.Content, "## Completed") {
		t.Fatalf("saved = %+v", saved)
	}
	for _, want := range []string{"2026-03-03", "Ship release notes", "Met the auditors"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestGenerateSummaryForSentDayIsLocked(t *testing.T) {
	fs := &fakeStore{
		listSummariesFn: func(context.Context, string) ([]store.DailySummary, error) {
			return []store.DailySummary{{ID: "sum-1", SummaryDate: testNow, Status: store.SummaryStatusSent}}, nil
		},
	}
	streamed := false
	model := &fakeModel{
		streamFn: func(context.Context, ai.Request, func(string) error) (string, error) {
			streamed = true
			return "", nil
		},
	}
	svc := newTestServiceWithDeps(Deps{Store: fs, Model: model})
	server := NewHTTPServer(svc, "*", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, svc, "user-1", http.MethodPost, "/api/daily-summary", bytes.NewBufferString(`{}`)))

	if rr.Code != http.StatusConflict || streamed {
		t.Fatalf("expected 409 without model call, got %d streamed=%v", rr.Code, streamed)
	}
	if code := decodeJSON(t, rr)["code"]; code != "SUMMARY_LOCKED" {
		t.Fatalf("code = %v", code)
	}
}

func TestSendSummaryRequiresSuperior(t *testing.T) {
	marked := false
	fs := &fakeStore{
		markSummarySentFn: func(context.Context, string, string, string) (store.DailySummary, error) {
			marked = true
			return store.DailySummary{}, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, svc, "user-1", http.MethodPost, "/api/daily-summary/sum-1/send", nil))

	if rr.Code != http.StatusBadRequest || marked {
		t.Fatalf("expected 400 without send, got %d marked=%v", rr.Code, marked)
	}
}

func TestSendSummaryMailsSuperior(t *testing.T) {
	boss := "boss-1"
	fs := &fakeStore{
		getUserFn: func(_ context.Context, id string) (store.User, error) {
			if id == "boss-1" {
				return store.User{ID: id, DisplayName: "Boss", Email: "boss@example.com"}, nil
			}
			return store.User{ID: id, DisplayName: "Avery", SuperiorID: &boss}, nil
		},
		markSummarySentFn: func(_ context.Context, id, userID, recipientID string) (store.DailySummary, error) {
			return store.DailySummary{ID: id, UserID: userID, SummaryDate: testNow, Content: "**Done**", Status: store.SummaryStatusSent, SentTo: &recipientID}, nil
		},
	}
	mail := &fakeMailer{configured: true}
	svc := newTestServiceWithDeps(Deps{Store: fs, Mail: mail})

	payload, err := svc.SendSummary(context.Background(), "sum-1", "user-1")
	if err != nil {
		t.Fatalf("SendSummary error = %v", err)
	}
	if payload["status"] != store.SummaryStatusSent {
		t.Fatalf("payload = %v", payload)
	}
	if len(mail.sent) != 1 || mail.sent[0].To != "boss@example.com" || !strings.Contains(string(mail.sent[0].BodyHTML), "<strong>Done</strong>") {
		t.Fatalf("sent = %+v", mail.sent)
	}
}

func TestSendSummaryMailFailureStillSends(t *testing.T) {
	boss := "boss-1"
	fs := &fakeStore{
		getUserFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, SuperiorID: &boss}, nil
		},
	}
	svc := newTestServiceWithDeps(Deps{Store: fs, Mail: &fakeMailer{configured: true, err: errors.New("smtp down")}})

	if _, err := svc.SendSummary(context.Background(), "sum-1", "user-1"); err != nil {
		t.Fatalf("mail failure must not fail the send: %v", err)
	}
}

func TestDeleteSentSummaryIsLocked(t *testing.T) {
	fs := &fakeStore{
		deleteSummaryFn: func(context.Context, string, string) error { return store.ErrSummaryLocked },
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, svc, "user-1", http.MethodDelete, "/api/daily-summary/sum-1", nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestExportSummaryAccess(t *testing.T) {
	recipient := "boss-1"
	fs := &fakeStore{
		getSummaryFn: func(_ context.Context, id string) (store.DailySummary, error) {
			return store.DailySummary{ID: id, UserID: "user-1", UserName: "Avery", SummaryDate: testNow, Status: store.SummaryStatusSent, SentTo: &recipient, Content: "# Day"}, nil
		},
	}
	cases := []struct {
		userID     string
		format     string
		wantStatus int
	}{
		{userID: "user-1", format: "pdf", wantStatus: http.StatusOK},
		{userID: "boss-1", format: "", wantStatus: http.StatusOK},
		{userID: "stranger-1", format: "pdf", wantStatus: http.StatusNotFound},
		{userID: "user-1", format: "odt", wantStatus: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.userID+"/"+tc.format, func(t *testing.T) {
			exporter := &fakeExporter{}
			svc := newTestServiceWithDeps(Deps{Store: fs, Exporter: exporter})
			server := NewHTTPServer(svc, "*", nil)

			rr := httptest.NewRecorder()
			server.Handler().ServeHTTP(rr, authedRequest(t, svc, tc.userID, http.MethodGet, "/api/daily-summary/sum-1/export?format="+tc.format, nil))
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d body=%s", tc.wantStatus, rr.Code, rr.Body.String())
			}
			if tc.wantStatus != http.StatusOK {
				return
			}
			if rr.Header().Get("Content-Type") != "application/pdf" || !strings.Contains(rr.Header().Get("Content-Disposition"), "daily-summary.pdf") {
				t.Fatalf("headers = %v", rr.Header())
			}
			if len(exporter.docs) != 1 || exporter.docs[0].Author != "Avery" {
				t.Fatalf("exported = %+v", exporter.docs)
			}
		})
	}
}

func TestDashboardAggregates(t *testing.T) {
	files := make([]store.KnowledgeFile, 7)
	for i := range files {
		files[i] = store.KnowledgeFile{ID: "kf-" + string(rune('a'+i))}
	}
	var postLimit int
	fs := &fakeStore{
		listFilesFn: func(context.Context, string, *string) ([]store.KnowledgeFile, error) { return files, nil },
		listFoldersFn: func(context.Context, string) ([]store.Folder, error) {
			return []store.Folder{{ID: "f1"}, {ID: "f2"}}, nil
		},
		listTasksFn: func(context.Context, string) ([]store.Task, error) {
			return []store.Task{
				{ID: "t1", Status: store.TaskStatusTodo},
				{ID: "t2", Status: store.TaskStatusInProgress},
				{ID: "t3", Status: store.TaskStatusDone},
				{ID: "t4", Status: store.TaskStatusTodo},
			}, nil
		},
		listPostsFn: func(_ context.Context, _ string, _ string, limit int) ([]store.IntelligencePost, error) {
			postLimit = limit
			return make([]store.IntelligencePost, limit), nil
		},
		countPostsFn:     func(context.Context) (int, error) { return 250, nil },
		countFavoritesFn: func(context.Context, string) (int, error) { return 2, nil },
	}
	svc := newTestService(fs)

	payload, err := svc.Dashboard(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Dashboard error = %v", err)
	}
	counts := payload["counts"].(map[string]any)
	if counts["files"] != 7 || counts["folders"] != 2 || counts["openTasks"] != 3 || counts["posts"] != 250 || counts["favorites"] != 2 {
		t.Fatalf("counts = %v", counts)
	}
	byStatus := counts["tasksByStatus"].(map[string]int)
	if diff := cmp.Diff(map[string]int{"todo": 2, "in_progress": 1, "done": 1}, byStatus); diff != "" {
		t.Fatalf("tasksByStatus mismatch (-want +got):\n%s", diff)
	}
	if got := len(payload["recentFiles"].([]map[string]any)); got != dashboardRecentFiles {
		t.Fatalf("recentFiles = %d", got)
	}
	if got := len(payload["recentPosts"].([]map[string]any)); got != dashboardRecentPosts || postLimit != dashboardRecentPosts {
		t.Fatalf("recentPosts = %d, fetched with limit %d", got, postLimit)
	}
	if got := len(payload["openTasks"].([]map[string]any)); got != 3 {
		t.Fatalf("openTasks = %d", got)
	}
}

func TestDashboardPropagatesLoadError(t *testing.T) {
	fs := &fakeStore{
		listTasksFn: func(context.Context, string) ([]store.Task, error) {
			return nil, errors.New("connection reset")
		},
	}
	if _, err := newTestService(fs).Dashboard(context.Background(), "user-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestActivityLogsRejectsBadDate(t *testing.T) {
	svc := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "*", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, authedRequest(t, svc, "user-1", http.MethodGet, "/api/activity-logs?date=yesterday", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
