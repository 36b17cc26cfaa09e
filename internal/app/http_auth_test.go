package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"workhub/api/internal/auth"
	"workhub/api/internal/store"
)

type fakeLogin struct {
	exchangeFn func(context.Context, string) (auth.Identity, error)
}

func (f *fakeLogin) AuthCodeURL(state string) string {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeLogin) Exchange(ctx context.Context, code string) (auth.Identity, error) {
	if f.exchangeFn != nil {
		return f.exchangeFn(ctx, code)
	}
	return auth.Identity{Subject: "sub-1", Email: "avery@example.com", Name: "Avery"}, nil
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestLoginWithoutProviderIsUnavailable(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLoginCallbackIssuesSessionCookie(t *testing.T) {
	var upserted store.User
	fs := &fakeStore{
		upsertUserFn: func(_ context.Context, user store.User) (store.User, error) {
			upserted = user
			return user, nil
		},
	}
	svc := newTestServiceWithDeps(Deps{Store: fs, Login: &fakeLogin{}})
	svc.cfg.AdminEmails = []string{"avery@example.com"}
	server := NewHTTPServer(svc, "http://localhost:5173", nil)

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
	if rr.Code != http.StatusFound {
		t.Fatalf("login: expected 302, got %d", rr.Code)
	}
	stateCookie := cookieNamed(rr, oauthStateCookie)
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("expected oauth state cookie")
	}
	if !strings.Contains(rr.Header().Get("Location"), url.QueryEscape(stateCookie.Value)) {
		t.Fatalf("redirect %q does not carry the state", rr.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc&state="+url.QueryEscape(stateCookie.Value), nil)
	req.AddCookie(stateCookie)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("callback: expected 302, got %d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Location") != "http://localhost:5173" {
		t.Fatalf("Location = %q", rr.Header().Get("Location"))
	}
	sessionCookieValue := cookieNamed(rr, sessionCookie)
	if sessionCookieValue == nil || sessionCookieValue.Value == "" || !sessionCookieValue.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %+v", sessionCookieValue)
	}
	if upserted.ExternalID != "sub-1" || upserted.Role != "admin" || upserted.DisplayName != "Avery" {
		t.Fatalf("upserted user = %+v", upserted)
	}
}

func TestLoginCallbackRejectsMismatchedState(t *testing.T) {
	svc := newTestServiceWithDeps(Deps{Store: &fakeStore{}, Login: &fakeLogin{}})
	server := NewHTTPServer(svc, "*", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "something-else"})
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["code"] != "INVALID_STATE" {
		t.Fatalf("code = %v, want INVALID_STATE", payload["code"])
	}
}

func TestLoginCallbackExchangeFailure(t *testing.T) {
	login := &fakeLogin{
		exchangeFn: func(context.Context, string) (auth.Identity, error) {
			return auth.Identity{}, errors.New("bad code")
		},
	}
	svc := newTestServiceWithDeps(Deps{Store: &fakeStore{}, Login: login})
	server := NewHTTPServer(svc, "*", nil)

	state, err := auth.IssueState([]byte(svc.cfg.SessionSecret), svc.now(), oauthStateTTL)
	if err != nil {
		t.Fatalf("issue state: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=abc&state="+url.QueryEscape(state), nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: state})
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestSessionAcceptsCookieAndBearer(t *testing.T) {
	svc := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "*", nil)
	token := tokenFor(t, svc, "user-1")

	byCookie := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	byCookie.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	byBearer := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	byBearer.Header.Set("Authorization", "Bearer "+token)

	for name, req := range map[string]*http.Request{"cookie": byCookie, "bearer": byBearer} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			server.Handler().ServeHTTP(rr, req)
			var payload map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
				t.Fatalf("parse response: %v", err)
			}
			if payload["authenticated"] != true {
				t.Fatalf("expected authenticated session, got %v", payload)
			}
			user, _ := payload["user"].(map[string]any)
			if user["id"] != "user-1" {
				t.Fatalf("user = %v", user)
			}
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*", nil)
	token := tokenFor(t, svc, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rr.Code)
	}
	if cleared := cookieNamed(rr, sessionCookie); cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected session cookie to be cleared, got %+v", cleared)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token: expected 401, got %d", rr.Code)
	}
}
