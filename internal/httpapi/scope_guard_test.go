package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tgarchive/viewer/internal/auth"
	"github.com/tgarchive/viewer/internal/model"
)

// setPassword hashes password with a fresh salt into viewer, mirroring
// what CreateViewer's handler does.
func setPassword(t *testing.T, viewer *model.ViewerAccount, password string) {
	t.Helper()
	salt, err := auth.GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	hash, err := auth.HashPassword(password, salt)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	viewer.Salt = salt
	viewer.PasswordHash = hash
}

func loginAndCookie(t *testing.T, router http.Handler, username, password string) *http.Cookie {
	t.Helper()
	rec := doLogin(t, router, username, password)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie returned")
	return nil
}

func TestChatStatsRejectsOutOfScopeChat(t *testing.T) {
	srv, store := newTestServer()

	allowed := []int64{1}
	viewer := &model.ViewerAccount{
		Username:       "scoped",
		IsActive:       true,
		AllowedChatIDs: &allowed,
	}
	setPassword(t, viewer, "viewerpw123")
	store.CreateViewerAccount(context.Background(), viewer)

	store.chats[1] = &model.Chat{ID: 1, Type: model.ChatPrivate}
	store.chats[2] = &model.Chat{ID: 2, Type: model.ChatPrivate}

	router := srv.Routes()
	cookie := loginAndCookie(t, router, "scoped", "viewerpw123")

	req := httptest.NewRequest(http.MethodGet, "/api/chats/2/stats", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status for out-of-scope chat = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestChatStatsAllowsInScopeChat(t *testing.T) {
	srv, store := newTestServer()

	allowed := []int64{1}
	viewer := &model.ViewerAccount{
		Username:       "scoped2",
		IsActive:       true,
		AllowedChatIDs: &allowed,
	}
	setPassword(t, viewer, "viewerpw123")
	store.CreateViewerAccount(context.Background(), viewer)
	store.chats[1] = &model.Chat{ID: 1, Type: model.ChatPrivate}

	router := srv.Routes()
	cookie := loginAndCookie(t, router, "scoped2", "viewerpw123")

	req := httptest.NewRequest(http.MethodGet, "/api/chats/1/stats", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for in-scope chat: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminRoutesRejectNonMasterCaller(t *testing.T) {
	srv, store := newTestServer()

	viewer := &model.ViewerAccount{Username: "plain", IsActive: true}
	setPassword(t, viewer, "viewerpw123")
	store.CreateViewerAccount(context.Background(), viewer)

	router := srv.Routes()
	cookie := loginAndCookie(t, router, "plain", "viewerpw123")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/viewers", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for non-master caller on admin route", rec.Code)
	}
}
