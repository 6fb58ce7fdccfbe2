package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doLogin(t *testing.T, router http.Handler, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(loginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLoginSucceedsForMasterAndSetsCookie(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Routes()

	rec := doLogin(t, router, testMasterUsername, testMasterPassword)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp authCheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Authenticated || resp.Role != "master" {
		t.Errorf("response = %+v, want authenticated master", resp)
	}

	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected viewer_auth session cookie to be set")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Routes()

	rec := doLogin(t, router, testMasterUsername, "wrong-password")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("login status = %d, want 401", rec.Code)
	}
}

func TestAuthCheckReportsUnauthenticatedWithoutCookie(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp authCheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Authenticated {
		t.Error("expected Authenticated=false with no session cookie")
	}
}

func TestProtectedRouteRejectsMissingSession(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestProtectedRouteAcceptsSessionFromLogin(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Routes()

	loginRec := doLogin(t, router, testMasterUsername, testMasterPassword)
	var cookie *http.Cookie
	for _, c := range loginRec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected session cookie from login")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}
