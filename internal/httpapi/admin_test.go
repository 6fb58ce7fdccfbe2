package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func masterCookie(t *testing.T, router http.Handler) *http.Cookie {
	t.Helper()
	return loginAndCookie(t, router, testMasterUsername, testMasterPassword)
}

func TestCreateViewerRejectsShortUsername(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Routes()
	cookie := masterCookie(t, router)

	body, _ := json.Marshal(viewerRequest{Username: "ab", Password: "longenoughpw"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/viewers", bytes.NewReader(body))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for username shorter than 3 chars", rec.Code)
	}
}

func TestCreateViewerRejectsShortPassword(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Routes()
	cookie := masterCookie(t, router)

	body, _ := json.Marshal(viewerRequest{Username: "validname", Password: "short"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/viewers", bytes.NewReader(body))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for password under 8 chars", rec.Code)
	}
}

func TestCreateViewerRejectsUsernameMatchingMaster(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Routes()
	cookie := masterCookie(t, router)

	body, _ := json.Marshal(viewerRequest{Username: testMasterUsername, Password: "longenoughpw"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/viewers", bytes.NewReader(body))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for username colliding with master", rec.Code)
	}
}

func TestCreateViewerSucceedsAndIsListed(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Routes()
	cookie := masterCookie(t, router)

	body, _ := json.Marshal(viewerRequest{Username: "newviewer", Password: "longenoughpw"})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/viewers", bytes.NewReader(body))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/admin/viewers", nil)
	listReq.AddCookie(cookie)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, listReq)

	var viewers []struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(listRec.Body.Bytes(), &viewers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, v := range viewers {
		if v.Username == "newviewer" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected newviewer in list, got %+v", viewers)
	}
}

func TestOpsStatsAllowsMaster(t *testing.T) {
	srv, _ := newTestServer()
	router := srv.Routes()
	cookie := masterCookie(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/ops", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for master caller", rec.Code)
	}
}
