package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/tgarchive/viewer/internal/apperr"
	"github.com/tgarchive/viewer/internal/netutil"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authCheckResponse struct {
	Authenticated bool   `json:"authenticated"`
	AuthRequired  bool   `json:"auth_required"`
	Role          string `json:"role,omitempty"`
	Username      string `json:"username,omitempty"`
}

// AuthCheck implements GET /api/auth/check.
func (s *Server) AuthCheck(w http.ResponseWriter, r *http.Request) {
	resp := authCheckResponse{AuthRequired: true}

	if token, ok := sessionToken(r); ok {
		if sess, ok := s.Sessions.Validate(token); ok {
			resp.Authenticated = true
			resp.Role = string(sess.Role)
			resp.Username = sess.Username
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Login_ implements POST /api/login. Named with a trailing underscore to
// avoid colliding with the Server.Login field (the *auth.LoginService).
func (s *Server) Login_(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	ip := netutil.ClientIP(r)
	result, err := s.Login.Login(r.Context(), req.Username, req.Password, ip, r.UserAgent())
	if err != nil {
		appErr := apperr.As(err, "login failed")
		writeError(w, r, apperr.StatusFor(appErr.Kind), appErr.Message)
		return
	}

	setSessionCookie(w, r, result.Session.Token, int(s.Cfg.AuthSessionSeconds), string(s.Cfg.SecureCookies))
	writeJSON(w, http.StatusOK, authCheckResponse{
		Authenticated: true,
		AuthRequired:  true,
		Role:          string(result.Session.Role),
		Username:      result.Session.Username,
	})
}

// Logout implements POST /api/logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := sessionToken(r); ok {
		s.Login.Logout(r.Context(), token, netutil.ClientIP(r), r.UserAgent())
	}
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
