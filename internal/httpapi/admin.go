package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/tgarchive/viewer/internal/auth"
	"github.com/tgarchive/viewer/internal/model"
	"github.com/tgarchive/viewer/internal/netutil"
)

// ListViewers implements GET /api/admin/viewers.
func (s *Server) ListViewers(w http.ResponseWriter, r *http.Request) {
	viewers, err := s.Store.ListViewerAccounts(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list viewer accounts")
		return
	}
	writeJSON(w, http.StatusOK, viewers)
}

type viewerRequest struct {
	Username       string   `json:"username"`
	Password       string   `json:"password,omitempty"`
	AllowedChatIDs *[]int64 `json:"allowed_chat_ids"`
	IsActive       *bool    `json:"is_active"`
}

// CreateViewer implements POST /api/admin/viewers, validating username
// length, password length, and that the username does not collide
// case-insensitively with the master username.
func (s *Server) CreateViewer(w http.ResponseWriter, r *http.Request) {
	var req viewerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validateUsername(req.Username); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	salt, err := auth.GenerateSalt()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to generate salt")
		return
	}
	hash, err := auth.HashPassword(req.Password, salt)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to hash password")
		return
	}

	caller, _ := CallerFromContext(r.Context())
	now := time.Now().UTC()
	v := &model.ViewerAccount{
		Username:       req.Username,
		PasswordHash:   hash,
		Salt:           salt,
		AllowedChatIDs: req.AllowedChatIDs,
		IsActive:       true,
		CreatedBy:      caller.Username,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}

	if err := s.Store.CreateViewerAccount(r.Context(), v); err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to create viewer account")
		return
	}

	s.auditAdmin(r, "viewer_created", caller)
	writeJSON(w, http.StatusCreated, v)
}

// UpdateViewer implements PUT /api/admin/viewers/{id}. Any change
// invalidates every existing session for that username.
func (s *Server) UpdateViewer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid viewer id")
		return
	}

	existing, err := s.Store.GetViewerAccount(r.Context(), id)
	if err != nil || existing == nil {
		writeError(w, r, http.StatusNotFound, "viewer account not found")
		return
	}

	var req viewerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username != "" && req.Username != existing.Username {
		if err := s.validateUsername(req.Username); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		existing.Username = req.Username
	}
	if req.Password != "" {
		if len(req.Password) < 8 {
			writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
			return
		}
		salt, err := auth.GenerateSalt()
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "failed to generate salt")
			return
		}
		hash, err := auth.HashPassword(req.Password, salt)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "failed to hash password")
			return
		}
		existing.Salt = salt
		existing.PasswordHash = hash
	}
	if req.AllowedChatIDs != nil {
		existing.AllowedChatIDs = req.AllowedChatIDs
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	existing.UpdatedAt = time.Now().UTC()

	if err := s.Store.UpdateViewerAccount(r.Context(), existing); err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to update viewer account")
		return
	}

	s.Sessions.DeleteUser(existing.Username)

	caller, _ := CallerFromContext(r.Context())
	s.auditAdmin(r, "viewer_updated:"+existing.Username, caller)
	writeJSON(w, http.StatusOK, existing)
}

// DeleteViewer implements DELETE /api/admin/viewers/{id}. Sessions are
// invalidated before the row is removed.
func (s *Server) DeleteViewer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid viewer id")
		return
	}

	existing, err := s.Store.GetViewerAccount(r.Context(), id)
	if err != nil || existing == nil {
		writeError(w, r, http.StatusNotFound, "viewer account not found")
		return
	}

	s.Sessions.DeleteUser(existing.Username)

	if err := s.Store.DeleteViewerAccount(r.Context(), id); err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to delete viewer account")
		return
	}

	caller, _ := CallerFromContext(r.Context())
	s.auditAdmin(r, "viewer_deleted:"+existing.Username, caller)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListAudit implements GET /api/admin/audit with paging and optional
// username filtering.
func (s *Server) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"), 50, 500)
	offset := parseOffset(q.Get("offset"))

	entries, total, err := s.Store.GetAuditLogs(r.Context(), q.Get("username"), limit, offset)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load audit log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) validateUsername(username string) error {
	if len(username) < 3 {
		return errInvalidViewer("username must be at least 3 characters")
	}
	if strings.EqualFold(username, s.Cfg.MasterUsername) {
		return errInvalidViewer("username must not match the master account")
	}
	return nil
}

type errInvalidViewer string

func (e errInvalidViewer) Error() string { return string(e) }

func (s *Server) auditAdmin(r *http.Request, action string, caller Caller) {
	entry := model.AuditEntry{
		Username:  caller.Username,
		Role:      caller.Role,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
	ip := netutil.ClientIP(r)
	entry.IPAddress = &ip
	if err := s.Store.CreateAuditLog(r.Context(), entry); err != nil {
		log.Error().Err(err).Str("action", action).Msg("failed to write admin audit log entry")
	}
}
