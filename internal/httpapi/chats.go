package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tgarchive/viewer/internal/scope"
	"github.com/tgarchive/viewer/internal/storage"
)

type chatsResponse struct {
	Chats   []chatJSON `json:"chats"`
	Total   int64      `json:"total"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
	HasMore bool       `json:"has_more"`
}

type chatJSON struct {
	ID              int64   `json:"id"`
	Type            string  `json:"type"`
	Title           *string `json:"title,omitempty"`
	Username        *string `json:"username,omitempty"`
	Archived        bool    `json:"archived"`
	FolderID        *int    `json:"folder_id,omitempty"`
	LastMessageDate string  `json:"last_message_date"`
}

// ListChats implements GET /api/chats.
func (s *Server) ListChats(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	q := r.URL.Query()

	filter := storage.ChatFilter{
		Search: q.Get("search"),
		Scope:  caller.Scope,
	}
	if v := q.Get("archived"); v != "" {
		b := v == "true" || v == "1"
		filter.Archived = &b
	}
	if v := q.Get("folder_id"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.FolderID = &n
		}
	}

	limit := parseLimit(q.Get("limit"), 50, 200)
	offset := parseOffset(q.Get("offset"))

	chats, err := s.Store.ListChats(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list chats")
		return
	}
	total, err := s.Store.CountChats(r.Context(), filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to count chats")
		return
	}

	out := make([]chatJSON, len(chats))
	for i, c := range chats {
		out[i] = chatJSON{
			ID:              c.ID,
			Type:            string(c.Type),
			Title:           c.Title,
			Username:        c.Username,
			Archived:        c.Archived,
			FolderID:        c.FolderID,
			LastMessageDate: c.LastMessageDate.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	writeJSON(w, http.StatusOK, chatsResponse{
		Chats:   out,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+len(chats)) < total,
	})
}

// ListFolders implements GET /api/folders.
func (s *Server) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.Store.GetFolders(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list folders")
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

// ArchivedCount implements GET /api/archived/count.
func (s *Server) ArchivedCount(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	archived := true
	total, err := s.Store.CountChats(r.Context(), storage.ChatFilter{Archived: &archived, Scope: caller.Scope})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to count archived chats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": total})
}

// ListChatsForAdmin implements GET /api/admin/chats: an unscoped id/title/
// type listing used by admin pickers (allowed_chat_ids entry, etc).
func (s *Server) ListChatsForAdmin(w http.ResponseWriter, r *http.Request) {
	chats, err := s.Store.ListChats(r.Context(), storage.ChatFilter{}, 10000, 0)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to list chats")
		return
	}
	out := make([]chatJSON, len(chats))
	for i, c := range chats {
		out[i] = chatJSON{ID: c.ID, Type: string(c.Type), Title: c.Title, Username: c.Username}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetChatStats implements GET /api/chats/{id}/stats.
func (s *Server) GetChatStats(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatIDFromPathGuarded(w, r)
	if !ok {
		return
	}
	stats, err := s.Store.GetChatStats(r.Context(), chatID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to compute chat stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// chatIDFromPathGuarded parses the {id} path param and enforces scope
// (403 if out of scope) before any storage call, per spec.md §4.8's
// "Guard" rule for single-chat operations.
func (s *Server) chatIDFromPathGuarded(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "id")
	chatID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid chat id")
		return 0, false
	}

	caller, _ := CallerFromContext(r.Context())
	if !scope.Contains(caller.Scope, chatID) {
		writeError(w, r, http.StatusForbidden, "chat not in scope")
		return 0, false
	}
	return chatID, true
}
