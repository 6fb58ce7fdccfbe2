package httpapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tgarchive/viewer/internal/cursor"
	"github.com/tgarchive/viewer/internal/storage"
)

// GetMessages implements GET /api/chats/{id}/messages.
func (s *Server) GetMessages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatIDFromPathGuarded(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := storage.MessageFilter{
		Search: q.Get("search"),
		Limit:  parseLimit(q.Get("limit"), 50, 200),
		Offset: parseOffset(q.Get("offset")),
	}

	if bd := q.Get("before_date"); bd != "" {
		t, err := cursor.ParseBeforeDate(bd)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid before_date")
			return
		}
		filter.BeforeDate = &t
	}
	if bi := q.Get("before_id"); bi != "" {
		n, err := strconv.ParseInt(bi, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid before_id")
			return
		}
		filter.BeforeID = &n
	}
	if tid := q.Get("topic_id"); tid != "" {
		n, err := strconv.ParseInt(tid, 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid topic_id")
			return
		}
		filter.TopicID = &n
	}

	msgs, err := s.Store.GetMessagesPaginated(r.Context(), chatID, filter)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// GetPinned implements GET /api/chats/{id}/pinned.
func (s *Server) GetPinned(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatIDFromPathGuarded(w, r)
	if !ok {
		return
	}
	msgs, err := s.Store.GetPinned(r.Context(), chatID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load pinned messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// GetTopics implements GET /api/chats/{id}/topics.
func (s *Server) GetTopics(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatIDFromPathGuarded(w, r)
	if !ok {
		return
	}
	topics, err := s.Store.GetTopics(r.Context(), chatID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load topics")
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

// GetMessageByDate implements GET /api/chats/{id}/messages/by-date: it
// interprets `date` in the caller-supplied IANA timezone, falling back to
// the configured default and then UTC, converts to UTC start-of-day, and
// returns the first message with date >= target.
func (s *Server) GetMessageByDate(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatIDFromPathGuarded(w, r)
	if !ok {
		return
	}

	dateStr := r.URL.Query().Get("date")
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	tzName := r.URL.Query().Get("tz")
	if tzName == "" {
		tzName = s.Cfg.ViewerTimezone
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc, err = time.LoadLocation(s.Cfg.ViewerTimezone)
		if err != nil {
			loc = time.UTC
		}
	}

	startOfDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc).UTC()

	msg, err := s.Store.FindMessageByDate(r.Context(), chatID, startOfDay)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to search messages")
		return
	}
	if msg == nil {
		writeError(w, r, http.StatusNotFound, "no message found on or after the given date")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// ExportChat implements GET /api/chats/{id}/export: streams a JSON array
// via the adapter's streaming export iterator without materialising the
// full result set, with an RFC 5987 filename so non-ASCII chat titles are
// preserved.
func (s *Server) ExportChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatIDFromPathGuarded(w, r)
	if !ok {
		return
	}

	chat, err := s.Store.GetChat(r.Context(), chatID)
	if err != nil || chat == nil {
		writeError(w, r, http.StatusNotFound, "chat not found")
		return
	}

	title := fmt.Sprintf("chat_%d", chatID)
	if chat.Title != nil && *chat.Title != "" {
		title = *chat.Title
	}
	filename := fmt.Sprintf("filename*=UTF-8''%s.json", url.PathEscape(title))

	next, err := s.Store.IterMessagesForExport(r.Context(), chatID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to start export")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; "+filename)
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	defer bw.Flush()

	enc := json.NewEncoder(bw)
	bw.WriteByte('[')
	first := true
	for {
		row, more := next()
		if !more {
			break
		}
		if row.Err != nil {
			break
		}
		if !first {
			bw.WriteByte(',')
		}
		first = false
		_ = enc.Encode(row.Message)
	}
	bw.WriteByte(']')
}
