package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/tgarchive/viewer/internal/auth"
	"github.com/tgarchive/viewer/internal/config"
	"github.com/tgarchive/viewer/internal/massop"
	"github.com/tgarchive/viewer/internal/media"
	"github.com/tgarchive/viewer/internal/netutil"
	"github.com/tgarchive/viewer/internal/push"
	"github.com/tgarchive/viewer/internal/realtime"
	"github.com/tgarchive/viewer/internal/storage"
	"github.com/tgarchive/viewer/internal/wsfanout"
)

const contentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self'; font-src 'self' data:; img-src 'self' data: blob:; connect-src 'self' ws: wss:"

// Server holds every dependency HTTP handlers need.
type Server struct {
	Cfg       *config.Config
	Store     storage.Adapter
	Sessions  *auth.SessionStore
	Login     *auth.LoginService
	Protector *massop.Protector
	Bridge    *realtime.Bridge
	Hub       *wsfanout.Hub
	Push      *push.Dispatcher
	Media     *media.Gateway
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

// writeError writes an error response carrying the request's correlation
// ID, matching the shape every error path in the API returns.
func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	correlationID := GetCorrelationID(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{Error: message, CorrelationID: correlationID})
}

func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func parseOffset(q string) int {
	if q == "" {
		return 0
	}
	n, err := strconv.Atoi(q)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Routes builds the full chi router described in spec.md §6.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders(contentSecurityPolicy))
	r.Use(CORS(s.Cfg.AllowedOrigins))

	r.Get("/sw.js", s.ServiceWorker)

	r.Get("/api/auth/check", s.AuthCheck)
	r.Post("/api/login", s.Login_)
	r.Post("/api/logout", s.Logout)

	r.Get("/api/push/config", s.PushConfig)

	r.With(LoopbackOnly(loopbackCheck)).Post("/internal/push", s.InternalPushIngest)

	// The WebSocket handshake resolves auth itself so it can close with
	// code 4001 rather than a plain HTTP 401, so it is not behind
	// RequireAuth.
	r.Get("/ws/updates", s.WebSocketUpdates)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(s.Sessions))

		r.Get("/api/chats", s.ListChats)
		r.Get("/api/chats/{id}/messages", s.GetMessages)
		r.Get("/api/chats/{id}/messages/by-date", s.GetMessageByDate)
		r.Get("/api/chats/{id}/pinned", s.GetPinned)
		r.Get("/api/chats/{id}/topics", s.GetTopics)
		r.Get("/api/chats/{id}/export", s.ExportChat)
		r.Get("/api/chats/{id}/stats", s.GetChatStats)
		r.Get("/api/folders", s.ListFolders)
		r.Get("/api/archived/count", s.ArchivedCount)
		r.Get("/api/stats", s.GetStats)
		r.With(RequireMaster).Post("/api/stats/refresh", s.RefreshStats)

		r.Post("/api/push/subscribe", s.PushSubscribe)
		r.Post("/api/push/unsubscribe", s.PushUnsubscribe)

		r.Get("/media/*", s.ServeMedia)

		r.Group(func(r chi.Router) {
			r.Use(RequireMaster)

			r.Get("/api/admin/viewers", s.ListViewers)
			r.Post("/api/admin/viewers", s.CreateViewer)
			r.Put("/api/admin/viewers/{id}", s.UpdateViewer)
			r.Delete("/api/admin/viewers/{id}", s.DeleteViewer)
			r.Get("/api/admin/audit", s.ListAudit)
			r.Get("/api/admin/chats", s.ListChatsForAdmin)
			r.Get("/api/admin/ops", s.GetOpsStats)
		})
	})

	log.Info().Msg("HTTP routes registered")
	return r
}

// loopbackCheck returns a request predicate restricting /internal/push to
// private/loopback source addresses, wired from the resolved client IP.
func loopbackCheck(r *http.Request) bool {
	return netutil.IsPrivateOrLoopback(netutil.ClientIP(r))
}
