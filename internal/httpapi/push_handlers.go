package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tgarchive/viewer/internal/model"
	"github.com/tgarchive/viewer/internal/storage"
)

type pushConfigResponse struct {
	Mode            string `json:"mode"`
	Enabled         bool   `json:"enabled"`
	VAPIDPublicKey  string `json:"vapid_public_key,omitempty"`
}

// PushConfig implements GET /api/push/config.
func (s *Server) PushConfig(w http.ResponseWriter, r *http.Request) {
	resp := pushConfigResponse{Mode: string(s.Cfg.PushNotifications)}
	if s.Push != nil && s.Push.Enabled() {
		resp.Enabled = true
		resp.VAPIDPublicKey = s.Cfg.VAPIDPublicKey
	}
	writeJSON(w, http.StatusOK, resp)
}

type pushSubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// PushSubscribe implements POST /api/push/subscribe: stores the endpoint,
// echoing the subscribing viewer's resolved scope at subscription time.
func (s *Server) PushSubscribe(w http.ResponseWriter, r *http.Request) {
	var req pushSubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		writeError(w, r, http.StatusBadRequest, "invalid subscription body")
		return
	}

	caller, _ := CallerFromContext(r.Context())
	username := caller.Username

	sub := model.PushSubscription{
		Endpoint:       req.Endpoint,
		P256dh:         req.Keys.P256dh,
		AuthSecret:     req.Keys.Auth,
		Username:       &username,
		AllowedChatIDs: caller.Scope,
		CreatedAt:      time.Now().UTC(),
	}
	if ua := r.UserAgent(); ua != "" {
		sub.UserAgent = &ua
	}

	if err := s.Store.UpsertPushSubscription(r.Context(), sub); err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to store subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type pushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// PushUnsubscribe implements POST /api/push/unsubscribe.
func (s *Server) PushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req pushUnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.Store.DeletePushSubscription(r.Context(), req.Endpoint); err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to remove subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type internalPushPayload struct {
	Type   string         `json:"type"`
	ChatID int64          `json:"chat_id"`
	Data   map[string]any `json:"data"`
}

// InternalPushIngest implements POST /internal/push: the embedded
// (SQLite) backend's loop-back change-event ingest endpoint. Guarded by
// the LoopbackOnly middleware at the route level.
func (s *Server) InternalPushIngest(w http.ResponseWriter, r *http.Request) {
	sqliteAdapter, ok := s.Store.(interface {
		IngestChangeEvent(storage.ChangeEvent)
	})
	if !ok {
		writeError(w, r, http.StatusNotFound, "change-event ingest is only available on the embedded backend")
		return
	}

	var payload internalPushPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid payload")
		return
	}

	sqliteAdapter.IngestChangeEvent(storage.ChangeEvent{
		ChatID: payload.ChatID,
		Kind:   storage.ChangeKind(payload.Type),
		Data:   payload.Data,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
