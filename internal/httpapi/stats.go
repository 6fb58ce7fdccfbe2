package httpapi

import "net/http"

type statsResponse struct {
	TotalChats       int64  `json:"total_chats"`
	TotalMessages    int64  `json:"total_messages"`
	TotalMedia       int64  `json:"total_media"`
	ComputedAt       string `json:"computed_at"`
	ViewerTimezone   string `json:"viewer_timezone"`
	PushMode         string `json:"push_mode"`
	ListenerActive   bool   `json:"listener_active"`
}

// GetStats implements GET /api/stats: cached statistics augmented with
// configuration flags.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Store.GetCachedStatistics(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, s.withFlags(stats.TotalChats, stats.TotalMessages, stats.TotalMedia, stats.ComputedAt.Format("2006-01-02T15:04:05Z")))
}

// RefreshStats implements POST /api/stats/refresh (master-only): forces a
// synchronous recomputation.
func (s *Server) RefreshStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Store.RefreshStatistics(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to refresh statistics")
		return
	}
	writeJSON(w, http.StatusOK, s.withFlags(stats.TotalChats, stats.TotalMessages, stats.TotalMedia, stats.ComputedAt.Format("2006-01-02T15:04:05Z")))
}

// GetOpsStats implements GET /api/admin/ops (master-only): the
// mass-operation protector's counters plus the real-time bridge's
// apply-error count, for operator visibility into C4/C5 health.
func (s *Server) GetOpsStats(w http.ResponseWriter, r *http.Request) {
	if s.Bridge == nil {
		writeJSON(w, http.StatusOK, map[string]any{"mass_op": nil})
		return
	}
	writeJSON(w, http.StatusOK, s.Bridge.Stats())
}

func (s *Server) withFlags(totalChats, totalMessages, totalMedia int64, computedAt string) statsResponse {
	return statsResponse{
		TotalChats:     totalChats,
		TotalMessages:  totalMessages,
		TotalMedia:     totalMedia,
		ComputedAt:     computedAt,
		ViewerTimezone: s.Cfg.ViewerTimezone,
		PushMode:       string(s.Cfg.PushNotifications),
		ListenerActive: true,
	}
}
