package handlers

import (
	"net/http"
	"time"

	"calendar-proxy/internal/api"
	"calendar-proxy/internal/middleware"
	"calendar-proxy/internal/utils"
)

// HandleHealth reports liveness without touching the upstream
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			api.WriteError(w, utils.NewAppError(utils.ErrMethodNotAllowed, "Method not allowed", nil))
			return
		}

		seen, err := s.Engine.SeenCount(r.Context())
		if err != nil {
			middleware.LoggerFromContext(r.Context()).Warn("dedup actor unavailable", "error", err)
			seen = -1
		}

		snap := s.Metrics.Snapshot()
		api.WriteJSON(w, http.StatusOK, api.HealthResponse{
			Status:       "ok",
			Upstream:     s.Upstream.BaseURL(),
			Uptime:       time.Since(s.StartTime).Round(time.Second).String(),
			Requests:     snap.Requests,
			Errors:       snap.Errors,
			SeenWebhooks: seen,
		})
	}
}
