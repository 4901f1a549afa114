package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"calendar-proxy/internal/api"
	"calendar-proxy/internal/middleware"
	"calendar-proxy/internal/models"
	"calendar-proxy/internal/upstream"
	"calendar-proxy/internal/utils"
)

// upstreamRequest is an inbound body that knows its upstream shape
type upstreamRequest[P any] interface {
	Upstream() P
}

// ProxyRoute binds an inbound path to its handler
type ProxyRoute struct {
	Name    string
	Path    string
	Handler http.HandlerFunc
}

func (s *Server) proxyRoutes() []ProxyRoute {
	return []ProxyRoute{
		{"calendar_status", "/api/calendar/status", s.HandleCalendarStatus()},
		{"calendar_connect", "/api/calendar/connect",
			proxyHandler[models.ConnectRequest, models.ConnectPayload](s, "calendar_connect", upstream.CalendarConnectPath)},
		{"calendar_disconnect", "/api/calendar/disconnect",
			proxyHandler[models.DisconnectRequest, models.DisconnectPayload](s, "calendar_disconnect", upstream.CalendarDisconnectPath)},
		{"jira_status", "/api/jira/status",
			proxyHandler[models.StatusRequest, models.StatusPayload](s, "jira_status", upstream.JiraStatusPath)},
		{"jira_connect", "/api/jira/connect",
			proxyHandler[models.ConnectRequest, models.ConnectPayload](s, "jira_connect", upstream.JiraConnectPath)},
		{"jira_disconnect", "/api/jira/disconnect",
			proxyHandler[models.DisconnectRequest, models.DisconnectPayload](s, "jira_disconnect", upstream.JiraDisconnectPath)},
	}
}

// HandleCalendarStatus forwards a calendar connection status check
func (s *Server) HandleCalendarStatus() http.HandlerFunc {
	return proxyHandler[models.StatusRequest, models.StatusPayload](s, "calendar_status", upstream.CalendarStatusPath)
}

// proxyHandler decodes an inbound R, renames its fields into P and forwards
// it. A malformed or missing body is treated as an empty one. Whatever the
// upstream answers is relayed with its own status; only a failed exchange
// produces a local 502.
func proxyHandler[R upstreamRequest[P], P any](s *Server, name, upstreamPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			api.WriteError(w, utils.NewAppError(utils.ErrMethodNotAllowed, "Method not allowed", nil))
			return
		}

		req, err := decodeTolerant[R](w, r)
		if err != nil {
			middleware.LoggerFromContext(r.Context()).Warn("inbound body ignored", "route", name, "error", err)
		}
		s.relay(w, r, name, upstreamPath, req.Upstream())
	}
}

// relay forwards payload and writes the upstream reply or a 502 envelope
func (s *Server) relay(w http.ResponseWriter, r *http.Request, name, upstreamPath string, payload any) bool {
	logger := middleware.LoggerFromContext(r.Context())
	start := time.Now()

	resp, err := s.Upstream.PostJSON(r.Context(), upstreamPath, payload)
	if err != nil {
		s.Metrics.RecordUpstreamCall(name, "failed", time.Since(start))
		logger.Warn("upstream call failed", "route", name, "url", s.Upstream.URL(upstreamPath), "error", err)
		api.WriteError(w, err)
		return false
	}

	s.Metrics.RecordUpstreamCall(name, "relayed", time.Since(start))
	logger.Debug("upstream replied", "route", name, "status", resp.StatusCode)
	api.WriteRawJSON(w, resp.StatusCode, resp.Body)
	return true
}

// decodeTolerant reads a JSON body into R. A read or parse failure yields
// the zero value together with the reason, for logging only; an empty body
// is not a failure.
func decodeTolerant[R any](w http.ResponseWriter, r *http.Request) (R, error) {
	var req R
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return req, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		var zero R
		return zero, err
	}
	return req, nil
}
