package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"calendar-proxy/internal/api"
	"calendar-proxy/internal/engine/actors"
	"calendar-proxy/internal/middleware"
	"calendar-proxy/internal/upstream"
	"calendar-proxy/internal/utils"
)

// HandleWebhook relays trigger deliveries to the upstream webhook route,
// dropping any delivery whose key is already in the dedup window.
func (s *Server) HandleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			api.WriteError(w, utils.NewAppError(utils.ErrMethodNotAllowed, "Method not allowed", nil))
			return
		}
		logger := middleware.LoggerFromContext(r.Context())

		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			api.WriteError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid request", err))
			return
		}

		var payload map[string]any
		if !json.Valid(raw) {
			api.WriteError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid request", errInvalidWebhookBody))
			return
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil || payload == nil {
			api.WriteError(w, utils.NewAppError(utils.ErrInvalidInput, "Invalid request", errInvalidWebhookBody))
			return
		}

		event := actors.ClassifyWebhook(payload)
		logger = logger.With("trigger", event.TriggerType, "key", event.Key)

		duplicate, err := s.Engine.MarkSeen(r.Context(), event.Key)
		if err != nil {
			// forward anyway; losing a delivery is worse than a repeat
			logger.Warn("dedup check failed", "error", err)
		}
		if duplicate {
			s.Metrics.RecordWebhookDuplicate()
			logger.Info("skipping duplicate webhook")
			api.WriteJSON(w, http.StatusOK, api.WebhookAck{Status: "ok", Detail: "duplicate ignored"})
			return
		}

		if !s.relay(w, r, "webhook", upstream.WebhookPath, json.RawMessage(raw)) && err == nil {
			// let the sender's retry through
			if ferr := s.Engine.Forget(context.WithoutCancel(r.Context()), event.Key); ferr != nil {
				logger.Warn("failed to release webhook key", "error", ferr)
			}
		}
	}
}

var errInvalidWebhookBody = errors.New("webhook body must be a JSON object")
