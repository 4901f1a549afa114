package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"calendar-proxy/internal/utils"
)

// ContentTypeJSON is set on every JSON response the proxy writes
const ContentTypeJSON = "application/json; charset=utf-8"

// WriteJSON encodes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteRawJSON writes an already encoded JSON body with the given status
func WriteRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteError renders err as an ErrorEnvelope. AppErrors pick their status
// from their code; anything else is a 500.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorEnvelope{
			Error:  "Internal server error",
			Detail: err.Error(),
		})
		return
	}
	WriteJSON(w, utils.AppErrorToHTTPStatus(appErr.Code), ErrorEnvelope{
		Error:  appErr.Message,
		Detail: appErr.Detail(),
	})
}
