package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"calendar-proxy/internal/config"
	"calendar-proxy/internal/models"
	"calendar-proxy/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(&config.UpstreamConfig{BaseURL: baseURL}, nil)
}

func TestPostJSONSendsHeadersAndBody(t *testing.T) {
	var gotPath, gotMethod, gotCT, gotAccept string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL + "/")
	resp, err := client.PostJSON(context.Background(), CalendarStatusPath, models.StatusPayload{UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, CalendarStatusPath, gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, map[string]string{"user_id": "u1", "connection_request_id": ""}, gotBody)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok": true}`, string(resp.Body))
}

func TestPostJSONRelaysErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "not found"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).PostJSON(context.Background(), CalendarStatusPath, models.StatusPayload{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error": "not found"}`, string(resp.Body))
}

func TestPostJSONNonJSONBodyBecomesEmptyObject(t *testing.T) {
	for name, body := range map[string]string{
		"html":     "<html>bad gateway</html>",
		"empty":    "",
		"trailing": `{"a":1} junk`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			resp, err := newTestClient(srv.URL).PostJSON(context.Background(), CalendarStatusPath, models.StatusPayload{})
			require.NoError(t, err)
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Equal(t, "{}", string(resp.Body))
		})
	}
}

func TestPostJSONTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).PostJSON(context.Background(), CalendarStatusPath, models.StatusPayload{})
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, utils.ErrUpstreamUnavailable))

	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.NotEmpty(t, appErr.Detail())
}

func TestPostJSONInvalidBaseURL(t *testing.T) {
	_, err := newTestClient("http://bad host").PostJSON(context.Background(), CalendarStatusPath, models.StatusPayload{})
	require.Error(t, err)
	assert.True(t, utils.IsErrorCode(err, utils.ErrUpstreamUnavailable))
}

func TestURLUsesDefaultBase(t *testing.T) {
	client := NewClient(config.DefaultUpstreamConfig(), nil)
	assert.Equal(t, "http://server:8000/api/v1/calendar/status", client.URL(CalendarStatusPath))
}
