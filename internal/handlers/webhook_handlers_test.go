package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"calendar-proxy/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jiraDelivery = `{
	"type": "composio.trigger.message",
	"metadata": {"trigger_slug": "JIRA_NEW_ISSUE_TRIGGER"},
	"data": {"issue_key": "OPS-12", "created_at": "2024-11-02T10:00:00Z"}
}`

func TestWebhookForwardsFirstDelivery(t *testing.T) {
	up := &fakeUpstream{body: `{"status": "accepted"}`}
	s := newTestServer(t, "http://py:8000", up)

	w := post(t, s.Routes(), "/api/webhook", jiraDelivery)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "accepted"}`, w.Body.String())

	call := up.lastCall(t)
	assert.Equal(t, "http://py:8000/api/v1/webhook", call.URL)
	assert.Equal(t, "composio.trigger.message", call.Body["type"])
}

func TestWebhookDropsDuplicates(t *testing.T) {
	up := &fakeUpstream{body: `{}`}
	s := newTestServer(t, "http://py:8000", up)
	h := s.Routes()

	post(t, h, "/api/webhook", jiraDelivery)
	w := post(t, h, "/api/webhook", jiraDelivery)

	assert.Equal(t, http.StatusOK, w.Code)
	var ack api.WebhookAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "duplicate ignored", ack.Detail)
	assert.Equal(t, 1, up.callCount())

	seen, err := s.Engine.SeenCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func TestWebhookDistinctIDsBothForwarded(t *testing.T) {
	up := &fakeUpstream{body: `{}`}
	s := newTestServer(t, "http://py:8000", up)
	h := s.Routes()

	post(t, h, "/api/webhook", `{"id": "evt_1", "type": "GOOGLECALENDAR_EVENT_CREATED"}`)
	post(t, h, "/api/webhook", `{"id": "evt_2", "type": "GOOGLECALENDAR_EVENT_CREATED"}`)

	assert.Equal(t, 2, up.callCount())
}

func TestWebhookFailedForwardAllowsRetry(t *testing.T) {
	up := &fakeUpstream{err: errors.New("connection reset by peer")}
	s := newTestServer(t, "http://py:8000", up)
	h := s.Routes()

	w := post(t, h, "/api/webhook", jiraDelivery)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	up.mu.Lock()
	up.err = nil
	up.body = `{"status": "accepted"}`
	up.mu.Unlock()

	w = post(t, h, "/api/webhook", jiraDelivery)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "accepted"}`, w.Body.String())
	assert.Equal(t, 2, up.callCount())
}

func TestWebhookUpstreamRejectionKeepsKey(t *testing.T) {
	up := &fakeUpstream{status: http.StatusUnprocessableEntity, body: `{"detail": "bad trigger"}`}
	s := newTestServer(t, "http://py:8000", up)
	h := s.Routes()

	w := post(t, h, "/api/webhook", jiraDelivery)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	post(t, h, "/api/webhook", jiraDelivery)
	assert.Equal(t, 1, up.callCount())
}

func TestWebhookRejectsInvalidBodies(t *testing.T) {
	for name, body := range map[string]string{
		"empty":    "",
		"garbage":  "not json",
		"trailing": `{"id": "evt_1"} {}`,
		"array":    `[{"id": "evt_1"}]`,
		"null":     "null",
	} {
		t.Run(name, func(t *testing.T) {
			up := &fakeUpstream{}
			s := newTestServer(t, "http://py:8000", up)

			w := post(t, s.Routes(), "/api/webhook", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, 0, up.callCount())
		})
	}
}

func TestHealthReportsSeenWebhooks(t *testing.T) {
	s := newTestServer(t, "http://py:8000", &fakeUpstream{body: `{}`})
	h := s.Routes()

	post(t, h, "/api/webhook", `{"id": "evt_1"}`)
	post(t, h, "/api/webhook", `{"id": "evt_2"}`)

	w := post(t, h, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var health api.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, 2, health.SeenWebhooks)
}
