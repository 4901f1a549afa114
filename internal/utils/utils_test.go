package utils

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorWrapping(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:8000: connect: connection refused")
	appErr := NewUpstreamError(cause)

	assert.Equal(t, "Upstream error: "+cause.Error(), appErr.Error())
	assert.Equal(t, cause.Error(), appErr.Detail())
	assert.ErrorIs(t, appErr, cause)

	wrapped := fmt.Errorf("forward: %w", appErr)
	assert.True(t, IsErrorCode(wrapped, ErrUpstreamUnavailable))
	assert.False(t, IsErrorCode(wrapped, ErrInvalidInput))
	assert.Equal(t, http.StatusBadGateway, AppErrorToHTTPStatus(appErr.Code))
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, IsAuthError(NewUnauthorizedError("missing token")))
	assert.True(t, IsAuthError(NewAppError(ErrInvalidToken, "bad", nil)))
	assert.False(t, IsAuthError(errors.New("plain")))
	assert.Equal(t, http.StatusUnauthorized, AppErrorToHTTPStatus(ErrInvalidToken))
	assert.Equal(t, http.StatusInternalServerError, AppErrorToHTTPStatus("SOMETHING_ELSE"))
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()
	mc.IncrementRequests()
	mc.IncrementRequests()
	mc.IncrementErrors()
	mc.RecordUpstreamCall("calendar_status", "relayed", 10*time.Millisecond)
	mc.RecordUpstreamCall("calendar_status", "relayed", 30*time.Millisecond)
	mc.RecordUpstreamCall("calendar_status", "failed", 20*time.Millisecond)
	mc.RecordHTTPRequest(http.MethodPost, "/api/calendar/status", "200", 5*time.Millisecond)
	mc.RecordWebhookDuplicate()

	snap := mc.Snapshot()
	assert.Equal(t, uint64(2), snap.Requests)
	assert.Equal(t, uint64(1), snap.Errors)
	assert.Equal(t, 20*time.Millisecond, snap.Operations["calendar_status"])

	rec := httptest.NewRecorder()
	mc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `calendar_proxy_upstream_requests_total{outcome="failed",route="calendar_status"} 1`)
	assert.Contains(t, body, "calendar_proxy_webhook_duplicates_total 1")
}

func TestLatencyHistoryIsBounded(t *testing.T) {
	mc := NewMetricsCollector()
	for i := 0; i < maxLatencySamples+10; i++ {
		mc.AddOperationLatency("op", time.Duration(i))
	}
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	assert.Len(t, mc.operationTimes["op"], maxLatencySamples)
	assert.Equal(t, int64(10), mc.operationTimes["op"][0])
}
