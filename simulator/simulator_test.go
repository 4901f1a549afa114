package simulator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"calendar-proxy/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type proxyStub struct {
	mu    sync.Mutex
	paths map[string]int
}

func (p *proxyStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.paths[r.URL.Path]++
	p.mu.Unlock()

	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/connect"):
		_ = json.NewEncoder(w).Encode(map[string]string{
			"redirect_url":          "https://auth.example.test",
			"connection_request_id": "cr-" + body["userId"],
		})
	case strings.HasSuffix(r.URL.Path, "/status"):
		if body["connectionRequestId"] == "" {
			w.WriteHeader(http.StatusBadRequest)
		}
		_, _ = w.Write([]byte(`{"connected": true}`))
	default:
		_, _ = w.Write([]byte(`{"success": true}`))
	}
}

func (p *proxyStub) count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paths[path]
}

func TestSimulatorConnectsEveryUser(t *testing.T) {
	stub := &proxyStub{paths: map[string]int{}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	cfg := SimConfig{NumUsers: 6, Concurrency: 3, ProxyURL: srv.URL + "/"}
	sim := NewSimulator(cfg, logging.Discard())

	require.NoError(t, sim.createInitialUsers(context.Background()))

	m := sim.GetMetrics()
	assert.Equal(t, 6, m.TotalUsers)
	assert.Equal(t, 6, m.ActiveUsers)
	assert.Equal(t, 6, m.Connects)
	assert.Equal(t, 3, stub.count("/api/calendar/connect"))
	assert.Equal(t, 3, stub.count("/api/jira/connect"))

	for _, user := range sim.users {
		assert.True(t, strings.HasPrefix(user.ID, "web-"))
		assert.Equal(t, "cr-"+user.ID, user.ConnectionRequestID)
	}
}

func TestSimulatorRunCollectsLatencies(t *testing.T) {
	stub := &proxyStub{paths: map[string]int{}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	cfg := SimConfig{
		NumUsers:        4,
		SimulationTime:  1500 * time.Millisecond,
		StatusFrequency: 600,
		Concurrency:     2,
		ProxyURL:        srv.URL,
	}
	sim := NewSimulator(cfg, logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.SimulationTime)
	defer cancel()
	require.NoError(t, sim.Run(ctx))

	m := sim.GetMetrics()
	assert.Greater(t, m.StatusChecks, 0)
	assert.Greater(t, m.SuccessRate, 0.0)
	assert.LessOrEqual(t, m.P50Latency, m.P95Latency)
	assert.LessOrEqual(t, m.P95Latency, m.P99Latency)
}

func TestSimulatorCountsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"ok": false, "error": "Upstream error"}`))
	}))
	defer srv.Close()

	sim := NewSimulator(SimConfig{NumUsers: 2, Concurrency: 1, ProxyURL: srv.URL}, logging.Discard())
	require.NoError(t, sim.createInitialUsers(context.Background()))

	m := sim.GetMetrics()
	assert.Equal(t, 2, m.ErrorCount)
	assert.Equal(t, 0, m.ActiveUsers)
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, time.Duration(0), percentile(nil, 0.5))

	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 0.5))
	assert.Equal(t, time.Duration(9), percentile(sorted, 0.95))
	assert.Equal(t, time.Duration(10), percentile(sorted, 1))
}
