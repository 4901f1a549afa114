package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("PY_SERVER_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("UPSTREAM_TIMEOUT", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("MONGODB_URI", "")
	t.Setenv("WEBHOOK_DEDUP_WINDOW", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultUpstreamBaseURL, cfg.Upstream.BaseURL)
	assert.Equal(t, time.Duration(0), cfg.Upstream.Timeout)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.Database.URI)
	assert.Equal(t, "calendar_proxy", cfg.Database.Name)
	assert.Equal(t, DefaultDedupWindow, cfg.Webhook.DedupWindow)
	assert.Equal(t, "http://server:8000/api/v1/calendar/status", cfg.Upstream.UpstreamURL("/api/v1/calendar/status"))
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PY_SERVER_URL", "http://x/")
	t.Setenv("PORT", "9090")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("WEBHOOK_DEDUP_WINDOW", "5")
	t.Setenv("DEBUG", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://x/api/v1/calendar/status", cfg.Upstream.UpstreamURL("/api/v1/calendar/status"))
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 5, cfg.Webhook.DedupWindow)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("PORT", "")
	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestUpstreamURLJoining(t *testing.T) {
	cases := map[string]string{
		"http://x":    "http://x/api/v1/webhook",
		"http://x/":   "http://x/api/v1/webhook",
		"http://x//":  "http://x/api/v1/webhook",
		"http://x/py": "http://x/py/api/v1/webhook",
	}
	for base, want := range cases {
		u := &UpstreamConfig{BaseURL: base}
		assert.Equal(t, want, u.UpstreamURL("/api/v1/webhook"), base)
		assert.Equal(t, want, u.UpstreamURL("api/v1/webhook"), base)
	}
}
