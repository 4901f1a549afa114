// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultUpstreamBaseURL is used when PY_SERVER_URL is unset or empty
	DefaultUpstreamBaseURL = "http://server:8000"

	DefaultDedupWindow = 1000
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
}

// UpstreamConfig describes the backend the proxy forwards to
type UpstreamConfig struct {
	BaseURL string
	// Timeout of zero leaves the HTTP client without a deadline
	Timeout time.Duration
}

// DatabaseConfig holds settings for the optional webhook dedup store
type DatabaseConfig struct {
	URI  string
	Name string
}

// WebhookConfig holds webhook relay settings
type WebhookConfig struct {
	DedupWindow int
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig
	Upstream       *UpstreamConfig
	Database       *DatabaseConfig
	Webhook        *WebhookConfig
	AllowedOrigins []string
	JWTSecret      string
	LogFormat      string
	Debug          bool
}

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
	}
}

// DefaultUpstreamConfig provides default upstream settings
func DefaultUpstreamConfig() *UpstreamConfig {
	return &UpstreamConfig{
		BaseURL: DefaultUpstreamBaseURL,
	}
}

// DefaultDatabaseConfig provides default database settings. An empty URI
// keeps the dedup window in memory only.
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Name: "calendar_proxy",
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	envLocations := []string{
		".env",
		"../../.env", // project root when running from cmd/proxy
		filepath.Join(os.Getenv("GOPATH"), "src/calendar-proxy/.env"),
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		_ = godotenv.Load()
	}

	return FromEnv()
}

// FromEnv builds a Config from the current process environment without
// touching any .env file.
func FromEnv() (*Config, error) {
	serverConfig := DefaultConfig()

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", portStr, err)
		}
		serverConfig.Port = port
	}

	if host := os.Getenv("HOST"); host != "" {
		serverConfig.Host = host
	}

	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	upstreamConfig := DefaultUpstreamConfig()
	upstreamConfig.BaseURL = getEnvOrDefault("PY_SERVER_URL", DefaultUpstreamBaseURL)

	if timeoutStr := os.Getenv("UPSTREAM_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT %q: %w", timeoutStr, err)
		}
		if timeout < 0 {
			return nil, fmt.Errorf("UPSTREAM_TIMEOUT must not be negative, got %s", timeout)
		}
		upstreamConfig.Timeout = timeout
	}

	dbConfig := DefaultDatabaseConfig()
	dbConfig.URI = os.Getenv("MONGODB_URI")
	dbConfig.Name = getEnvOrDefault("MONGODB_DATABASE", dbConfig.Name)

	webhookConfig := &WebhookConfig{DedupWindow: DefaultDedupWindow}
	if windowStr := os.Getenv("WEBHOOK_DEDUP_WINDOW"); windowStr != "" {
		window, err := strconv.Atoi(windowStr)
		if err != nil || window <= 0 {
			log.Printf("Warning: ignoring invalid WEBHOOK_DEDUP_WINDOW %q", windowStr)
		} else {
			webhookConfig.DedupWindow = window
		}
	}

	config := &Config{
		Server:         serverConfig,
		Upstream:       upstreamConfig,
		Database:       dbConfig,
		Webhook:        webhookConfig,
		AllowedOrigins: []string{"*"},
		JWTSecret:      os.Getenv("AUTH_JWT_SECRET"),
		LogFormat:      getEnvOrDefault("LOG_FORMAT", "text"),
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = splitAndTrim(origins)
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		config.Debug = true
	}

	return config, nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// UpstreamURL joins the upstream base address with path. Trailing slashes on
// the base are dropped so the result never contains "//" at the seam.
func (c *UpstreamConfig) UpstreamURL(path string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
