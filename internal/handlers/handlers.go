package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"calendar-proxy/internal/config"
	"calendar-proxy/internal/engine"
	"calendar-proxy/internal/middleware"
	"calendar-proxy/internal/upstream"
	"calendar-proxy/internal/utils"
)

// maxBodyBytes caps inbound request bodies
const maxBodyBytes = 1 << 20

// Server holds all server dependencies
type Server struct {
	Config    *config.Config
	Engine    *engine.Engine
	Upstream  *upstream.Client
	Metrics   *utils.MetricsCollector
	Logger    *slog.Logger
	StartTime time.Time
}

// NewServer creates a new Server instance with the given components
func NewServer(
	cfg *config.Config,
	eng *engine.Engine,
	upstreamClient *upstream.Client,
	metrics *utils.MetricsCollector,
	logger *slog.Logger,
) *Server {
	return &Server{
		Config:    cfg,
		Engine:    eng,
		Upstream:  upstreamClient,
		Metrics:   metrics,
		Logger:    logger,
		StartTime: time.Now(),
	}
}

// Routes builds the HTTP handler with every route and middleware attached
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	routeNames := map[string]string{
		"/health":      "health",
		"/api/webhook": "webhook",
	}

	mux.HandleFunc("/health", s.HandleHealth())
	if s.Config.Server.MetricsEnabled {
		mux.Handle("/metrics", s.Metrics.Handler())
		routeNames["/metrics"] = "metrics"
	}

	for _, route := range s.proxyRoutes() {
		mux.HandleFunc(route.Path, route.Handler)
		routeNames[route.Path] = route.Name
	}
	mux.HandleFunc("/api/webhook", s.HandleWebhook())

	auth := middleware.NewAuthenticator(s.Config.JWTSecret, "/health", "/metrics")

	return middleware.Chain(mux,
		middleware.RequestLogger(s.Logger, s.Metrics, routeNames),
		middleware.CORSMiddleware(middleware.DefaultCORSConfig(s.Config.AllowedOrigins)),
		auth.Middleware,
	)
}
