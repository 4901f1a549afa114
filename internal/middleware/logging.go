package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"calendar-proxy/internal/logging"
	"calendar-proxy/internal/utils"

	"github.com/google/uuid"
)

// RequestIDHeader is echoed back on every response
const RequestIDHeader = "X-Request-ID"

// OtherRoute labels metrics for any path outside the route table
const OtherRoute = "other"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger tags each request with an id, puts a request-scoped logger in
// the context and records the outcome in metrics. routes maps exact paths to
// their metric names; anything else is counted as OtherRoute.
func RequestLogger(logger *slog.Logger, metrics *utils.MetricsCollector, routes map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(requestID); err != nil {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			reqLogger := logger.With("request_id", requestID)
			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			ctx = context.WithValue(ctx, loggerKey, reqLogger)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			elapsed := time.Since(start)
			if metrics != nil {
				metrics.IncrementRequests()
				if rec.status >= http.StatusInternalServerError {
					metrics.IncrementErrors()
				}
				route, ok := routes[r.URL.Path]
				if !ok {
					route = OtherRoute
				}
				metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(rec.status), elapsed)
			}

			reqLogger.Debug("request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", elapsed,
			)
		})
	}
}

// RequestIDFromContext returns the id assigned by RequestLogger
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// LoggerFromContext returns the request-scoped logger, or one that discards
// output when the request did not pass through RequestLogger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return logging.Discard()
}

// Chain applies middlewares so the first one listed runs outermost
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
