package utils

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxLatencySamples bounds the per-operation latency history
const maxLatencySamples = 1024

// Tracks performance metrics across the system
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	// Maps operation name to recent latencies in nanoseconds
	operationTimes map[string][]int64

	systemStartTime time.Time

	registry          *prometheus.Registry
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	upstreamRequests  *prometheus.CounterVec
	upstreamDuration  *prometheus.HistogramVec
	webhookDuplicates prometheus.Counter
}

// Snapshot is a point-in-time copy of the collector's counters
type Snapshot struct {
	Requests uint64
	Errors   uint64
	Uptime   time.Duration
	// P50 latency per operation
	Operations map[string]time.Duration
}

func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		operationTimes:  make(map[string][]int64),
		systemStartTime: time.Now(),
		registry:        prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calendar_proxy_http_requests_total",
				Help: "Total number of inbound HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calendar_proxy_http_request_duration_seconds",
				Help:    "Inbound HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calendar_proxy_upstream_requests_total",
				Help: "Total number of forwarded upstream calls by outcome",
			},
			[]string{"route", "outcome"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calendar_proxy_upstream_duration_seconds",
				Help:    "Upstream call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		webhookDuplicates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "calendar_proxy_webhook_duplicates_total",
				Help: "Webhook deliveries dropped as duplicates",
			},
		),
	}

	mc.registry.MustRegister(
		mc.httpRequests,
		mc.httpDuration,
		mc.upstreamRequests,
		mc.upstreamDuration,
		mc.webhookDuplicates,
	)
	return mc
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	samples := append(mc.operationTimes[operationName], duration.Nanoseconds())
	if len(samples) > maxLatencySamples {
		samples = samples[len(samples)-maxLatencySamples:]
	}
	mc.operationTimes[operationName] = samples
}

// RecordHTTPRequest records one inbound request. route must come from a
// fixed set of names; unrecognised methods are folded into "OTHER".
func (mc *MetricsCollector) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if !knownMethods[method] {
		method = "OTHER"
	}
	mc.httpRequests.WithLabelValues(method, route, status).Inc()
	mc.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// RecordUpstreamCall records one forwarded call. outcome is "relayed" when a
// response came back (any status) and "failed" on transport errors.
func (mc *MetricsCollector) RecordUpstreamCall(route, outcome string, duration time.Duration) {
	mc.upstreamRequests.WithLabelValues(route, outcome).Inc()
	mc.upstreamDuration.WithLabelValues(route).Observe(duration.Seconds())
	mc.AddOperationLatency(route, duration)
}

func (mc *MetricsCollector) RecordWebhookDuplicate() {
	mc.webhookDuplicates.Inc()
}

// Snapshot returns the current counters and median operation latencies
func (mc *MetricsCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	ops := make(map[string]time.Duration, len(mc.operationTimes))
	for name, samples := range mc.operationTimes {
		if len(samples) == 0 {
			continue
		}
		sorted := append([]int64(nil), samples...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		ops[name] = time.Duration(sorted[len(sorted)/2])
	}

	return Snapshot{
		Requests:   mc.requestCount,
		Errors:     mc.errorCount,
		Uptime:     time.Since(mc.systemStartTime),
		Operations: ops,
	}
}

// Handler exposes the collector's registry in Prometheus text format
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}
