package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type SimConfig struct {
	NumUsers       int
	SimulationTime time.Duration
	// StatusFrequency is status checks per connected user per minute
	StatusFrequency float64
	DisconnectRate  float64
	ReconnectRate   float64
	Concurrency     int
	ProxyURL        string
}

// DefaultSimConfig returns a small load suitable for a local stack
func DefaultSimConfig() SimConfig {
	return SimConfig{
		NumUsers:        10,
		SimulationTime:  time.Minute,
		StatusFrequency: 30,
		DisconnectRate:  0.02,
		ReconnectRate:   0.1,
		Concurrency:     5,
		ProxyURL:        "http://localhost:8080",
	}
}

type SimulationStats struct {
	mu               sync.RWMutex
	StartTime        time.Time
	TotalRequests    int64
	SuccessRequests  int64
	FailedRequests   int64
	AverageLatency   time.Duration
	ActiveUsers      int
	StatusChecks     int
	Connects         int
	Disconnects      int
	RequestLatencies []time.Duration
}

// SimulatedUser is a front-end session holding one integration connection
type SimulatedUser struct {
	ID                  string
	Provider            string
	IsConnected         bool
	ConnectionRequestID string
	LastActive          time.Time
}

type Simulator struct {
	config SimConfig
	stats  *SimulationStats
	users  []*SimulatedUser
	client *http.Client
	logger *slog.Logger
	mu     sync.RWMutex
}

func NewSimulator(config SimConfig, logger *slog.Logger) *Simulator {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Simulator{
		config: config,
		stats: &SimulationStats{
			StartTime:        time.Now(),
			RequestLatencies: make([]time.Duration, 0),
		},
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("starting simulation", "users", s.config.NumUsers, "proxy", s.config.ProxyURL)

	if err := s.createInitialUsers(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateStatusChecks(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateConnectivity(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()

	wg.Wait()
	return nil
}

// createInitialUsers connects every simulated user through a bounded worker
// pool. Users whose connect call fails still join the pool disconnected.
func (s *Simulator) createInitialUsers(ctx context.Context) error {
	if s.config.NumUsers <= 0 {
		return fmt.Errorf("NumUsers must be positive, got %d", s.config.NumUsers)
	}

	jobs := make(chan int)
	results := make(chan *SimulatedUser, s.config.NumUsers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for n := range jobs {
				user := &SimulatedUser{
					ID:       "web-" + uuid.NewString(),
					Provider: providers[n%len(providers)],
				}
				if err := s.connectUser(ctx, user); err != nil {
					s.logger.Debug("initial connect failed", "worker", workerID, "user", user.ID, "error", err)
				}
				results <- user
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for i := 0; i < s.config.NumUsers; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	users := make([]*SimulatedUser, 0, s.config.NumUsers)
	for user := range results {
		users = append(users, user)
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()

	s.logger.Info("users created", "count", len(users), "connected", s.countConnected())
	return nil
}

// makeRequest POSTs data to endpoint and returns the reply body. Replies
// with status 400 and above count as failures.
func (s *Simulator) makeRequest(ctx context.Context, endpoint string, data interface{}) ([]byte, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(s.config.ProxyURL, "/") + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.recordRequestMetrics(start, err)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err == nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}
	s.recordRequestMetrics(start, err)
	return respBody, err
}

func (s *Simulator) simulateConnectivity(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, user := range s.snapshotUsers() {
				connected := s.isConnected(user)
				switch {
				case connected && rand.Float64() < s.config.DisconnectRate:
					if err := s.disconnectUser(ctx, user); err != nil {
						s.logger.Debug("disconnect failed", "user", user.ID, "error", err)
					}
				case !connected && rand.Float64() < s.config.ReconnectRate:
					if err := s.connectUser(ctx, user); err != nil {
						s.logger.Debug("reconnect failed", "user", user.ID, "error", err)
					}
				}
			}
		}
	}
}

func (s *Simulator) recordRequestMetrics(start time.Time, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	latency := time.Since(start)
	s.stats.TotalRequests++
	s.stats.RequestLatencies = append(s.stats.RequestLatencies, latency)

	if err != nil {
		s.stats.FailedRequests++
	} else {
		s.stats.SuccessRequests++
	}

	totalLatency := s.stats.AverageLatency * time.Duration(s.stats.TotalRequests-1)
	s.stats.AverageLatency = (totalLatency + latency) / time.Duration(s.stats.TotalRequests)
}

func (s *Simulator) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := s.GetMetrics()
			s.logger.Info("simulation metrics",
				"rps", fmt.Sprintf("%.2f", m.RequestsPerSecond),
				"success_rate", fmt.Sprintf("%.1f%%", m.SuccessRate),
				"p50", m.P50Latency,
				"p95", m.P95Latency,
				"active_users", m.ActiveUsers,
				"failed", m.ErrorCount,
			)
		}
	}
}

func (s *Simulator) snapshotUsers() []*SimulatedUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*SimulatedUser, len(s.users))
	copy(users, s.users)
	return users
}

func (s *Simulator) isConnected(user *SimulatedUser) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return user.IsConnected
}

func (s *Simulator) countConnected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, user := range s.users {
		if user.IsConnected {
			n++
		}
	}
	return n
}

// SimulationMetrics holds the metrics of the simulation
type SimulationMetrics struct {
	TotalUsers        int
	ActiveUsers       int
	StatusChecks      int
	Connects          int
	Disconnects       int
	TotalRequests     int64
	ErrorCount        int
	SuccessRate       float64
	AverageLatency    time.Duration
	P50Latency        time.Duration
	P95Latency        time.Duration
	P99Latency        time.Duration
	RequestsPerSecond float64
}

// GetMetrics returns the current simulation metrics
func (s *Simulator) GetMetrics() SimulationMetrics {
	active := s.countConnected()
	s.mu.RLock()
	totalUsers := len(s.users)
	s.mu.RUnlock()

	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	elapsed := time.Since(s.stats.StartTime)
	successRate := 0.0
	if s.stats.TotalRequests > 0 {
		successRate = float64(s.stats.SuccessRequests) / float64(s.stats.TotalRequests) * 100
	}

	sorted := make([]time.Duration, len(s.stats.RequestLatencies))
	copy(sorted, s.stats.RequestLatencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return SimulationMetrics{
		TotalUsers:        totalUsers,
		ActiveUsers:       active,
		StatusChecks:      s.stats.StatusChecks,
		Connects:          s.stats.Connects,
		Disconnects:       s.stats.Disconnects,
		TotalRequests:     s.stats.TotalRequests,
		ErrorCount:        int(s.stats.FailedRequests),
		SuccessRate:       successRate,
		AverageLatency:    s.stats.AverageLatency,
		P50Latency:        percentile(sorted, 0.50),
		P95Latency:        percentile(sorted, 0.95),
		P99Latency:        percentile(sorted, 0.99),
		RequestsPerSecond: float64(s.stats.TotalRequests) / elapsed.Seconds(),
	}
}

// percentile expects sorted input
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
