package simulator

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"
)

var providers = []string{"calendar", "jira"}

// connectResponse is the subset of the upstream connect reply the simulator
// needs to poll status afterwards
type connectResponse struct {
	RedirectURL         string `json:"redirect_url"`
	ConnectionRequestID string `json:"connection_request_id"`
}

// simulateStatusChecks polls status for connected users at roughly
// StatusFrequency checks per user per minute
func (s *Simulator) simulateStatusChecks(ctx context.Context) {
	tickInterval := 500 * time.Millisecond
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	jobs := make(chan *SimulatedUser, s.config.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for user := range jobs {
				if err := s.checkStatus(ctx, user); err != nil {
					s.logger.Debug("status check failed", "user", user.ID, "error", err)
				}
			}
		}()
	}
	defer wg.Wait()
	defer close(jobs)

	perTick := s.config.StatusFrequency / 60.0 * tickInterval.Seconds()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, user := range s.snapshotUsers() {
				if !s.isConnected(user) || rand.Float64() >= perTick {
					continue
				}
				select {
				case jobs <- user:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (s *Simulator) connectUser(ctx context.Context, user *SimulatedUser) error {
	resp, err := s.makeRequest(ctx, "/api/"+user.Provider+"/connect", map[string]string{
		"userId": user.ID,
	})
	if err != nil {
		return err
	}

	var result connectResponse
	_ = json.Unmarshal(resp, &result)

	s.mu.Lock()
	user.IsConnected = true
	user.ConnectionRequestID = result.ConnectionRequestID
	user.LastActive = time.Now()
	s.mu.Unlock()

	s.stats.mu.Lock()
	s.stats.Connects++
	s.stats.mu.Unlock()
	return nil
}

func (s *Simulator) checkStatus(ctx context.Context, user *SimulatedUser) error {
	s.mu.RLock()
	data := map[string]string{
		"userId":              user.ID,
		"connectionRequestId": user.ConnectionRequestID,
	}
	s.mu.RUnlock()

	if _, err := s.makeRequest(ctx, "/api/"+user.Provider+"/status", data); err != nil {
		return err
	}

	s.mu.Lock()
	user.LastActive = time.Now()
	s.mu.Unlock()

	s.stats.mu.Lock()
	s.stats.StatusChecks++
	s.stats.mu.Unlock()
	return nil
}

func (s *Simulator) disconnectUser(ctx context.Context, user *SimulatedUser) error {
	s.mu.RLock()
	data := map[string]string{
		"userId":              user.ID,
		"connectionRequestId": user.ConnectionRequestID,
	}
	s.mu.RUnlock()

	if _, err := s.makeRequest(ctx, "/api/"+user.Provider+"/disconnect", data); err != nil {
		return err
	}

	s.mu.Lock()
	user.IsConnected = false
	user.ConnectionRequestID = ""
	s.mu.Unlock()

	s.stats.mu.Lock()
	s.stats.Disconnects++
	s.stats.mu.Unlock()
	return nil
}
