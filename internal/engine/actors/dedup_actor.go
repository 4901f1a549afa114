package actors

import (
	"context"
	"log/slog"
	"time"

	"calendar-proxy/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// SeenStore persists dedup keys so the window survives restarts
type SeenStore interface {
	// Recent returns up to limit keys, oldest first
	Recent(ctx context.Context, limit int) ([]string, error)
	Save(ctx context.Context, key string) error
	Delete(ctx context.Context, key string) error
}

// Message types for DedupActor
type (
	// MarkSeenMsg records key and reports whether it had been seen before
	MarkSeenMsg struct {
		Key string
	}

	// ForgetMsg drops key from the window so a later delivery is accepted
	ForgetMsg struct {
		Key string
	}

	GetCountsMsg struct{}
)

// MarkSeenResult is the reply to MarkSeenMsg
type MarkSeenResult struct {
	Duplicate bool
}

// DedupActor owns the bounded window of recently seen webhook keys. Once the
// window is full the oldest key is evicted first.
type DedupActor struct {
	window  int
	seen    map[string]struct{}
	order   []string
	store   SeenStore
	writer  *actor.PID
	metrics *utils.MetricsCollector
	logger  *slog.Logger
}

func NewDedupActor(window int, store SeenStore, metrics *utils.MetricsCollector, logger *slog.Logger) *DedupActor {
	if window <= 0 {
		window = 1
	}
	return &DedupActor{
		window:  window,
		seen:    make(map[string]struct{}, window),
		order:   make([]string, 0, window),
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

func (a *DedupActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.restore()
		if a.store != nil {
			a.writer = context.Spawn(storeWriterProps(a.store, a.logger.With("actor", "store_writer")))
		}

	case *actor.Stopping:
		// flush queued writes before the writer is stopped with us
		if a.writer != nil {
			if err := context.PoisonFuture(a.writer).Wait(); err != nil {
				a.logger.Warn("store writer did not drain", "error", err)
			}
		}

	case *MarkSeenMsg:
		startTime := time.Now()
		if _, exists := a.seen[msg.Key]; exists {
			context.Respond(&MarkSeenResult{Duplicate: true})
			return
		}
		a.remember(msg.Key)
		a.write(context, &SaveKeyMsg{Key: msg.Key})
		if a.metrics != nil {
			a.metrics.AddOperationLatency("dedup_mark", time.Since(startTime))
		}
		context.Respond(&MarkSeenResult{Duplicate: false})

	case *ForgetMsg:
		if a.forget(msg.Key) {
			a.write(context, &DeleteKeyMsg{Key: msg.Key})
		}
		context.Respond(true)

	case *GetCountsMsg:
		context.Respond(len(a.order))
	}
}

func (a *DedupActor) remember(key string) {
	a.seen[key] = struct{}{}
	a.order = append(a.order, key)
	for len(a.order) > a.window {
		oldest := a.order[0]
		a.order = a.order[1:]
		delete(a.seen, oldest)
	}
}

// forget reports whether key was in the window
func (a *DedupActor) forget(key string) bool {
	if _, exists := a.seen[key]; !exists {
		return false
	}
	delete(a.seen, key)
	for i, k := range a.order {
		if k == key {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return true
}

func (a *DedupActor) restore() {
	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	keys, err := a.store.Recent(ctx, a.window)
	if err != nil {
		a.logger.Warn("failed to load processed webhook keys", "error", err)
		return
	}
	for _, k := range keys {
		if _, exists := a.seen[k]; !exists {
			a.remember(k)
		}
	}
	a.logger.Info("loaded processed webhook keys", "count", len(a.order))
}

func (a *DedupActor) write(context actor.Context, msg interface{}) {
	if a.writer == nil {
		return
	}
	context.Send(a.writer, msg)
}
