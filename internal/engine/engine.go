package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"calendar-proxy/internal/engine/actors"
	"calendar-proxy/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

const defaultRequestTimeout = 5 * time.Second

// Engine coordinates communication with the proxy's actors
type Engine struct {
	context        *actor.RootContext
	dedupActor     *actor.PID
	requestTimeout time.Duration
	stopOnce       sync.Once
}

func NewEngine(system *actor.ActorSystem, metrics *utils.MetricsCollector, store actors.SeenStore, window int, logger *slog.Logger) *Engine {
	context := system.Root

	dedupProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewDedupActor(window, store, metrics, logger.With("actor", "dedup"))
	})
	dedupPID := context.Spawn(dedupProps)

	return &Engine{
		context:        context,
		dedupActor:     dedupPID,
		requestTimeout: defaultRequestTimeout,
	}
}

// GetDedupActor returns the PID of the webhook dedup actor
func (e *Engine) GetDedupActor() *actor.PID {
	return e.dedupActor
}

// MarkSeen records key and reports whether it was already in the window
func (e *Engine) MarkSeen(ctx context.Context, key string) (bool, error) {
	result, err := e.request(ctx, &actors.MarkSeenMsg{Key: key})
	if err != nil {
		return false, err
	}
	res, ok := result.(*actors.MarkSeenResult)
	if !ok {
		return false, utils.NewAppError(utils.ErrActorTimeout, "unexpected dedup reply", nil)
	}
	return res.Duplicate, nil
}

// Forget removes key from the window
func (e *Engine) Forget(ctx context.Context, key string) error {
	_, err := e.request(ctx, &actors.ForgetMsg{Key: key})
	return err
}

// SeenCount reports how many keys the window currently holds
func (e *Engine) SeenCount(ctx context.Context) (int, error) {
	result, err := e.request(ctx, &actors.GetCountsMsg{})
	if err != nil {
		return 0, err
	}
	count, _ := result.(int)
	return count, nil
}

// Stop terminates the engine's actors and waits for them to exit
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		_ = e.context.StopFuture(e.dedupActor).Wait()
	})
}

func (e *Engine) request(ctx context.Context, msg interface{}) (interface{}, error) {
	timeout := e.requestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, utils.NewActorTimeoutError("dedup", context.DeadlineExceeded)
	}

	result, err := e.context.RequestFuture(e.dedupActor, msg, timeout).Result()
	if err != nil {
		if errors.Is(err, actor.ErrTimeout) {
			return nil, utils.NewActorTimeoutError("dedup", err)
		}
		return nil, utils.NewAppError(utils.ErrActorTimeout, "dedup actor request failed", err)
	}
	return result, nil
}
