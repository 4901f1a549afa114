package actors

import (
	"context"
	"log/slog"
	"time"

	"github.com/asynkron/protoactor-go/actor"
)

const (
	// storeTimeout bounds a single store call
	storeTimeout = 2 * time.Second

	// storeQueueSize caps pending writes; the oldest is dropped when full
	storeQueueSize = 1024
)

// Message types for StoreWriterActor
type (
	SaveKeyMsg struct {
		Key string
	}

	DeleteKeyMsg struct {
		Key string
	}
)

// StoreWriterActor applies dedup window changes to the SeenStore in arrival
// order, off the dedup actor's mailbox.
type StoreWriterActor struct {
	store  SeenStore
	logger *slog.Logger
}

func NewStoreWriterActor(store SeenStore, logger *slog.Logger) *StoreWriterActor {
	return &StoreWriterActor{store: store, logger: logger}
}

// storeWriterProps builds props with a dropping bounded mailbox so a stalled
// store never blocks the sender
func storeWriterProps(store SeenStore, logger *slog.Logger) *actor.Props {
	return actor.PropsFromProducer(func() actor.Actor {
		return NewStoreWriterActor(store, logger)
	}, actor.WithMailbox(actor.BoundedDropping(storeQueueSize)))
}

func (w *StoreWriterActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *SaveKeyMsg:
		w.apply("save", msg.Key, w.store.Save)
	case *DeleteKeyMsg:
		w.apply("delete", msg.Key, w.store.Delete)
	}
}

func (w *StoreWriterActor) apply(op, key string, fn func(context.Context, string) error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := fn(ctx, key); err != nil {
		w.logger.Warn("processed webhook store write failed", "op", op, "key", key, "error", err)
	}
}
