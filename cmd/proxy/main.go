package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calendar-proxy/internal/config"
	"calendar-proxy/internal/database"
	"calendar-proxy/internal/engine"
	"calendar-proxy/internal/engine/actors"
	"calendar-proxy/internal/handlers"
	"calendar-proxy/internal/logging"
	"calendar-proxy/internal/upstream"
	"calendar-proxy/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var printConfig bool
	flag.BoolVar(&printConfig, "print-config", false, "print resolved configuration and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if printConfig {
		fmt.Fprintf(os.Stdout, "listen_addr=%s\nupstream=%s\ndedup_window=%d\n",
			cfg.Addr(), cfg.Upstream.BaseURL, cfg.Webhook.DedupWindow)
		return
	}

	logger := logging.New(logging.Options{Format: cfg.LogFormat, Debug: cfg.Debug})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("proxy stopped", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains in-flight requests
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics := utils.NewMetricsCollector()

	var store actors.SeenStore
	if cfg.Database.URI != "" {
		mongodb, err := database.NewMongoDB(ctx, cfg.Database.URI, cfg.Database.Name, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := mongodb.Close(context.Background()); err != nil {
				logger.Warn("failed to close MongoDB", "error", err)
			}
		}()
		if pruned, err := mongodb.Prune(ctx, cfg.Webhook.DedupWindow); err != nil {
			logger.Warn("failed to prune processed webhooks", "error", err)
		} else if pruned > 0 {
			logger.Info("pruned processed webhooks", "count", pruned)
		}
		store = mongodb
	} else {
		logger.Info("MONGODB_URI not set, webhook dedup is in-memory only")
	}

	system := actor.NewActorSystem()
	proxyEngine := engine.NewEngine(system, metrics, store, cfg.Webhook.DedupWindow, logger)
	defer proxyEngine.Stop()

	server := handlers.NewServer(cfg, proxyEngine, upstream.NewClient(cfg.Upstream, nil), metrics, logger)
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting proxy", "addr", cfg.Addr(), "upstream", cfg.Upstream.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
