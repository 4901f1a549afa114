package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"calendar-proxy/internal/logging"
	"calendar-proxy/simulator"
)

func main() {
	config := simulator.DefaultSimConfig()
	flag.IntVar(&config.NumUsers, "users", config.NumUsers, "number of simulated users")
	flag.DurationVar(&config.SimulationTime, "duration", config.SimulationTime, "how long to run")
	flag.Float64Var(&config.StatusFrequency, "status-rate", config.StatusFrequency, "status checks per connected user per minute")
	flag.Float64Var(&config.DisconnectRate, "disconnect-rate", config.DisconnectRate, "per-second disconnect probability")
	flag.Float64Var(&config.ReconnectRate, "reconnect-rate", config.ReconnectRate, "per-second reconnect probability")
	flag.IntVar(&config.Concurrency, "concurrency", config.Concurrency, "concurrent requests in flight")
	flag.StringVar(&config.ProxyURL, "proxy", config.ProxyURL, "proxy base URL")
	debug := flag.Bool("debug", false, "log individual request failures")
	flag.Parse()

	logger := logging.New(logging.Options{Debug: *debug})

	ctx, cancel := context.WithTimeout(context.Background(), config.SimulationTime)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := simulator.NewSimulator(config, logger)
	if err := sim.Run(ctx); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}

	m := sim.GetMetrics()
	logger.Info("simulation completed",
		"users", m.TotalUsers,
		"active_users", m.ActiveUsers,
		"requests", m.TotalRequests,
		"status_checks", m.StatusChecks,
		"connects", m.Connects,
		"disconnects", m.Disconnects,
		"errors", m.ErrorCount,
		"p50", m.P50Latency,
		"p95", m.P95Latency,
		"p99", m.P99Latency,
	)
}
