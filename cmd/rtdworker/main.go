// Command rtdworker consumes comparison jobs from Kafka, runs them through
// the comparison service and publishes a completion event per run.
//
// Usage:
//
//	go run ./cmd/rtdworker [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/worker"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Kafka.Enabled {
		fmt.Fprintln(os.Stderr, "rtdworker requires kafka.enabled: true")
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting comparison worker",
		"topic", cfg.Kafka.Topics.ComparisonJobs,
		"group", cfg.Kafka.ConsumerGroup,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	app, err := bootstrap.New(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to initialize service", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	w := worker.New(app.Service, m)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ComparisonJobs, w.Handle)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", app.Checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", app.Checker.ReadyHandler())
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.RequestID(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()

	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("health server shutdown error", "error", err)
	}
	slog.Info("comparison worker stopped")
}
