// Command rtdstats consumes comparison.completed events, aggregates them in
// memory (run counts, divergence percentiles, runs per alpha) and exposes
// GET /api/v1/stats for dashboards.
//
// Usage:
//
//	go run ./cmd/rtdstats [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison/stats"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/logger"
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
		fmt.Fprintln(os.Stderr, "rtdstats requires kafka.enabled: true")
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting stats service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Separate group so every completed event reaches the aggregator even
	// when workers share the base group.
	kafkaCfg := cfg.Kafka
	kafkaCfg.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-stats"

	aggregator := stats.NewAggregator()
	consumer := kafka.NewConsumer(kafkaCfg, cfg.Kafka.Topics.ComparisonCompleted, aggregator.HandleEvent)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("stats aggregator started", "topic", cfg.Kafka.Topics.ComparisonCompleted)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/stats", stats.NewHandler(aggregator).Summary)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.RequestID(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("stats service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("stats service stopped")
}
