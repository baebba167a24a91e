// Command rtdserver serves the rank-turbulence comparison API.
//
// Redis (report cache), PostgreSQL (run history) and Kafka (completion
// events) are used when enabled in the config; the API works without them.
//
// Usage:
//
//	go run ./cmd/rtdserver [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison/handler"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/config"
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

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting rank-turbulence server",
		"port", cfg.Server.Port,
		"default_alpha", cfg.Divergence.DefaultAlpha,
		"normalization_mode", cfg.Divergence.NormalizationMode,
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

	h := handler.New(app.Service, cfg.Server.MaxBodyBytes)
	mux := h.Routes()
	mux.HandleFunc("GET /health/live", app.Checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", app.Checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
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

	slog.Info("rank-turbulence server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("rank-turbulence server stopped")
}
