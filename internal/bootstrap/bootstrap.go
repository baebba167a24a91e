// Package bootstrap connects the optional Redis, PostgreSQL and Kafka
// backends named in the config and builds a comparison.Service on top of
// whichever of them are enabled and reachable.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison/cache"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison/events"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison/store"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/resilience"
)

const eventBufferSize = 10000

// App is a wired service plus the resources that must be released on exit.
type App struct {
	Service *comparison.Service
	Checker *health.Checker
	Metrics *metrics.Metrics

	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// New wires the service. A backend that is enabled but unreachable is
// logged and skipped; the service then runs without it.
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*App, error) {
	app := &App{Checker: health.NewChecker(), Metrics: m}
	deps := comparison.Deps{Metrics: m}

	redisClient := app.connectRedis(cfg.Redis)
	if redisClient != nil {
		deps.Cache = cache.New(redisClient, cfg.Redis.CacheTTL)
	}
	app.Checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		return pingHealth(ctx, redisClient != nil, cfg.Redis.Enabled, pingFunc(redisClient))
	})

	runStore := app.connectPostgres(ctx, cfg.Postgres, m)
	if runStore != nil {
		deps.Store = runStore
	}
	app.Checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		var ping func(context.Context) error
		if runStore != nil {
			ping = runStore.Ping
		}
		return pingHealth(ctx, runStore != nil, cfg.Postgres.Enabled, ping)
	})

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ComparisonCompleted)
		collector := events.NewCollector(producer, eventBufferSize, m)
		collector.Start(ctx)
		app.closers = append(app.closers, func() {
			collector.Close()
			producer.Close()
		})
		deps.Events = collector
		slog.Info("completion events enabled", "topic", cfg.Kafka.Topics.ComparisonCompleted)
	}

	svc, err := comparison.New(cfg.Divergence, deps)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("building comparison service: %w", err)
	}
	app.Service = svc
	return app, nil
}

func (a *App) connectRedis(cfg config.RedisConfig) *pkgredis.Client {
	if !cfg.Enabled {
		return nil
	}
	client, err := pkgredis.NewClient(cfg)
	if err != nil {
		slog.Warn("redis unavailable, report caching disabled", "error", err)
		return nil
	}
	a.closers = append(a.closers, func() { client.Close() })
	slog.Info("report cache enabled", "addr", cfg.Addr, "ttl", cfg.CacheTTL)
	return client
}

func (a *App) connectPostgres(ctx context.Context, cfg config.PostgresConfig, m *metrics.Metrics) *store.Store {
	if !cfg.Enabled {
		return nil
	}
	db, err := postgres.New(cfg)
	if err != nil {
		slog.Warn("postgres unavailable, run history disabled", "error", err)
		return nil
	}
	a.closers = append(a.closers, func() { db.Close() })

	breaker := resilience.NewCircuitBreaker("postgres-runs", resilience.CircuitBreakerConfig{
		OnStateChange: func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	s := store.New(db, breaker)
	if err := s.EnsureSchema(ctx); err != nil {
		slog.Warn("run schema unavailable, run history disabled", "error", err)
		return nil
	}
	slog.Info("run history enabled", "host", cfg.Host, "database", cfg.Database)
	return s
}

func pingFunc(c *pkgredis.Client) func(context.Context) error {
	if c == nil {
		return nil
	}
	return c.Ping
}

// pingHealth reports a disabled backend as up and an enabled but missing
// one as degraded, since the service keeps working without it.
func pingHealth(ctx context.Context, connected, enabled bool, ping func(context.Context) error) health.ComponentHealth {
	switch {
	case !enabled:
		return health.ComponentHealth{Status: health.StatusUp, Message: "disabled"}
	case !connected:
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "not connected"}
	}
	if err := ping(ctx); err != nil {
		return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
	}
	return health.ComponentHealth{Status: health.StatusUp}
}
