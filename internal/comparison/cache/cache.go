// Package cache keeps finished comparison reports in Redis so identical
// requests skip the kernel. Concurrent misses on the same key are collapsed
// into one computation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	pkgredis "github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "rtd:report:"

// KV is the subset of the Redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type ReportCache struct {
	client KV
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client KV, ttl time.Duration) *ReportCache {
	return &ReportCache{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "report-cache"),
	}
}

func (c *ReportCache) Get(ctx context.Context, key string) (*comparison.Report, bool) {
	full := keyPrefix + key
	data, err := c.client.Get(ctx, full)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", full, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var report comparison.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		c.logger.Error("cache unmarshal failed", "key", full, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", full, "run_id", report.RunID)
	return &report, true
}

func (c *ReportCache) Set(ctx context.Context, key string, report *comparison.Report) {
	full := keyPrefix + key
	data, err := json.Marshal(report)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", full, "error", err)
		return
	}
	if err := c.client.Set(ctx, full, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", full, "error", err)
	}
}

// GetOrCompute returns the cached report for key, or runs computeFn once
// for all concurrent callers and caches its result. The shared computation
// does not inherit the first caller's cancellation, so one disconnecting
// client cannot fail the others waiting on the same key.
func (c *ReportCache) GetOrCompute(
	ctx context.Context,
	key string,
	computeFn func(context.Context) (*comparison.Report, error),
) (*comparison.Report, bool, error) {
	if report, ok := c.Get(ctx, key); ok {
		return report, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		shared := context.WithoutCancel(ctx)
		if report, ok := c.Get(shared, key); ok {
			return report, nil
		}
		report, err := computeFn(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, key, report)
		return report, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*comparison.Report), false, nil
}

func (c *ReportCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *ReportCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
