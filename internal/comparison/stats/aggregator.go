// Package stats aggregates comparison.completed events in memory and serves
// the running totals over HTTP.
package stats

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/logger"
)

// maxSamples bounds the divergence samples kept for percentiles. Older
// samples are overwritten ring-buffer style.
const maxSamples = 10000

type Summary struct {
	TotalRuns         int64        `json:"total_runs"`
	TotalItems        int64        `json:"total_items"`
	AvgDivergence     float64      `json:"avg_divergence"`
	P50Divergence     float64      `json:"p50_divergence"`
	P95Divergence     float64      `json:"p95_divergence"`
	MaxDivergence     float64      `json:"max_divergence"`
	RunsByAlpha       []AlphaCount `json:"runs_by_alpha"`
	RunsPerMinute     float64      `json:"runs_per_minute"`
	LastRunAt         *time.Time   `json:"last_run_at,omitempty"`
	MalformedMessages int64        `json:"malformed_messages"`
}

type AlphaCount struct {
	Alpha string `json:"alpha"`
	Count int64  `json:"count"`
}

type Aggregator struct {
	totalRuns  atomic.Int64
	totalItems atomic.Int64
	malformed  atomic.Int64

	mu          sync.RWMutex
	samples     []float64
	next        int
	alphaCounts map[string]int64
	lastRunAt   time.Time
	startTime   time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		samples:     make([]float64, 0, 1024),
		alphaCounts: make(map[string]int64),
		startTime:   time.Now(),
		logger:      logger.WithComponent("stats-aggregator"),
	}
}

// HandleEvent is a kafka.MessageHandler for the completed topic. Undecodable
// messages are counted and committed.
func (a *Aggregator) HandleEvent(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[comparison.CompletedEvent](value)
	if err != nil || event.RunID == "" {
		a.malformed.Add(1)
		a.logger.Warn("skipping undecodable completed event", "key", string(key), "error", err)
		return nil
	}
	a.Record(event)
	return nil
}

func (a *Aggregator) Record(event comparison.CompletedEvent) {
	a.totalRuns.Add(1)
	a.totalItems.Add(int64(event.Items))

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.samples) < maxSamples {
		a.samples = append(a.samples, event.TotalDivergence)
	} else {
		a.samples[a.next] = event.TotalDivergence
		a.next = (a.next + 1) % maxSamples
	}
	a.alphaCounts[event.Alpha]++
	if event.Timestamp.After(a.lastRunAt) {
		a.lastRunAt = event.Timestamp
	}
}

func (a *Aggregator) Summary() Summary {
	s := Summary{
		TotalRuns:         a.totalRuns.Load(),
		TotalItems:        a.totalItems.Load(),
		MalformedMessages: a.malformed.Load(),
	}

	a.mu.RLock()
	sorted := make([]float64, len(a.samples))
	copy(sorted, a.samples)
	s.RunsByAlpha = make([]AlphaCount, 0, len(a.alphaCounts))
	for alpha, n := range a.alphaCounts {
		s.RunsByAlpha = append(s.RunsByAlpha, AlphaCount{Alpha: alpha, Count: n})
	}
	if !a.lastRunAt.IsZero() {
		last := a.lastRunAt
		s.LastRunAt = &last
	}
	started := a.startTime
	a.mu.RUnlock()

	sort.Slice(s.RunsByAlpha, func(i, j int) bool {
		if s.RunsByAlpha[i].Count != s.RunsByAlpha[j].Count {
			return s.RunsByAlpha[i].Count > s.RunsByAlpha[j].Count
		}
		return s.RunsByAlpha[i].Alpha < s.RunsByAlpha[j].Alpha
	})

	if len(sorted) > 0 {
		sort.Float64s(sorted)
		var sum float64
		for _, d := range sorted {
			sum += d
		}
		s.AvgDivergence = sum / float64(len(sorted))
		s.P50Divergence = percentile(sorted, 50)
		s.P95Divergence = percentile(sorted, 95)
		s.MaxDivergence = sorted[len(sorted)-1]
	}
	if elapsed := time.Since(started).Minutes(); elapsed > 0 {
		s.RunsPerMinute = float64(s.TotalRuns) / elapsed
	}
	return s
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
