package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/mixed"
	"github.com/spf13/cobra"
)

const benchLongDesc string = `Load test a running rtdserver.

Each worker POSTs synthetic Zipf-like frequency lists to /api/v1/compare
until the duration elapses, then a latency and status code summary is
printed. Every request uses fresh lists unless --repeat is set, in which
case the same pair is sent so the report cache is exercised.

Examples:
  rtdctl bench --url http://localhost:8080 --concurrency 20 --duration 1m
  rtdctl bench --items 5000 --repeat`

const benchShortDesc string = "Load test the comparison API"

type benchOptions struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	items       int
	repeat      bool
}

type benchStats struct {
	total     atomic.Int64
	success   atomic.Int64
	errors    atomic.Int64
	cacheHits atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func newBenchStats() *benchStats {
	return &benchStats{
		latencies:   make([]time.Duration, 0, 10000),
		statusCodes: make(map[int]int64),
	}
}

func (s *benchStats) record(d time.Duration, status int, cacheHit bool, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.errors.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	s.mu.Unlock()
}

type benchReport struct {
	Requests      int64            `json:"requests"`
	Successful    int64            `json:"successful"`
	Errors        int64            `json:"errors"`
	CacheHits     int64            `json:"cache_hits"`
	ErrorRate     float64          `json:"error_rate"`
	RequestsPerS  float64          `json:"requests_per_second"`
	LatencyMin    string           `json:"latency_min,omitempty"`
	LatencyAvg    string           `json:"latency_avg,omitempty"`
	LatencyP50    string           `json:"latency_p50,omitempty"`
	LatencyP95    string           `json:"latency_p95,omitempty"`
	LatencyP99    string           `json:"latency_p99,omitempty"`
	LatencyMax    string           `json:"latency_max,omitempty"`
	LatencyStdDev string           `json:"latency_stddev,omitempty"`
	StatusCodes   map[string]int64 `json:"status_codes"`
}

func newBenchCmd() *cobra.Command {
	var opts benchOptions
	cmd := &cobra.Command{
		Use:   "bench",
		Short: benchShortDesc,
		Long:  benchLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.concurrency < 1 || opts.items < 1 {
				return fmt.Errorf("--concurrency and --items must be positive")
			}
			alpha, err := alphaFlag(cmd)
			if err != nil {
				return err
			}
			stats := runBench(cmd.Context(), opts, alpha)
			report := stats.report(opts.duration)
			if err := writeJSON(cmd, cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Successful == 0 {
				return fmt.Errorf("no request succeeded, is %s reachable?", opts.baseURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of rtdserver")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 10, "Number of concurrent workers")
	cmd.Flags().DurationVar(&opts.duration, "duration", 30*time.Second, "Test duration")
	cmd.Flags().IntVar(&opts.items, "items", 1000, "Types per synthetic list")
	cmd.Flags().BoolVar(&opts.repeat, "repeat", false, "Send the same pair every time")
	return cmd
}

func runBench(ctx context.Context, opts benchOptions, alpha string) *benchStats {
	if ctx == nil {
		ctx = context.Background()
	}
	stats := newBenchStats()
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        opts.concurrency * 2,
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	fixed := syntheticBody(alpha, opts.items, 1)
	url := opts.baseURL + "/api/v1/compare"

	var wg sync.WaitGroup
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			seed := uint64(workerID+1) << 32
			for ctx.Err() == nil {
				body := fixed
				if !opts.repeat {
					seed++
					body = syntheticBody(alpha, opts.items, seed)
				}
				start := time.Now()
				status, hit, err := postCompare(ctx, client, url, body)
				if ctx.Err() != nil {
					return
				}
				stats.record(time.Since(start), status, hit, err)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

func postCompare(ctx context.Context, client *http.Client, url string, body []byte) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	var partial struct {
		CacheHit bool `json:"cache_hit"`
	}
	if resp.StatusCode == http.StatusOK {
		_ = json.NewDecoder(resp.Body).Decode(&partial)
	}
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, partial.CacheHit, nil
}

// syntheticBody builds a compare request whose two lists share most types
// and follow a noisy 1/rank count profile.
func syntheticBody(alpha string, items int, seed uint64) []byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	system := func() []mixed.Element {
		out := make([]mixed.Element, 0, items)
		for i := 0; i < items; i++ {
			if rng.Float64() < 0.05 {
				continue
			}
			count := math.Round(1e5 / float64(i+1) * (0.5 + rng.Float64()))
			out = append(out, mixed.Element{Type: "t" + strconv.Itoa(i), Count: count})
		}
		return out
	}
	req := struct {
		Alpha   string          `json:"alpha"`
		Label1  string          `json:"label1"`
		Label2  string          `json:"label2"`
		System1 []mixed.Element `json:"system1"`
		System2 []mixed.Element `json:"system2"`
		Top     int             `json:"top"`
	}{alpha, "bench-a", "bench-b", system(), system(), 10}
	data, _ := json.Marshal(req)
	return data
}

func (s *benchStats) report(elapsed time.Duration) benchReport {
	r := benchReport{
		Requests:    s.total.Load(),
		Successful:  s.success.Load(),
		Errors:      s.errors.Load(),
		CacheHits:   s.cacheHits.Load(),
		StatusCodes: make(map[string]int64),
	}
	if r.Requests > 0 {
		r.ErrorRate = float64(r.Errors) / float64(r.Requests)
		r.RequestsPerS = float64(r.Requests) / elapsed.Seconds()
	}

	s.mu.Lock()
	latencies := make([]time.Duration, len(s.latencies))
	copy(latencies, s.latencies)
	for code, n := range s.statusCodes {
		r.StatusCodes[strconv.Itoa(code)] = n
	}
	s.mu.Unlock()

	if len(latencies) == 0 {
		return r
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg := sum / time.Duration(len(latencies))
	var sumSquared float64
	for _, l := range latencies {
		diff := float64(l - avg)
		sumSquared += diff * diff
	}
	r.LatencyMin = latencies[0].String()
	r.LatencyAvg = avg.String()
	r.LatencyP50 = latencyPercentile(latencies, 50).String()
	r.LatencyP95 = latencyPercentile(latencies, 95).String()
	r.LatencyP99 = latencyPercentile(latencies, 99).String()
	r.LatencyMax = latencies[len(latencies)-1].String()
	r.LatencyStdDev = time.Duration(math.Sqrt(sumSquared / float64(len(latencies)))).String()
	return r
}

func latencyPercentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
