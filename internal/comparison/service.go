// Package comparison runs rank-turbulence comparisons end to end: it aligns
// two frequency lists, runs the rtd kernel, summarizes the per-type
// contributions, and hands the outcome to the optional cache, run store and
// event publisher.
package comparison

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/mixed"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/rtd"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/resilience"
	"github.com/google/uuid"
)

// storedShiftEntries is how many shift entries a persisted run keeps.
const storedShiftEntries = 50

// Cache stores finished reports by CacheKey.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, computeFn func(context.Context) (*Report, error)) (*Report, bool, error)
	Invalidate(ctx context.Context) error
}

// RunStore persists run summaries.
type RunStore interface {
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// EventTracker accepts completion events for asynchronous publishing.
type EventTracker interface {
	Track(event any)
}

// Deps are the optional collaborators of a Service. Nil fields disable the
// corresponding feature.
type Deps struct {
	Cache   Cache
	Store   RunStore
	Events  EventTracker
	Metrics *metrics.Metrics
}

// Service is safe for concurrent use.
type Service struct {
	calc         *rtd.Calculator
	mode         rtd.NormalizationMode
	defaultAlpha rtd.Alpha
	defaultTop   int
	maxItems     int
	timeout      time.Duration
	deps         Deps
	logger       *slog.Logger
}

// New builds a Service from the divergence config.
func New(cfg config.DivergenceConfig, deps Deps) (*Service, error) {
	alpha, err := rtd.ParseAlphaString(cfg.DefaultAlpha)
	if err != nil {
		return nil, fmt.Errorf("default alpha: %w", err)
	}
	mode := rtd.ParseNormalizationMode(cfg.NormalizationMode)
	return &Service{
		calc: rtd.NewCalculator(rtd.Options{
			Mode:              mode,
			ParallelThreshold: cfg.ParallelThreshold,
		}),
		mode:         mode,
		defaultAlpha: alpha,
		defaultTop:   cfg.DefaultTop,
		maxItems:     cfg.MaxItems,
		timeout:      cfg.ComputeTimeout,
		deps:         deps,
		logger:       slog.Default().With("component", "comparison-service"),
	}, nil
}

// Divergence validates four aligned vectors and runs the kernel on them.
func (s *Service) Divergence(ctx context.Context, req VectorRequest) (*rtd.Result, error) {
	alpha := s.resolveAlpha(req.Alpha)
	if err := s.checkSize(len(req.Ranks1)); err != nil {
		return nil, err
	}
	items, err := rtd.Zip(req.Ranks1, req.Ranks2, req.Counts1, req.Counts2)
	if err != nil {
		s.observe(alpha, "invalid", 0, len(req.Ranks1))
		return nil, err
	}
	res, err := s.run(ctx, items, alpha)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Compare aligns the two systems, computes their divergence and builds a
// Report. Cached reports keep the run ID of the computation that produced
// them.
func (s *Service) Compare(ctx context.Context, req Request) (*Report, error) {
	alpha := s.resolveAlpha(req.Alpha)
	top := req.Top
	if top <= 0 {
		top = s.defaultTop
	}
	if len(req.System1) == 0 && len(req.System2) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "both systems are empty")
	}
	if err := s.checkSize(len(req.System1) + len(req.System2)); err != nil {
		return nil, err
	}

	compute := func(ctx context.Context) (*Report, error) { return s.compute(ctx, req, alpha, top) }
	if s.deps.Cache == nil {
		return compute(ctx)
	}
	key, err := CacheKey(req, alpha, s.mode, top)
	if err != nil {
		return nil, err
	}
	report, hit, err := s.deps.Cache.GetOrCompute(ctx, key, compute)
	if err != nil {
		return nil, err
	}
	if s.deps.Metrics != nil {
		if hit {
			s.deps.Metrics.CacheHitsTotal.Inc()
		} else {
			s.deps.Metrics.CacheMissesTotal.Inc()
		}
	}
	out := *report
	out.CacheHit = hit
	return &out, nil
}

func (s *Service) compute(ctx context.Context, req Request, alpha rtd.Alpha, top int) (*Report, error) {
	log := logger.FromContext(ctx)
	sys1, sys2 := mixed.Combine(req.System1, req.System2)
	items, err := rtd.Zip(sys1.Ranks, sys2.Ranks, sys1.Counts, sys2.Counts)
	if err != nil {
		s.observe(alpha, "invalid", 0, len(sys1.Types))
		return nil, err
	}
	res, err := s.run(ctx, items, alpha)
	if err != nil {
		return nil, err
	}

	diamond := mixed.DiamondCounts(sys1, sys2, res.DivergenceElements)
	report := &Report{
		RunID:           uuid.NewString(),
		Alpha:           alpha,
		Mode:            s.mode.String(),
		Label1:          req.Label1,
		Label2:          req.Label2,
		Items:           len(items),
		Normalization:   res.Normalization,
		TotalDivergence: res.Total(),
		MaxLog10Rank:    mixed.RankMaxLog10(sys1, sys2),
		Shift:           mixed.Top(mixed.WordShift(sys1, sys2, res.DivergenceElements), top),
		Balance:         mixed.Balance(typesOf(req.System1), typesOf(req.System2)),
		Counts:          diamond.Counts,
		MaxCountLog:     diamond.MaxCountLog,
		MaxDeltaLoss:    diamond.MaxDeltaLoss,
		ComputedAt:      time.Now().UTC(),
	}
	log.Info("comparison computed",
		"run_id", report.RunID,
		"alpha", alpha.String(),
		"items", report.Items,
		"normalization", report.Normalization,
		"total_divergence", report.TotalDivergence,
	)

	s.persist(ctx, report)
	if s.deps.Events != nil {
		s.deps.Events.Track(CompletedEvent{
			RunID:           report.RunID,
			Alpha:           alpha.String(),
			Items:           report.Items,
			Normalization:   report.Normalization,
			TotalDivergence: report.TotalDivergence,
			RequestID:       middleware.GetRequestID(ctx),
			Timestamp:       report.ComputedAt,
		})
	}
	return report, nil
}

// run executes the kernel under the compute timeout and records metrics.
func (s *Service) run(ctx context.Context, items []rtd.AlignedItem, alpha rtd.Alpha) (rtd.Result, error) {
	start := time.Now()
	var res rtd.Result
	err := resilience.WithTimeout(ctx, s.timeout, "rtd-compute", func(context.Context) error {
		var err error
		res, err = s.calc.Divergence(items, alpha)
		return err
	})
	elapsed := time.Since(start)
	switch {
	case err == nil:
		s.observe(alpha, "ok", elapsed, len(items))
	case errors.Is(err, apperrors.ErrDegenerateInput):
		s.observe(alpha, "degenerate", elapsed, len(items))
		return rtd.Result{}, err
	case errors.Is(err, context.DeadlineExceeded):
		s.observe(alpha, "timeout", elapsed, len(items))
		return rtd.Result{}, apperrors.Newf(apperrors.ErrTimeout, http.StatusServiceUnavailable,
			"computation over %d items exceeded %v", len(items), s.timeout)
	default:
		s.observe(alpha, "error", elapsed, len(items))
		return rtd.Result{}, err
	}
	return res, nil
}

func (s *Service) persist(ctx context.Context, report *Report) {
	if s.deps.Store == nil {
		return
	}
	status := "ok"
	if err := s.deps.Store.SaveRun(ctx, RunFromReport(report, storedShiftEntries)); err != nil {
		status = "error"
		s.logger.Error("failed to persist run", "run_id", report.RunID, "error", err)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RunsPersistedTotal.WithLabelValues(status).Inc()
	}
}

// GetRun loads a persisted run.
func (s *Service) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.deps.Store == nil {
		return nil, apperrors.New(apperrors.ErrRunNotFound, http.StatusNotFound, "run history is disabled")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "run id %q is not a UUID", id)
	}
	return s.deps.Store.GetRun(ctx, id)
}

// ListRuns returns the most recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if s.deps.Store == nil {
		return []Run{}, nil
	}
	return s.deps.Store.ListRuns(ctx, limit)
}

// InvalidateCache drops every cached report.
func (s *Service) InvalidateCache(ctx context.Context) error {
	if s.deps.Cache == nil {
		return nil
	}
	return s.deps.Cache.Invalidate(ctx)
}

func (s *Service) resolveAlpha(a *rtd.Alpha) rtd.Alpha {
	if a == nil {
		return s.defaultAlpha
	}
	return *a
}

func (s *Service) checkSize(n int) error {
	if s.maxItems > 0 && n > s.maxItems {
		return apperrors.Newf(apperrors.ErrTooManyItems, http.StatusRequestEntityTooLarge,
			"%d items exceeds the limit of %d", n, s.maxItems)
	}
	return nil
}

func (s *Service) observe(alpha rtd.Alpha, result string, elapsed time.Duration, items int) {
	if s.deps.Metrics == nil {
		return
	}
	branch := alpha.Kind().String()
	s.deps.Metrics.ComputationsTotal.WithLabelValues(branch, result).Inc()
	if result == "invalid" {
		return
	}
	s.deps.Metrics.ComputeDuration.WithLabelValues(branch).Observe(elapsed.Seconds())
	s.deps.Metrics.ItemsPerComputation.Observe(float64(items))
}

func typesOf(elems []mixed.Element) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e.Type
	}
	return out
}
