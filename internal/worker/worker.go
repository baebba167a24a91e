// Package worker runs comparison jobs consumed from Kafka.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	apperrors "github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/resilience"
)

// Job is the message body on the comparison jobs topic.
type Job struct {
	JobID   string             `json:"job_id"`
	Request comparison.Request `json:"request"`
}

// Comparer is satisfied by *comparison.Service.
type Comparer interface {
	Compare(ctx context.Context, req comparison.Request) (*comparison.Report, error)
}

type Worker struct {
	svc     Comparer
	metrics *metrics.Metrics
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// New creates a Worker. m may be nil.
func New(svc Comparer, m *metrics.Metrics) *Worker {
	return &Worker{
		svc:     svc,
		metrics: m,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Retryable:    func(err error) bool { return !isPermanent(err) },
		},
		logger: logger.WithComponent("comparison-worker"),
	}
}

// Handle is a kafka.MessageHandler. The consumer does not refetch a message
// whose handler failed, so transient failures are retried here with backoff.
// Every outcome except shutdown returns nil and the message is committed:
// undecodable and invalid jobs can never succeed, and a job that exhausted
// its retries is logged and counted as failed.
func (w *Worker) Handle(ctx context.Context, key, value []byte) error {
	job, err := kafka.DecodeJSON[Job](value)
	if err != nil {
		w.record("malformed")
		w.logger.Error("dropping malformed job", "key", string(key), "error", err)
		return nil
	}
	if job.JobID != "" {
		ctx = logger.WithRequestID(ctx, job.JobID)
	}
	log := logger.FromContext(ctx)

	var report *comparison.Report
	err = resilience.Retry(ctx, "comparison-job", w.retry, func() error {
		var err error
		report, err = w.svc.Compare(ctx, job.Request)
		return err
	})
	switch {
	case err == nil:
	case isPermanent(err):
		w.record("rejected")
		log.Warn("job rejected", "job_id", job.JobID, "error", err)
		return nil
	case ctx.Err() != nil:
		// Shutdown: leave the job uncommitted for the next session.
		w.record("error")
		return fmt.Errorf("processing job %s: %w", job.JobID, err)
	default:
		w.record("failed")
		log.Error("job failed after retries",
			"job_id", job.JobID,
			"attempts", w.retry.MaxAttempts,
			"error", err,
		)
		return nil
	}
	w.record("ok")
	log.Info("job processed",
		"job_id", job.JobID,
		"run_id", report.RunID,
		"items", report.Items,
		"total_divergence", report.TotalDivergence,
	)
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidInput) ||
		errors.Is(err, apperrors.ErrDegenerateInput) ||
		errors.Is(err, apperrors.ErrTooManyItems)
}

func (w *Worker) record(status string) {
	if w.metrics != nil {
		w.metrics.JobsProcessedTotal.WithLabelValues(status).Inc()
	}
}
