// Package store persists comparison run summaries in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	apperrors "github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/resilience"
)

// Schema creates the runs table. It is applied by EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS comparison_runs (
    id               UUID PRIMARY KEY,
    alpha            TEXT NOT NULL,
    mode             TEXT NOT NULL,
    label1           TEXT NOT NULL DEFAULT '',
    label2           TEXT NOT NULL DEFAULT '',
    items            INTEGER NOT NULL,
    normalization    DOUBLE PRECISION NOT NULL,
    total_divergence DOUBLE PRECISION NOT NULL,
    top_shift        JSONB NOT NULL,
    computed_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS comparison_runs_computed_at_idx ON comparison_runs (computed_at DESC);
`

const maxListLimit = 500

// Store writes runs through a circuit breaker with retries so a flapping
// database does not stall comparisons.
type Store struct {
	db      *postgres.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// New creates a Store. breaker may be nil.
func New(db *postgres.Client, breaker *resilience.CircuitBreaker) *Store {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("postgres-runs", resilience.CircuitBreakerConfig{})
	}
	return &Store{
		db:      db,
		breaker: breaker,
		retry:   resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 50 * time.Millisecond},
		logger:  slog.Default().With("component", "run-store"),
	}
}

// EnsureSchema creates the runs table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, Schema); err != nil {
			return fmt.Errorf("applying run schema: %w", err)
		}
		return nil
	})
}

// SaveRun inserts a run. Writing the same ID twice is a no-op.
func (s *Store) SaveRun(ctx context.Context, run comparison.Run) error {
	shift, err := json.Marshal(run.TopShift)
	if err != nil {
		return fmt.Errorf("marshaling top shift: %w", err)
	}
	return resilience.Retry(ctx, "save-run", s.retry, func() error {
		return s.breaker.Execute(func() error {
			_, err := s.db.DB.ExecContext(ctx,
				`INSERT INTO comparison_runs
				   (id, alpha, mode, label1, label2, items, normalization, total_divergence, top_shift, computed_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				 ON CONFLICT (id) DO NOTHING`,
				run.ID, run.Alpha, run.Mode, run.Label1, run.Label2, run.Items,
				run.Normalization, run.TotalDivergence, shift, run.ComputedAt,
			)
			if err != nil {
				return fmt.Errorf("inserting run %s: %w", run.ID, err)
			}
			s.logger.Debug("run saved", "run_id", run.ID, "items", run.Items)
			return nil
		})
	})
}

// GetRun loads one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*comparison.Run, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT id, alpha, mode, label1, label2, items, normalization, total_divergence, top_shift, computed_at
		   FROM comparison_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrRunNotFound, http.StatusNotFound, "run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]comparison.Run, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, alpha, mode, label1, label2, items, normalization, total_divergence, top_shift, computed_at
		   FROM comparison_runs ORDER BY computed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]comparison.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*comparison.Run, error) {
	var (
		run   comparison.Run
		shift []byte
	)
	if err := row.Scan(&run.ID, &run.Alpha, &run.Mode, &run.Label1, &run.Label2, &run.Items,
		&run.Normalization, &run.TotalDivergence, &shift, &run.ComputedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shift, &run.TopShift); err != nil {
		return nil, fmt.Errorf("unmarshaling top shift: %w", err)
	}
	return &run, nil
}

// Ping checks the database connection for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
