package store

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/mixed"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/postgres"
	"github.com/google/uuid"
)

// testStore connects with RTD_TEST_POSTGRES_* settings (defaults match the
// development config) and skips when the database is unreachable.
func testStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.PostgresConfig{
		Host:            envOr("RTD_TEST_POSTGRES_HOST", "localhost"),
		Port:            5432,
		Database:        envOr("RTD_TEST_POSTGRES_DB", "rankturbulence"),
		User:            envOr("RTD_TEST_POSTGRES_USER", "rankturbulence"),
		Password:        envOr("RTD_TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}
	if p, err := strconv.Atoi(os.Getenv("RTD_TEST_POSTGRES_PORT")); err == nil {
		cfg.Port = p
	}
	db, err := postgres.New(cfg)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := New(db, nil)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestSaveAndGetRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	run := comparison.Run{
		ID:              uuid.NewString(),
		Alpha:           "0.333",
		Mode:            "all-present",
		Label1:          "2019",
		Label2:          "2020",
		Items:           3,
		Normalization:   3.25,
		TotalDivergence: 0.41,
		TopShift: []mixed.ShiftEntry{
			{Type: "b", Label: "b (2 ⇋ 3)", Rank1: 2, Rank2: 3, RankDiff: -1, Metric: -0.2},
		},
		ComputedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("second SaveRun should be a no-op: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Label2 != "2020" || got.Normalization != 3.25 || len(got.TopShift) != 1 {
		t.Errorf("run = %+v", got)
	}
	if !got.ComputedAt.Equal(run.ComputedAt) {
		t.Errorf("computed_at = %v, want %v", got.ComputedAt, run.ComputedAt)
	}

	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("ListRuns(1) returned %d runs", len(runs))
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetRun(context.Background(), uuid.NewString())
	if !errors.Is(err, apperrors.ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}
