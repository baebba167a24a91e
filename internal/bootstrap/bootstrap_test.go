package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/mixed"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func TestNewWithBackendsDisabled(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Redis.Enabled = false
	cfg.Postgres.Enabled = false
	cfg.Kafka.Enabled = false

	app, err := New(context.Background(), cfg, metrics.New(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Close()

	report := app.Checker.Run(context.Background())
	if report.Status != health.StatusUp {
		t.Errorf("health = %+v, want up", report)
	}
	got, err := app.Service.Compare(context.Background(), comparison.Request{
		System1: []mixed.Element{{Type: "a", Count: 1}},
		System2: []mixed.Element{{Type: "b", Count: 1}},
	})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if got.Items != 2 {
		t.Errorf("items = %d, want 2", got.Items)
	}
}

func TestNewRejectsBadDefaultAlpha(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Redis.Enabled, cfg.Postgres.Enabled, cfg.Kafka.Enabled = false, false, false
	cfg.Divergence.DefaultAlpha = "fast"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unparsable default alpha")
	}
}

func TestPingHealth(t *testing.T) {
	ctx := context.Background()
	ok := func(context.Context) error { return nil }
	bad := func(context.Context) error { return errors.New("refused") }

	tests := []struct {
		name      string
		connected bool
		enabled   bool
		ping      func(context.Context) error
		want      health.Status
	}{
		{"disabled", false, false, nil, health.StatusUp},
		{"not connected", false, true, nil, health.StatusDegraded},
		{"ping ok", true, true, ok, health.StatusUp},
		{"ping failed", true, true, bad, health.StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pingHealth(ctx, tt.connected, tt.enabled, tt.ping); got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
		})
	}
}
