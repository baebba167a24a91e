package stats

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
)

func TestAggregatorSummary(t *testing.T) {
	a := NewAggregator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []comparison.CompletedEvent{
		{RunID: "r1", Alpha: "inf", Items: 10, TotalDivergence: 0.1, Timestamp: base},
		{RunID: "r2", Alpha: "0.333", Items: 20, TotalDivergence: 0.3, Timestamp: base.Add(time.Minute)},
		{RunID: "r3", Alpha: "0.333", Items: 30, TotalDivergence: 0.2, Timestamp: base.Add(-time.Minute)},
	}
	for _, e := range events {
		a.Record(e)
	}

	s := a.Summary()
	if s.TotalRuns != 3 || s.TotalItems != 60 {
		t.Errorf("totals = %d runs, %d items", s.TotalRuns, s.TotalItems)
	}
	if math.Abs(s.AvgDivergence-0.2) > 1e-12 {
		t.Errorf("avg = %v, want 0.2", s.AvgDivergence)
	}
	if s.P50Divergence != 0.2 || s.MaxDivergence != 0.3 {
		t.Errorf("p50 = %v, max = %v", s.P50Divergence, s.MaxDivergence)
	}
	if len(s.RunsByAlpha) != 2 || s.RunsByAlpha[0].Alpha != "0.333" || s.RunsByAlpha[0].Count != 2 {
		t.Errorf("runs by alpha = %+v", s.RunsByAlpha)
	}
	if s.LastRunAt == nil || !s.LastRunAt.Equal(base.Add(time.Minute)) {
		t.Errorf("last run at = %v", s.LastRunAt)
	}
}

func TestAggregatorEmpty(t *testing.T) {
	s := NewAggregator().Summary()
	if s.TotalRuns != 0 || s.AvgDivergence != 0 || s.LastRunAt != nil {
		t.Errorf("empty summary = %+v", s)
	}
	if s.RunsByAlpha == nil {
		t.Error("runs_by_alpha should encode as [] not null")
	}
}

func TestAggregatorSampleWindow(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < maxSamples+5; i++ {
		a.Record(comparison.CompletedEvent{RunID: "r", Alpha: "inf", TotalDivergence: 1})
	}
	if got := len(a.samples); got != maxSamples {
		t.Errorf("samples = %d, want %d", got, maxSamples)
	}
	if got := a.Summary().TotalRuns; got != maxSamples+5 {
		t.Errorf("total runs = %d", got)
	}
}

func TestHandleEvent(t *testing.T) {
	a := NewAggregator()
	ctx := context.Background()

	good, _ := json.Marshal(comparison.CompletedEvent{RunID: "r1", Alpha: "0", Items: 4, TotalDivergence: 0.5})
	tests := []struct {
		name  string
		value []byte
	}{
		{"valid", good},
		{"not json", []byte("{")},
		{"missing run id", []byte(`{"alpha":"inf"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := a.HandleEvent(ctx, []byte("k"), tt.value); err != nil {
				t.Errorf("HandleEvent returned %v, want nil", err)
			}
		})
	}

	s := a.Summary()
	if s.TotalRuns != 1 || s.MalformedMessages != 2 {
		t.Errorf("runs = %d, malformed = %d", s.TotalRuns, s.MalformedMessages)
	}
}

func TestHandlerSummary(t *testing.T) {
	a := NewAggregator()
	a.Record(comparison.CompletedEvent{RunID: "r1", Alpha: "inf", Items: 3, TotalDivergence: 0.25})

	rec := httptest.NewRecorder()
	NewHandler(a).Summary(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got Summary
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.TotalRuns != 1 || got.MaxDivergence != 0.25 {
		t.Errorf("summary = %+v", got)
	}
}
