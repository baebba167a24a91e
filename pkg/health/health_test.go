package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fixed(s Status) Check {
	return func(context.Context) ComponentHealth { return ComponentHealth{Status: s} }
}

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]Check
		want   Status
	}{
		{"no checks", nil, StatusUp},
		{"all up", map[string]Check{"a": fixed(StatusUp), "b": fixed(StatusUp)}, StatusUp},
		{"degraded", map[string]Check{"a": fixed(StatusUp), "b": fixed(StatusDegraded)}, StatusDegraded},
		{"down wins", map[string]Check{"a": fixed(StatusDown), "b": fixed(StatusDegraded)}, StatusDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.checks) {
				t.Errorf("components = %d, want %d", len(report.Components), len(tt.checks))
			}
		})
	}
}

func TestRunBoundsSlowChecks(t *testing.T) {
	c := NewChecker()
	c.checkTimeout = 10 * time.Millisecond
	c.Register("slow", func(ctx context.Context) ComponentHealth {
		<-ctx.Done()
		return ComponentHealth{Status: StatusDegraded, Message: ctx.Err().Error()}
	})
	start := time.Now()
	report := c.Run(context.Background())
	if time.Since(start) > time.Second {
		t.Fatal("check was not bounded by the per-check timeout")
	}
	if report.Status != StatusDegraded {
		t.Errorf("status = %s, want degraded", report.Status)
	}
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		status Status
		code   int
	}{
		{StatusUp, http.StatusOK},
		{StatusDegraded, http.StatusOK},
		{StatusDown, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			c := NewChecker()
			c.Register("redis", fixed(tt.status))
			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			var report Report
			if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
				t.Fatalf("decoding report: %v", err)
			}
			if report.Components["redis"].Status != tt.status {
				t.Errorf("redis = %+v", report.Components["redis"])
			}
		})
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["status"] != "alive" {
		t.Errorf("body = %s", rec.Body)
	}
}
