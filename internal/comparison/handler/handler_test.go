package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/rtd"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/errors"
)

func newServer(t *testing.T, maxBody int64) http.Handler {
	t.Helper()
	svc, err := comparison.New(config.DivergenceConfig{
		DefaultAlpha:      "inf",
		NormalizationMode: "all-present",
		MaxItems:          1000,
		DefaultTop:        5,
		ComputeTimeout:    5 * time.Second,
	}, comparison.Deps{})
	if err != nil {
		t.Fatalf("comparison.New: %v", err)
	}
	return New(svc, maxBody).Routes()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDivergenceEndpoint(t *testing.T) {
	h := newServer(t, 0)
	rec := do(t, h, http.MethodPost, "/api/v1/divergence",
		`{"alpha":"inf","ranks1":[1,2,3],"ranks2":[1,3,2],"counts1":[3,2,1],"counts2":[3,1,2]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp struct {
		Elements      []float64 `json:"divergence_elements"`
		Normalization float64   `json:"normalization"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Elements) != 3 || resp.Elements[0] != 0 {
		t.Errorf("elements = %v", resp.Elements)
	}
	if resp.Normalization <= 0 {
		t.Errorf("normalization = %v", resp.Normalization)
	}
}

func TestDivergenceEndpointErrors(t *testing.T) {
	h := newServer(t, 256)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"ranks1":`, http.StatusBadRequest},
		{"bad alpha", `{"alpha":-2,"ranks1":[1],"ranks2":[1],"counts1":[1],"counts2":[1]}`, http.StatusBadRequest},
		{"length mismatch", `{"ranks1":[1,2],"ranks2":[1],"counts1":[1],"counts2":[1]}`, http.StatusBadRequest},
		{"zero rank", `{"ranks1":[0],"ranks2":[1],"counts1":[1],"counts2":[1]}`, http.StatusBadRequest},
		{"degenerate", `{"ranks1":[1],"ranks2":[1],"counts1":[0],"counts2":[0]}`, http.StatusUnprocessableEntity},
		{"body too large", `{"ranks1":[` + strings.Repeat("1,", 200) + `1]}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/divergence", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp["error"] == "" {
				t.Errorf("error body = %s", rec.Body)
			}
		})
	}
}

func TestCompareEndpoint(t *testing.T) {
	h := newServer(t, 0)
	body := `{
		"alpha": 0.5,
		"label1": "2019",
		"label2": "2020",
		"system1": [{"type":"a","count":3},{"type":"b","count":2},{"type":"c","count":1}],
		"system2": [{"type":"a","count":3},{"type":"c","count":2},{"type":"d","count":1}],
		"top": 2
	}`
	rec := do(t, h, http.MethodPost, "/api/v1/compare", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var report comparison.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.Items != 4 {
		t.Errorf("items = %d, want 4", report.Items)
	}
	if len(report.Shift) != 2 {
		t.Errorf("shift entries = %d, want 2", len(report.Shift))
	}
	if len(report.Balance) != 6 {
		t.Errorf("balance rows = %d, want 6", len(report.Balance))
	}
	if report.Alpha.String() != "0.5" {
		t.Errorf("alpha = %s, want 0.5", report.Alpha)
	}
}

func TestCompareEndpointEmpty(t *testing.T) {
	rec := do(t, newServer(t, 0), http.MethodPost, "/api/v1/compare", `{"system1":[],"system2":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRunsWithoutStore(t *testing.T) {
	h := newServer(t, 0)

	rec := do(t, h, http.MethodGet, "/api/v1/runs?limit=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"count":0`) {
		t.Errorf("list body = %s", rec.Body)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/runs?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/runs/6f1c2d7e-0000-4000-8000-000000000000", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get status = %d, want 404", rec.Code)
	}
}

func TestCacheInvalidateWithoutCache(t *testing.T) {
	rec := do(t, newServer(t, 0), http.MethodPost, "/api/v1/cache/invalidate", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

type failingComparer struct {
	err error
}

func (f *failingComparer) Compare(context.Context, comparison.Request) (*comparison.Report, error) {
	return nil, f.err
}

func (f *failingComparer) Divergence(context.Context, comparison.VectorRequest) (*rtd.Result, error) {
	return nil, f.err
}

func (f *failingComparer) GetRun(context.Context, string) (*comparison.Run, error) {
	return nil, f.err
}

func (f *failingComparer) ListRuns(context.Context, int) ([]comparison.Run, error) {
	return nil, f.err
}

func (f *failingComparer) InvalidateCache(context.Context) error {
	return f.err
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	h := New(&failingComparer{err: errors.New("pq: password authentication failed")}, 0).Routes()
	rec := do(t, h, http.MethodPost, "/api/v1/cache/invalidate", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("internal error leaked: %s", rec.Body)
	}

	h = New(&failingComparer{err: apperrors.New(apperrors.ErrTimeout, http.StatusServiceUnavailable, "too slow")}, 0).Routes()
	rec = do(t, h, http.MethodPost, "/api/v1/compare", `{}`)
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "too slow") {
		t.Errorf("timeout response = %d %s", rec.Code, rec.Body)
	}
}
