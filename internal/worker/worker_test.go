package worker

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	apperrors "github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// stubComparer fails the first failures calls with err, or every call when
// failures is negative.
type stubComparer struct {
	got      comparison.Request
	err      error
	failures int
	calls    int
}

func (s *stubComparer) Compare(_ context.Context, req comparison.Request) (*comparison.Report, error) {
	s.got = req
	s.calls++
	if s.err != nil && (s.failures < 0 || s.calls <= s.failures) {
		return nil, s.err
	}
	return &comparison.Report{RunID: "run-1", Items: len(req.System1)}, nil
}

func newTestWorker(svc Comparer, m *metrics.Metrics) *Worker {
	w := New(svc, m)
	w.retry.InitialDelay = time.Millisecond
	w.retry.MaxDelay = time.Millisecond
	return w
}

func TestHandle(t *testing.T) {
	transient := errors.New("redis timeout")
	invalid := apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "empty")
	tests := []struct {
		name      string
		value     string
		err       error
		failures  int
		status    string
		wantCalls int
	}{
		{"ok", `{"job_id":"j1","request":{"system1":[{"type":"a","count":1}],"system2":[]}}`, nil, 0, "ok", 1},
		{"malformed", `{"job_id":`, nil, 0, "malformed", 0},
		{"rejected", `{"job_id":"j2","request":{}}`, invalid, -1, "rejected", 1},
		{"transient then ok", `{"job_id":"j3","request":{}}`, transient, 2, "ok", 3},
		{"retries exhausted", `{"job_id":"j4","request":{}}`, transient, -1, "failed", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New(prometheus.NewRegistry())
			stub := &stubComparer{err: tt.err, failures: tt.failures}
			w := newTestWorker(stub, m)

			if err := w.Handle(context.Background(), []byte("k"), []byte(tt.value)); err != nil {
				t.Fatalf("Handle returned %v, want nil so the job is committed", err)
			}
			if stub.calls != tt.wantCalls {
				t.Errorf("Compare called %d times, want %d", stub.calls, tt.wantCalls)
			}
			if got := testutil.ToFloat64(m.JobsProcessedTotal.WithLabelValues(tt.status)); got != 1 {
				t.Errorf("%s jobs = %v, want 1", tt.status, got)
			}
		})
	}
}

func TestHandleShutdownLeavesJobUncommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stub := &stubComparer{err: context.Canceled, failures: -1}
	w := newTestWorker(stub, nil)

	err := w.Handle(ctx, nil, []byte(`{"job_id":"j5","request":{}}`))
	if err == nil {
		t.Fatal("expected an error during shutdown")
	}
	if stub.calls != 1 {
		t.Errorf("Compare called %d times, want 1", stub.calls)
	}
}

func TestHandleDecodesRequest(t *testing.T) {
	stub := &stubComparer{}
	w := newTestWorker(stub, nil)
	value := `{"job_id":"j","request":{"alpha":"inf","label1":"x","system1":[{"type":"a","count":2}],"system2":[{"type":"b","count":1}],"top":3}}`
	if err := w.Handle(context.Background(), nil, []byte(value)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if stub.got.Alpha == nil || stub.got.Alpha.String() != "inf" {
		t.Errorf("alpha = %v", stub.got.Alpha)
	}
	if stub.got.Label1 != "x" || stub.got.Top != 3 || len(stub.got.System2) != 1 {
		t.Errorf("request = %+v", stub.got)
	}
}
