package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/logger"
)

// Timeout bounds each request context to d. When the deadline passes before
// the handler has started its response the client gets a 504 with a JSON
// error body, and anything the handler writes afterwards is discarded with
// http.ErrHandlerTimeout. A non-positive d disables the middleware.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			dw := &deadlineWriter{w: w, header: make(http.Header)}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				return
			case <-ctx.Done():
			}
			if !dw.expire() {
				return
			}
			// Client went away; nobody is reading.
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return
			}
			logger.FromContext(r.Context()).Warn("request deadline exceeded",
				"method", r.Method, "path", r.URL.Path, "timeout", d)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusGatewayTimeout)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "request exceeded " + d.String()})
		})
	}
}

// deadlineWriter keeps the handler's headers private until it commits a
// status, so a late handler never races the 504 on the shared writer.
type deadlineWriter struct {
	w      http.ResponseWriter
	header http.Header

	mu          sync.Mutex
	wroteHeader bool
	expired     bool
}

func (dw *deadlineWriter) Header() http.Header { return dw.header }

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired || dw.wroteHeader {
		return
	}
	dw.writeHeaderLocked(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	if !dw.wroteHeader {
		dw.writeHeaderLocked(http.StatusOK)
	}
	return dw.w.Write(b)
}

func (dw *deadlineWriter) writeHeaderLocked(code int) {
	dw.wroteHeader = true
	dst := dw.w.Header()
	for k, v := range dw.header {
		dst[k] = v
	}
	dw.w.WriteHeader(code)
}

// expire stops further writes and reports whether the response is still
// unstarted.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.expired = true
	return !dw.wroteHeader
}
