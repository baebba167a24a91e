package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/rtd"
	apperrors "github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Comparer is the part of comparison.Service the handler drives.
type Comparer interface {
	Compare(ctx context.Context, req comparison.Request) (*comparison.Report, error)
	Divergence(ctx context.Context, req comparison.VectorRequest) (*rtd.Result, error)
	GetRun(ctx context.Context, id string) (*comparison.Run, error)
	ListRuns(ctx context.Context, limit int) ([]comparison.Run, error)
	InvalidateCache(ctx context.Context) error
}

type Handler struct {
	svc          Comparer
	maxBodyBytes int64
	logger       *slog.Logger
}

func New(svc Comparer, maxBodyBytes int64) *Handler {
	return &Handler{
		svc:          svc,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.WithComponent("comparison-handler"),
	}
}

// Routes registers the API on a new mux.
//
//	POST /api/v1/divergence        raw aligned vectors
//	POST /api/v1/compare           two frequency lists
//	GET  /api/v1/runs              recent runs (?limit=)
//	GET  /api/v1/runs/{id}         one run
//	POST /api/v1/cache/invalidate  drop cached reports
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/divergence", h.Divergence)
	mux.HandleFunc("POST /api/v1/compare", h.Compare)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	return mux
}

func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	var req comparison.Request
	if !h.decode(w, r, &req) {
		return
	}
	report, err := h.svc.Compare(r.Context(), req)
	if err != nil {
		h.fail(w, r, "compare", err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) Divergence(w http.ResponseWriter, r *http.Request) {
	var req comparison.VectorRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Divergence(r.Context(), req)
	if err != nil {
		h.fail(w, r, "divergence", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"divergence_elements": res.DivergenceElements,
		"normalization":       res.Normalization,
		"total_divergence":    res.Total(),
	})
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "get run", err)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxListLimit)
	}
	runs, err := h.svc.ListRuns(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "list runs", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.InvalidateCache(r.Context()); err != nil {
		h.fail(w, r, "cache invalidate", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// fail maps err to a status code. Client errors are logged at warn and
// server errors at error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := apperrors.Message(err)
	log := logger.FromContext(r.Context())
	switch {
	case status == http.StatusInternalServerError:
		log.Error(op+" failed", "error", err)
		message = op + " failed"
	case status > http.StatusInternalServerError:
		log.Error(op+" failed", "status", status, "error", err)
	default:
		log.Warn(op+" rejected", "status", status, "error", err)
	}
	h.writeError(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
