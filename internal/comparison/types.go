package comparison

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/mixed"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/rtd"
)

// Request compares two raw frequency lists. Alpha and Top fall back to the
// service defaults when unset.
type Request struct {
	Alpha   *rtd.Alpha      `json:"alpha,omitempty"`
	Label1  string          `json:"label1,omitempty"`
	Label2  string          `json:"label2,omitempty"`
	System1 []mixed.Element `json:"system1"`
	System2 []mixed.Element `json:"system2"`
	Top     int             `json:"top,omitempty"`
}

// VectorRequest runs the kernel directly on index-aligned vectors.
type VectorRequest struct {
	Alpha   *rtd.Alpha `json:"alpha,omitempty"`
	Ranks1  []float64  `json:"ranks1"`
	Ranks2  []float64  `json:"ranks2"`
	Counts1 []float64  `json:"counts1"`
	Counts2 []float64  `json:"counts2"`
}

// Report is the outcome of a comparison.
type Report struct {
	RunID           string             `json:"run_id"`
	Alpha           rtd.Alpha          `json:"alpha"`
	Mode            string             `json:"normalization_mode"`
	Label1          string             `json:"label1,omitempty"`
	Label2          string             `json:"label2,omitempty"`
	Items           int                `json:"items"`
	Normalization   float64            `json:"normalization"`
	TotalDivergence float64            `json:"total_divergence"`
	MaxLog10Rank    int                `json:"max_log10_rank"`
	Shift           []mixed.ShiftEntry `json:"shift"`
	Balance         []mixed.BalanceRow `json:"balance"`
	// Counts is the rank-rank histogram; MaxCountLog sizes its color scale.
	Counts       []mixed.DiamondCell `json:"counts"`
	MaxCountLog  int                 `json:"max_count_log"`
	MaxDeltaLoss float64             `json:"max_delta_loss"`
	ComputedAt   time.Time           `json:"computed_at"`
	CacheHit     bool                `json:"cache_hit"`
}

// Run is the persisted summary of a Report.
type Run struct {
	ID              string             `json:"id"`
	Alpha           string             `json:"alpha"`
	Mode            string             `json:"normalization_mode"`
	Label1          string             `json:"label1,omitempty"`
	Label2          string             `json:"label2,omitempty"`
	Items           int                `json:"items"`
	Normalization   float64            `json:"normalization"`
	TotalDivergence float64            `json:"total_divergence"`
	TopShift        []mixed.ShiftEntry `json:"top_shift"`
	ComputedAt      time.Time          `json:"computed_at"`
}

// RunFromReport keeps the report's scalar fields and its leading shift
// entries.
func RunFromReport(r *Report, keep int) Run {
	return Run{
		ID:              r.RunID,
		Alpha:           r.Alpha.String(),
		Mode:            r.Mode,
		Label1:          r.Label1,
		Label2:          r.Label2,
		Items:           r.Items,
		Normalization:   r.Normalization,
		TotalDivergence: r.TotalDivergence,
		TopShift:        mixed.Top(r.Shift, keep),
		ComputedAt:      r.ComputedAt,
	}
}

// CompletedEvent is published after every computed (not cached) report.
type CompletedEvent struct {
	RunID           string    `json:"run_id"`
	Alpha           string    `json:"alpha"`
	Items           int       `json:"items"`
	Normalization   float64   `json:"normalization"`
	TotalDivergence float64   `json:"total_divergence"`
	RequestID       string    `json:"request_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// CacheKey derives a stable key from everything that affects a report.
func CacheKey(req Request, alpha rtd.Alpha, mode rtd.NormalizationMode, top int) (string, error) {
	canonical := struct {
		Alpha   string          `json:"a"`
		Mode    string          `json:"m"`
		Top     int             `json:"t"`
		Label1  string          `json:"l1"`
		Label2  string          `json:"l2"`
		System1 []mixed.Element `json:"s1"`
		System2 []mixed.Element `json:"s2"`
	}{alpha.String(), mode.String(), top, req.Label1, req.Label2, req.System1, req.System2}
	data, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("encoding cache key: %w", err)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash[:16]), nil
}
