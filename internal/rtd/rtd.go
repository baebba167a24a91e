// Package rtd computes rank-turbulence divergence between two ranked
// systems that share an index space. The kernel is pure: every call is
// independent and deterministic for identical inputs.
//
// Compute is the unchecked entry point and lets NaN or Inf propagate.
// Zip and Calculator are the checked path: inputs are validated up front
// and a zero normalization is reported as ErrDegenerateInput instead of a
// vector of NaNs.
package rtd

import (
	"math"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/errors"
)

// DefaultParallelThreshold is the present-item count at which the two
// normalization terms are reduced concurrently.
const DefaultParallelThreshold = 4096

// Result holds the normalized divergence per item and the normalization
// that was divided out.
type Result struct {
	DivergenceElements []float64 `json:"divergence_elements"`
	Normalization      float64   `json:"normalization"`
}

// Total returns the sum of the normalized elements.
func (r Result) Total() float64 {
	var sum float64
	for _, d := range r.DivergenceElements {
		sum += d
	}
	return sum
}

// Compute runs the kernel on four index-aligned vectors without validating
// them. Vectors of unequal length are truncated to the shortest rank
// vector; counts must cover every index that is positive.
func Compute(ranks1, ranks2, counts1, counts2 []float64, alpha Alpha) Result {
	return compute(ranks1, ranks2, counts1, counts2, alpha, Options{})
}

func compute(ranks1, ranks2, counts1, counts2 []float64, alpha Alpha, opts Options) Result {
	inv1 := InverseRanks(ranks1)
	inv2 := InverseRanks(ranks2)

	elems := DivergenceElements(inv1, inv2, alpha)
	norm := normalization(counts1, counts2, inv1, inv2, alpha, opts.Mode, opts.ParallelThreshold)

	for i := range elems {
		elems[i] /= norm
	}
	return Result{DivergenceElements: elems, Normalization: norm}
}

// AlignedItem is one item's rank and count in both systems.
type AlignedItem struct {
	Rank1  float64 `json:"rank1"`
	Rank2  float64 `json:"rank2"`
	Count1 float64 `json:"count1"`
	Count2 float64 `json:"count2"`
}

// Zip builds aligned items from four parallel vectors. It fails on length
// mismatch, on ranks that are not positive finite numbers and on counts
// that are negative or NaN.
func Zip(ranks1, ranks2, counts1, counts2 []float64) ([]AlignedItem, error) {
	n := len(ranks1)
	if len(ranks2) != n || len(counts1) != n || len(counts2) != n {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"vector lengths differ: ranks1=%d ranks2=%d counts1=%d counts2=%d",
			len(ranks1), len(ranks2), len(counts1), len(counts2))
	}
	items := make([]AlignedItem, n)
	for i := 0; i < n; i++ {
		item := AlignedItem{Rank1: ranks1[i], Rank2: ranks2[i], Count1: counts1[i], Count2: counts2[i]}
		if err := item.validate(i); err != nil {
			return nil, err
		}
		items[i] = item
	}
	return items, nil
}

func (it AlignedItem) validate(i int) error {
	if !validRank(it.Rank1) || !validRank(it.Rank2) {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"rank must be positive: item %d has ranks (%v, %v)", i, it.Rank1, it.Rank2)
	}
	if !validCount(it.Count1) || !validCount(it.Count2) {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"count must be non-negative: item %d has counts (%v, %v)", i, it.Count1, it.Count2)
	}
	return nil
}

func validRank(r float64) bool {
	return r > 0 && !math.IsInf(r, 1)
}

func validCount(c float64) bool {
	return c >= 0 && !math.IsInf(c, 1)
}

// Unzip splits aligned items back into the four kernel vectors.
func Unzip(items []AlignedItem) (ranks1, ranks2, counts1, counts2 []float64) {
	ranks1 = make([]float64, len(items))
	ranks2 = make([]float64, len(items))
	counts1 = make([]float64, len(items))
	counts2 = make([]float64, len(items))
	for i, it := range items {
		ranks1[i], ranks2[i] = it.Rank1, it.Rank2
		counts1[i], counts2[i] = it.Count1, it.Count2
	}
	return ranks1, ranks2, counts1, counts2
}

// Options tunes a Calculator.
type Options struct {
	Mode NormalizationMode
	// ParallelThreshold is the present-item count at which normalization
	// terms are summed concurrently. Zero or negative disables it.
	ParallelThreshold int
}

// Calculator is the validated entry point to the kernel.
type Calculator struct {
	opts Options
}

func NewCalculator(opts Options) *Calculator {
	return &Calculator{opts: opts}
}

// Divergence computes the normalized divergence of validated items. It
// returns ErrDegenerateInput when the normalization is zero or not finite,
// which happens when neither system has a present item or, under
// NormalizeExclusive, when every present item is present in both systems.
func (c *Calculator) Divergence(items []AlignedItem, alpha Alpha) (Result, error) {
	ranks1, ranks2, counts1, counts2 := Unzip(items)
	res := compute(ranks1, ranks2, counts1, counts2, alpha, c.opts)
	if res.Normalization == 0 || math.IsNaN(res.Normalization) || math.IsInf(res.Normalization, 0) {
		if c.opts.Mode == NormalizeExclusive && (len(PresentIndices(counts1)) > 0 || len(PresentIndices(counts2)) > 0) {
			return Result{}, apperrors.Newf(apperrors.ErrDegenerateInput, http.StatusUnprocessableEntity,
				"exclusive normalization is %v: no item is present in only one system", res.Normalization)
		}
		return Result{}, apperrors.Newf(apperrors.ErrDegenerateInput, http.StatusUnprocessableEntity,
			"empty or zero-count systems: normalization is %v", res.Normalization)
	}
	return res, nil
}

// DivergenceVectors validates four parallel vectors and computes their
// divergence.
func (c *Calculator) DivergenceVectors(ranks1, ranks2, counts1, counts2 []float64, alpha Alpha) (Result, error) {
	items, err := Zip(ranks1, ranks2, counts1, counts2)
	if err != nil {
		return Result{}, err
	}
	return c.Divergence(items, alpha)
}
