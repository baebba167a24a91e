package rtd

import (
	"math"

	"golang.org/x/sync/errgroup"
)

// NormalizationMode chooses which items count towards the disjoint
// worst case.
type NormalizationMode int

const (
	// NormalizeAllPresent sums over every item with a positive count in
	// its system, whether or not the other system also contains it.
	NormalizeAllPresent NormalizationMode = iota
	// NormalizeExclusive sums only over items present in exactly one system.
	// Two systems with the same present items normalize to zero, which
	// Calculator reports as ErrDegenerateInput.
	NormalizeExclusive
)

func (m NormalizationMode) String() string {
	if m == NormalizeExclusive {
		return "exclusive"
	}
	return "all-present"
}

// ParseNormalizationMode maps a config value to a mode. Unknown values fall
// back to NormalizeAllPresent.
func ParseNormalizationMode(s string) NormalizationMode {
	if s == "exclusive" {
		return NormalizeExclusive
	}
	return NormalizeAllPresent
}

// Normalization returns the total divergence two systems of the given sizes
// would reach if they shared no items.
func Normalization(counts1, counts2, inv1, inv2 []float64, alpha Alpha) float64 {
	return normalization(counts1, counts2, inv1, inv2, alpha, NormalizeAllPresent, 0)
}

// disjointInverseRanks is the inverse rank an item of one system would take
// in the other system if placed after all of that system's items.
func disjointInverseRanks(n1, n2 int) (invR1, invR2 float64) {
	f1, f2 := float64(n1), float64(n2)
	return 1 / (f2 + f1/2), 1 / (f1 + f2/2)
}

func normalization(counts1, counts2, inv1, inv2 []float64, alpha Alpha, mode NormalizationMode, parallelThreshold int) float64 {
	indices1 := PresentIndices(counts1)
	indices2 := PresentIndices(counts2)
	invR1Disjoint, invR2Disjoint := disjointInverseRanks(len(indices1), len(indices2))

	if mode == NormalizeExclusive {
		indices1 = exclusiveIndices(counts1, counts2)
		indices2 = exclusiveIndices(counts2, counts1)
	}

	term1 := func() float64 { return normTerm(indices1, inv1, invR2Disjoint, alpha) }
	term2 := func() float64 { return normTerm(indices2, inv2, invR1Disjoint, alpha) }

	if parallelThreshold <= 0 || len(indices1)+len(indices2) < parallelThreshold {
		return term1() + term2()
	}

	var t1, t2 float64
	var g errgroup.Group
	g.Go(func() error {
		t1 = term1()
		return nil
	})
	g.Go(func() error {
		t2 = term2()
		return nil
	})
	g.Wait()
	return t1 + t2
}

// normTerm sums one system's worst-case contributions, pairing each present
// inverse rank with the other system's disjoint placeholder.
func normTerm(indices []int, inv []float64, disjoint float64, alpha Alpha) float64 {
	var sum float64
	switch alpha.Kind() {
	case KindInfinite:
		for _, i := range indices {
			sum += inv[i]
		}
	case KindZero:
		for _, i := range indices {
			sum += math.Abs(math.Log(inv[i] / disjoint))
		}
	default:
		a := alpha.Float64()
		exp := 1 / (a + 1)
		da := math.Pow(disjoint, a)
		for _, i := range indices {
			sum += math.Pow(math.Abs(math.Pow(inv[i], a)-da), exp)
		}
		sum *= (a + 1) / a
	}
	return sum
}
