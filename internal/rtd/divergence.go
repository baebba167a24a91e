package rtd

import "math"

// DivergenceElements computes the unnormalized per-item divergence of two
// inverse-rank vectors. Only the common prefix of inv1 and inv2 is used.
func DivergenceElements(inv1, inv2 []float64, alpha Alpha) []float64 {
	n := min(len(inv1), len(inv2))
	out := make([]float64, n)
	switch alpha.Kind() {
	case KindInfinite:
		for i := 0; i < n; i++ {
			if inv1[i] == inv2[i] {
				continue
			}
			out[i] = math.Max(inv1[i], inv2[i])
		}
	case KindZero:
		for i := 0; i < n; i++ {
			x1, x2 := 1/inv1[i], 1/inv2[i]
			out[i] = math.Log10(math.Max(x1, x2) / math.Min(x1, x2))
		}
	default:
		a := alpha.Float64()
		scale := (a + 1) / a
		exp := 1 / (a + 1)
		for i := 0; i < n; i++ {
			out[i] = scale * math.Pow(math.Abs(math.Pow(inv1[i], a)-math.Pow(inv2[i], a)), exp)
		}
	}
	return out
}
