package rtd

// InverseRanks returns 1/rank for every rank. A zero rank becomes +Inf and
// is left for the caller to reject.
func InverseRanks(ranks []float64) []float64 {
	out := make([]float64, len(ranks))
	for i, r := range ranks {
		out[i] = 1 / r
	}
	return out
}

// PresentIndices returns, in ascending order, the indices whose count is
// strictly positive.
func PresentIndices(counts []float64) []int {
	out := make([]int, 0, len(counts))
	for i, c := range counts {
		if c > 0 {
			out = append(out, i)
		}
	}
	return out
}

// exclusiveIndices returns the indices present in counts but absent
// (count <= 0 or out of range) in other.
func exclusiveIndices(counts, other []float64) []int {
	out := make([]int, 0)
	for i, c := range counts {
		if c <= 0 {
			continue
		}
		if i < len(other) && other[i] > 0 {
			continue
		}
		out = append(out, i)
	}
	return out
}
