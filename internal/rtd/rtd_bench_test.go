package rtd

import (
	"fmt"
	"testing"
)

// BenchmarkCompute measures the unchecked kernel across branches.
func BenchmarkCompute(b *testing.B) {
	ranks1, ranks2, counts1, counts2 := permutationData(10000)
	for _, alpha := range []Alpha{Infinite, Zero, Finite(1.0 / 3)} {
		b.Run(alpha.String(), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = Compute(ranks1, ranks2, counts1, counts2, alpha)
			}
		})
	}
}

// BenchmarkNormalizationParallel compares inline and concurrent reduction
// of the two normalization terms at several corpus sizes.
func BenchmarkNormalizationParallel(b *testing.B) {
	for _, n := range []int{1000, 100000} {
		ranks1, ranks2, counts1, counts2 := permutationData(n)
		items, err := Zip(ranks1, ranks2, counts1, counts2)
		if err != nil {
			b.Fatal(err)
		}
		for _, threshold := range []int{0, 1} {
			calc := NewCalculator(Options{ParallelThreshold: threshold})
			b.Run(fmt.Sprintf("n=%d/threshold=%d", n, threshold), func(b *testing.B) {
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if _, err := calc.Divergence(items, Finite(0.5)); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
