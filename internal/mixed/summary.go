package mixed

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// BalanceRow is one bar of the balance summary. Frequencies for system 1
// are negative and for system 2 positive.
type BalanceRow struct {
	Label     string  `json:"y_coord"`
	Frequency float64 `json:"frequency"`
}

// Balance reports how the two systems' type inventories compare: share of
// total types, share of the union, and share of types exclusive to each.
func Balance(types1, types2 []string) []BalanceRow {
	set1 := toSet(types1)
	set2 := toSet(types2)
	union := len(set1)
	for t := range set2 {
		if _, ok := set1[t]; !ok {
			union++
		}
	}
	total := len(types1) + len(types2)

	return []BalanceRow{
		{"total count", round3(ratio(len(types2), total))},
		{"total count", -round3(ratio(len(types1), total))},
		{"all types", round3(ratio(len(types2), union))},
		{"all types", -round3(ratio(len(types1), union))},
		{"exclusive types", round3(ratio(exclusive(set2, set1), len(types2)))},
		{"exclusive types", -round3(ratio(exclusive(set1, set2), len(types1)))},
	}
}

func toSet(types []string) map[string]struct{} {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

func exclusive(a, b map[string]struct{}) int {
	n := 0
	for t := range a {
		if _, ok := b[t]; !ok {
			n++
		}
	}
	return n
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// ShiftEntry is one type's contribution to the divergence.
type ShiftEntry struct {
	Type     string  `json:"type"`
	Label    string  `json:"label"`
	Rank1    float64 `json:"rank1"`
	Rank2    float64 `json:"rank2"`
	RankDiff float64 `json:"rank_diff"`
	Metric   float64 `json:"metric"`
}

// WordShift pairs each type with its divergence contribution and orders the
// result by absolute contribution, largest first. Metric carries the sign
// of the contribution: negative when the type ranks higher in system 1.
func WordShift(sys1, sys2 System, deltas []float64) []ShiftEntry {
	n := min(len(sys1.Types), len(sys2.Ranks), len(deltas))
	out := make([]ShiftEntry, 0, n)
	for i := 0; i < n; i++ {
		r1, r2 := sys1.Ranks[i], sys2.Ranks[i]
		diff := r1 - r2
		metric := deltas[i]
		if diff < 0 {
			metric = -metric
		}
		out = append(out, ShiftEntry{
			Type:     sys1.Types[i],
			Label:    fmt.Sprintf("%s (%s ⇋ %s)", sys1.Types[i], formatRank(r1), formatRank(r2)),
			Rank1:    r1,
			Rank2:    r2,
			RankDiff: diff,
			Metric:   metric,
		})
	}
	sort.SliceStable(out, func(a, b int) bool {
		return math.Abs(out[a].Metric) > math.Abs(out[b].Metric)
	})
	return out
}

func formatRank(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// Top returns at most n entries; n <= 0 returns all of them.
func Top(entries []ShiftEntry, n int) []ShiftEntry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}

// RankMaxLog10 is the number of decades needed to plot either system's
// ranks: ceil(log10(max rank)).
func RankMaxLog10(sys1, sys2 System) int {
	m := math.Max(maxOf(sys1.Ranks), maxOf(sys2.Ranks))
	if m <= 0 {
		return 0
	}
	return int(math.Ceil(math.Log10(m)))
}

func maxOf(vs []float64) float64 {
	m := 0.0
	for _, v := range vs {
		if v > m {
			m = v
		}
	}
	return m
}
