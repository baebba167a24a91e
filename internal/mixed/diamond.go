package mixed

import (
	"fmt"
	"math"
	"sort"
)

// cellLength is the side of one diamond cell in log10 rank units.
const cellLength = 1.0 / 15

// DiamondCell is one cell of the rank-rank histogram. X1 bins the system 2
// rank and Y1 the system 1 rank.
type DiamondCell struct {
	X1          int         `json:"x1"`
	Y1          int         `json:"y1"`
	CoordOnDiag float64     `json:"coord_on_diag"`
	CosDist     float64     `json:"cos_dist"`
	Rank        string      `json:"rank"`
	RankL       *[2]float64 `json:"rank_l,omitempty"`
	RankR       *[2]float64 `json:"rank_r,omitempty"`
	Value       int         `json:"value"`
	Types       []string    `json:"types,omitempty"`
	WhichSys    string      `json:"which_sys"`
}

// Diamond is the binned view of a comparison.
type Diamond struct {
	Counts []DiamondCell `json:"counts"`
	// Deltas are the divergence elements, largest first.
	Deltas       []float64 `json:"deltas"`
	MaxDeltaLoss float64   `json:"max_delta_loss"`
	MaxCountLog  int       `json:"max_count_log"`
}

func rankToCoord(rank float64) int {
	return int(math.Floor(math.Log10(rank) / cellLength))
}

// DiamondCounts bins every type into a square grid of 1/15-decade cells by
// its pair of ranks. Cells are emitted column by column (X1 outer) and
// cover the whole grid, empty cells included. Within a cell, types are
// listed by decreasing divergence contribution and Rank shows the ranks of
// the first one.
func DiamondCounts(sys1, sys2 System, deltas []float64) Diamond {
	n := min(len(sys1.Ranks), len(sys2.Ranks), len(sys1.Types), len(deltas))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return deltas[order[a]] > deltas[order[b]] })

	sorted := make([]float64, n)
	maxLoss := 0.0
	for k, i := range order {
		sorted[k] = deltas[i]
		loss := deltas[i]
		if sys1.Ranks[i] > sys2.Ranks[i] {
			loss = -1
		}
		if k == 0 || loss > maxLoss {
			maxLoss = loss
		}
	}

	maxLog := RankMaxLog10(sys1, sys2)
	if maxLog < 1 {
		maxLog = 1
	}
	cells := int(math.Floor(float64(maxLog)/cellLength)) + 1

	type key struct{ x, y int }
	groups := make(map[key][]int)
	for _, i := range order {
		k := key{rankToCoord(sys2.Ranks[i]), rankToCoord(sys1.Ranks[i])}
		groups[k] = append(groups[k], i)
	}

	counts := make([]DiamondCell, 0, cells*cells)
	maxValue := 0
	for x := 0; x < cells; x++ {
		for y := 0; y < cells; y++ {
			cell := DiamondCell{
				X1:          x,
				Y1:          y,
				CoordOnDiag: float64(x+y) / 2,
				CosDist:     float64((x - y) * (x - y)),
				WhichSys:    "left",
			}
			if x-y <= 0 {
				cell.WhichSys = "right"
			}
			if members := groups[key{x, y}]; len(members) > 0 {
				first := members[0]
				cell.Rank = fmt.Sprintf("(%s, %s)", formatRank(sys1.Ranks[first]), formatRank(sys2.Ranks[first]))
				cell.RankL = extent(members, sys1.Ranks)
				cell.RankR = extent(members, sys2.Ranks)
				cell.Value = len(members)
				cell.Types = make([]string, len(members))
				for m, i := range members {
					cell.Types[m] = sys1.Types[i]
				}
				maxValue = max(maxValue, cell.Value)
			}
			counts = append(counts, cell)
		}
	}

	maxCountLog := 2
	if maxValue > 0 {
		maxCountLog = int(math.Ceil(math.Log10(float64(maxValue)))) + 1
	}
	return Diamond{
		Counts:       counts,
		Deltas:       sorted,
		MaxDeltaLoss: maxLoss,
		MaxCountLog:  maxCountLog,
	}
}

func extent(members []int, ranks []float64) *[2]float64 {
	lo, hi := ranks[members[0]], ranks[members[0]]
	for _, i := range members[1:] {
		lo = math.Min(lo, ranks[i])
		hi = math.Max(hi, ranks[i])
	}
	return &[2]float64{lo, hi}
}
