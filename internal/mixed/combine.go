// Package mixed turns two raw frequency lists into the index-aligned rank
// and count vectors the rtd kernel consumes, and derives the per-type
// summaries shown next to a divergence score.
package mixed

import "sort"

// Element is one type and its frequency in a single system.
type Element struct {
	Type  string  `json:"type"`
	Count float64 `json:"count"`
	Prob  float64 `json:"prob,omitempty"`
}

// System is one side of a combined comparison. Every slice is indexed by
// position in Types, which is shared with the other system.
type System struct {
	Types       []string  `json:"types"`
	Counts      []float64 `json:"counts"`
	Probs       []float64 `json:"probs"`
	Ranks       []float64 `json:"ranks"`
	TotalUnique int       `json:"total_unique"`
}

type pair struct {
	count1, prob1 float64
	count2, prob2 float64
}

// Combine aligns two element lists over the union of their types. Types
// keep first-seen order: system 1's types, then types only system 2 has.
// A type missing from a system gets count 0. Probabilities left at zero are
// filled in from counts.
func Combine(elem1, elem2 []Element) (System, System) {
	order := make([]string, 0, len(elem1)+len(elem2))
	byType := make(map[string]*pair, len(elem1)+len(elem2))

	for _, e := range elem1 {
		p, ok := byType[e.Type]
		if !ok {
			p = &pair{}
			byType[e.Type] = p
			order = append(order, e.Type)
		}
		p.count1, p.prob1 = e.Count, e.Prob
	}
	for _, e := range elem2 {
		p, ok := byType[e.Type]
		if !ok {
			p = &pair{}
			byType[e.Type] = p
			order = append(order, e.Type)
		}
		p.count2, p.prob2 = e.Count, e.Prob
	}

	n := len(order)
	s1 := System{Types: order, Counts: make([]float64, n), Probs: make([]float64, n), TotalUnique: n}
	s2 := System{Types: order, Counts: make([]float64, n), Probs: make([]float64, n), TotalUnique: n}
	for i, typ := range order {
		p := byType[typ]
		s1.Counts[i], s1.Probs[i] = p.count1, p.prob1
		s2.Counts[i], s2.Probs[i] = p.count2, p.prob2
	}
	fillProbs(s1.Counts, s1.Probs)
	fillProbs(s2.Counts, s2.Probs)
	s1.Ranks = TiedRank(s1.Counts)
	s2.Ranks = TiedRank(s2.Counts)
	return s1, s2
}

func fillProbs(counts, probs []float64) {
	var total float64
	for _, c := range counts {
		if c > 0 {
			total += c
		}
	}
	if total == 0 {
		return
	}
	for i := range probs {
		if probs[i] == 0 && counts[i] > 0 {
			probs[i] = counts[i] / total
		}
	}
}

// TiedRank ranks values in descending order starting at 1. Equal values
// share the mean of the positions they occupy, so [10 5 5 1] ranks as
// [1 2.5 2.5 4].
func TiedRank(values []float64) []float64 {
	ranks := make([]float64, len(values))
	if len(values) == 0 {
		return ranks
	}
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] > values[idx[b]]
	})

	for start := 0; start < len(idx); {
		end := start + 1
		for end < len(idx) && values[idx[end]] == values[idx[start]] {
			end++
		}
		// positions start..end-1 are ranks start+1..end
		avg := float64(start+1+end) / 2
		for _, i := range idx[start:end] {
			ranks[i] = avg
		}
		start = end
	}
	return ranks
}
