package pooling

import (
	"sort"

	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/simerr"
)

// sortPairs orders pairs by (total detour, trip i, trip j).
func sortPairs(pairs []model.CandidatePair) {
	sort.SliceStable(pairs, func(a, b int) bool {
		pa, pb := pairs[a], pairs[b]
		if pa.TotalDetour != pb.TotalDetour {
			return pa.TotalDetour < pb.TotalDetour
		}
		if pa.I != pb.I {
			return pa.I < pb.I
		}
		return pa.J < pb.J
	})
}

// StableMatch repeatedly accepts mutually-best pairs until a pass accepts
// none. A pair is mutually best when it is the lowest-detour pair of its
// first trip among pairs where that trip is listed first, and of its second
// trip among pairs where that trip is listed second. Within a pass, a pair
// sharing a trip with an already accepted pair is skipped. maxPasses <= 0
// uses len(pairs)+1; exceeding it returns a DivergedError.
func StableMatch(bin int, pairs []model.CandidatePair, maxPasses int) ([]model.CandidatePair, error) {
	remaining := append([]model.CandidatePair(nil), pairs...)
	sortPairs(remaining)
	if maxPasses <= 0 {
		maxPasses = len(remaining) + 1
	}

	var matched []model.CandidatePair
	for pass := 0; len(remaining) > 0; pass++ {
		if pass >= maxPasses {
			return nil, &simerr.DivergedError{Stage: simerr.StagePairing, Bin: bin, Passes: pass, Pending: len(remaining)}
		}
		// remaining is sorted, so the first occurrence is the best.
		bestAsI := make(map[int]int)
		bestAsJ := make(map[int]int)
		for k, p := range remaining {
			if _, ok := bestAsI[p.I]; !ok {
				bestAsI[p.I] = k
			}
			if _, ok := bestAsJ[p.J]; !ok {
				bestAsJ[p.J] = k
			}
		}

		used := make(map[int]bool)
		accepted := 0
		for k, p := range remaining {
			if bestAsI[p.I] != k || bestAsJ[p.J] != k {
				continue
			}
			if used[p.I] || used[p.J] {
				continue
			}
			used[p.I], used[p.J] = true, true
			matched = append(matched, p)
			accepted++
		}
		if accepted == 0 {
			break
		}

		next := remaining[:0]
		for _, p := range remaining {
			if used[p.I] || used[p.J] {
				continue
			}
			next = append(next, p)
		}
		remaining = next
	}
	return matched, nil
}
