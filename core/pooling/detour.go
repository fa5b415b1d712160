package pooling

import (
	"math"

	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/skim"
)

// Epsilon absorbs floating-point noise when comparing a detour to the bound.
const Epsilon = 1e-9

// scenarioTotal returns the travel time of the four-stop path of scenario s.
func scenarioTotal(sc model.RouteScenario, a, b model.Trip, s *skim.Skim) float64 {
	nodes := sc.Nodes()
	idx := func(n model.ScenarioNode) int {
		t := a
		if n.Rider == 1 {
			t = b
		}
		if n.Kind == model.Pickup {
			return t.OriginIdx
		}
		return t.DestIdx
	}
	var total float64
	for k := 1; k < len(nodes); k++ {
		total += s.Time(idx(nodes[k-1]), idx(nodes[k]))
	}
	return total
}

// Evaluate scores the four orderings of a pair and returns the feasible one
// with minimum total time. A rider's detour is the ordering total minus the
// rider's direct travel time; an ordering is feasible when both detours are
// within maxDetour. Ties on total time keep the earlier scenario.
func Evaluate(a, b model.Trip, s *skim.Skim, maxDetour float64) (model.CandidatePair, bool) {
	directA := s.Time(a.OriginIdx, a.DestIdx)
	directB := s.Time(b.OriginIdx, b.DestIdx)
	p := model.CandidatePair{I: a.ID, J: b.ID}
	best := math.Inf(1)
	found := false
	for k, sc := range model.PooledScenarios {
		total := scenarioTotal(sc, a, b, s)
		p.Totals[k] = total
		da, db := total-directA, total-directB
		if da > maxDetour+Epsilon || db > maxDetour+Epsilon {
			continue
		}
		if total < best {
			best = total
			found = true
			p.Scenario = sc
			p.TotalTime = total
			p.DetourI = da
			p.DetourJ = db
			p.TotalDetour = da + db
		}
	}
	return p, found
}
