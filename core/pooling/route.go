package pooling

import (
	"fmt"

	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/simerr"
	"github.com/kilianp07/tncsim/core/skim"
)

func stop(t model.Trip, kind model.StopKind) model.Stop {
	if kind == model.Pickup {
		return model.Stop{Zone: t.OriginZone, SkimIdx: t.OriginIdx, TripID: t.ID, Kind: kind}
	}
	return model.Stop{Zone: t.DestinationZone, SkimIdx: t.DestIdx, TripID: t.ID, Kind: kind}
}

// PooledChain builds the four-stop chain of a matched pair.
func PooledChain(bin int, a, b model.Trip, p model.CandidatePair) model.TripChain {
	riders := [2]model.Trip{a, b}
	nodes := p.Scenario.Nodes()
	stops := make([]model.Stop, len(nodes))
	for k, n := range nodes {
		stops[k] = stop(riders[n.Rider], n.Kind)
	}
	return model.TripChain{
		Bin:       bin,
		Trips:     []int{a.ID, b.ID},
		Stops:     stops,
		Scenario:  p.Scenario,
		TotalTime: p.TotalTime,
		DetourI:   p.DetourI,
		DetourJ:   p.DetourJ,
	}
}

// SoloChain builds the two-stop chain of a single trip.
func SoloChain(bin int, t model.Trip, s *skim.Skim) model.TripChain {
	return model.TripChain{
		Bin:       bin,
		Trips:     []int{t.ID},
		Stops:     []model.Stop{stop(t, model.Pickup), stop(t, model.Dropoff)},
		Scenario:  model.ScenarioSolo,
		TotalTime: s.Time(t.OriginIdx, t.DestIdx),
	}
}

// Assemble turns the matched pairs and the remaining trips of a bin into
// trip-chains: pooled chains first in match order, then solo chains in trip
// order. Every trip must land in exactly one chain.
func Assemble(bin int, trips []model.Trip, matched []model.CandidatePair, s *skim.Skim) ([]model.TripChain, error) {
	byID := make(map[int]model.Trip, len(trips))
	for _, t := range trips {
		byID[t.ID] = t
	}
	served := make(map[int]int, len(trips))
	chains := make([]model.TripChain, 0, len(trips))

	for _, p := range matched {
		a, okA := byID[p.I]
		b, okB := byID[p.J]
		if !okA || !okB {
			return nil, simerr.Invariant(bin, "matched pair references a trip outside the bin", p.I, p.J)
		}
		if !p.Scenario.Valid() || p.Scenario == model.ScenarioSolo {
			return nil, simerr.Invariant(bin, fmt.Sprintf("matched pair has invalid scenario %d", p.Scenario), p.I, p.J)
		}
		served[p.I]++
		served[p.J]++
		chains = append(chains, PooledChain(bin, a, b, p))
	}
	for _, t := range trips {
		if served[t.ID] > 0 {
			continue
		}
		served[t.ID]++
		chains = append(chains, SoloChain(bin, t, s))
	}
	for _, t := range trips {
		if n := served[t.ID]; n != 1 {
			return nil, simerr.Invariant(bin, fmt.Sprintf("trip served by %d chains", n), t.ID)
		}
	}
	return chains, nil
}
