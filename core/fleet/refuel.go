package fleet

import (
	"sort"

	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/simerr"
	"github.com/kilianp07/tncsim/core/skim"
)

// RefuelPlanner appends refuel side trips to plans that push a vehicle past
// its range.
type RefuelPlanner struct {
	maxDistance float64
	stations    []int // skim indices of refuel-capable zones, ascending
	builder     *Builder
}

// NewRefuelPlanner returns a planner sending vehicles to the refuel-capable
// zones of zones. A non-positive maxDistance disables refuelling.
func NewRefuelPlanner(maxDistance float64, zones []model.Zone, index *skim.ZoneIndex, b *Builder) (*RefuelPlanner, error) {
	r := &RefuelPlanner{maxDistance: maxDistance, builder: b}
	if !r.Enabled() {
		return r, nil
	}
	for _, z := range zones {
		if !z.RefuelCapable {
			continue
		}
		if i, ok := index.Index(z.ID); ok {
			r.stations = append(r.stations, i)
		}
	}
	if len(r.stations) == 0 {
		return nil, simerr.Configf("max_refuel_distance", "refuelling enabled but no refuel-capable zone is mapped in the skims")
	}
	sort.Ints(r.stations)
	return r, nil
}

// Enabled reports whether the planner inserts refuel legs.
func (r *RefuelPlanner) Enabled() bool { return r.maxDistance > 0 }

// Nearest returns the refuel-capable skim index closest in time to from.
func (r *RefuelPlanner) Nearest(from int, s *skim.Skim) int {
	best, bestTime := r.stations[0], s.Time(from, r.stations[0])
	for _, st := range r.stations[1:] {
		if t := s.Time(from, st); t < bestTime {
			best, bestTime = st, t
		}
	}
	return best
}

// Apply appends a refuel leg to p when the vehicle's distance since its last
// refuel plus the plan's distance exceeds the range. It reports whether a
// leg was added.
func (r *RefuelPlanner) Apply(v model.Vehicle, p *Plan, s *skim.Skim) bool {
	if !r.Enabled() || v.DistanceSinceRefuel+p.Distance <= r.maxDistance {
		return false
	}
	last, ok := p.End()
	if !ok {
		return false
	}
	to := r.Nearest(p.EndIdx, s)
	chain := p.ChainID
	p.ChainID = -1
	r.builder.leg(p, s, p.EndIdx, to, last.ArrivalMinute, model.LegRefuel, nil)
	p.ChainID = chain
	p.EndIdx = to
	p.Refueled = true
	return true
}
