package fleet

import (
	"math"

	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/skim"
)

// Plan is the set of legs a vehicle receives in one bin.
type Plan struct {
	VehicleID int
	ChainID   int
	Legs      []model.VehicleLeg
	// Distance driven by the passenger and reposition legs.
	Distance float64
	// EndIdx is the skim index of the last leg's destination.
	EndIdx   int
	Wait     float64
	Refueled bool
}

// DeadheadMinutes sums the travel time of legs without riders.
func (p Plan) DeadheadMinutes() float64 {
	var total float64
	for _, l := range p.Legs {
		if l.Deadhead() {
			total += l.TravelTime
		}
	}
	return total
}

// End returns the last leg of the plan.
func (p Plan) End() (model.VehicleLeg, bool) {
	if len(p.Legs) == 0 {
		return model.VehicleLeg{}, false
	}
	return p.Legs[len(p.Legs)-1], true
}

// Builder expands chain assignments into vehicle legs.
type Builder struct {
	width float64
}

// NewBuilder returns a Builder for bins of binMinutes.
func NewBuilder(binMinutes int) *Builder {
	return &Builder{width: float64(binMinutes)}
}

func (b *Builder) binOf(minute float64) int {
	return int(math.Floor(minute/b.width + 1e-9))
}

// leg appends a leg from one skim index to another starting at depart and
// returns the arrival minute.
func (b *Builder) leg(p *Plan, s *skim.Skim, from, to int, depart float64, typ model.LegType, aboard []int) float64 {
	tt := s.Time(from, to)
	arrive := depart + tt
	p.Legs = append(p.Legs, model.VehicleLeg{
		VehicleID:       p.VehicleID,
		ChainID:         p.ChainID,
		TripIDs:         aboard,
		OriginZone:      s.Zones.Zone(from),
		DestinationZone: s.Zones.Zone(to),
		DepartBin:       b.binOf(depart),
		ArrivalBin:      b.binOf(arrive),
		DepartMinute:    depart,
		ArrivalMinute:   arrive,
		Type:            typ,
		Occupancy:       len(aboard),
		TravelTime:      tt,
		Distance:        s.Distance(from, to),
	})
	return arrive
}

// Build emits the legs of vehicle v serving chain during bin. A reposition
// leg from the vehicle location to the first stop precedes the chain when it
// takes time; it carries nobody and counts as the rider's initial wait.
func (b *Builder) Build(bin int, v model.Vehicle, chain model.TripChain, s *skim.Skim) Plan {
	p := Plan{VehicleID: v.ID, ChainID: chain.ID, EndIdx: v.ZoneIdx}
	clock := float64(bin) * b.width
	at := v.ZoneIdx

	first := chain.Origin()
	if tt := repositionTime(s, at, first.SkimIdx); tt > 0 {
		clock = b.leg(&p, s, at, first.SkimIdx, clock, model.LegPickup, nil)
		p.Wait = tt
		p.Distance += s.Distance(at, first.SkimIdx)
	}
	at = first.SkimIdx

	aboard := []int{first.TripID}
	for _, st := range chain.Stops[1:] {
		typ := model.LegPickup
		if st.Kind == model.Dropoff {
			typ = model.LegDropoff
		}
		clock = b.leg(&p, s, at, st.SkimIdx, clock, typ, append([]int(nil), aboard...))
		p.Distance += s.Distance(at, st.SkimIdx)
		at = st.SkimIdx
		if st.Kind == model.Pickup {
			aboard = append(aboard, st.TripID)
		} else {
			aboard = without(aboard, st.TripID)
		}
	}
	p.EndIdx = at
	return p
}

// repositionTime is the empty travel time between two skim indices. A
// vehicle already in the zone of the stop does not move.
func repositionTime(s *skim.Skim, from, to int) float64 {
	if from == to {
		return 0
	}
	return s.Time(from, to)
}

func without(ids []int, id int) []int {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
