package fleet

import (
	"fmt"

	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/simerr"
)

// State owns every vehicle of a run and their itineraries. Vehicles live in
// a dense slice indexed by vehicle ID; IDs are never reused. Only the
// simulation loop mutates State, between bins.
type State struct {
	vehicles []model.Vehicle
	legs     [][]model.VehicleLeg
	emitted  []model.VehicleLeg
}

// NewState returns an empty fleet.
func NewState() *State { return &State{} }

// Len returns the fleet size.
func (s *State) Len() int { return len(s.vehicles) }

// Vehicle returns a copy of vehicle id.
func (s *State) Vehicle(id int) (model.Vehicle, bool) {
	if id < 0 || id >= len(s.vehicles) {
		return model.Vehicle{}, false
	}
	return s.vehicles[id], true
}

// Vehicles returns a copy of the fleet ordered by ID.
func (s *State) Vehicles() []model.Vehicle {
	return append([]model.Vehicle(nil), s.vehicles...)
}

// Release marks free every vehicle whose last leg completed before bin and
// returns how many changed state.
func (s *State) Release(bin int) int {
	n := 0
	for i := range s.vehicles {
		v := &s.vehicles[i]
		if !v.IsFree && v.FreeAt(bin) {
			v.IsFree = true
			n++
		}
	}
	return n
}

// Free returns copies of the free vehicles ordered by ID.
func (s *State) Free() []model.Vehicle {
	var out []model.Vehicle
	for _, v := range s.vehicles {
		if v.IsFree {
			out = append(out, v)
		}
	}
	return out
}

// Spawn creates a free vehicle at zone and returns a copy of it.
func (s *State) Spawn(bin, zone, zoneIdx int) model.Vehicle {
	v := model.Vehicle{
		ID:         len(s.vehicles),
		Zone:       zone,
		ZoneIdx:    zoneIdx,
		IsFree:     true,
		Created:    bin,
		NextFree:   bin,
		LastRefuel: -1,
	}
	s.vehicles = append(s.vehicles, v)
	s.legs = append(s.legs, nil)
	return v
}

// Commit folds the plans built for bin into the fleet. Each plan's legs are
// appended to its vehicle's itinerary; the vehicle moves to the last leg's
// destination and stays busy until the bin after its last arrival.
func (s *State) Commit(bin int, plans []Plan) error {
	seen := make(map[int]bool, len(plans))
	for _, p := range plans {
		if p.VehicleID < 0 || p.VehicleID >= len(s.vehicles) {
			return &simerr.InvariantViolation{Bin: bin, VehicleID: p.VehicleID, Detail: "plan for unknown vehicle"}
		}
		if seen[p.VehicleID] {
			return &simerr.InvariantViolation{Bin: bin, VehicleID: p.VehicleID, Detail: "vehicle planned twice in one bin"}
		}
		seen[p.VehicleID] = true
		if err := s.checkMonotonic(bin, p); err != nil {
			return err
		}
	}
	for _, p := range plans {
		if len(p.Legs) == 0 {
			continue
		}
		v := &s.vehicles[p.VehicleID]
		last := p.Legs[len(p.Legs)-1]
		v.Zone = last.DestinationZone
		v.ZoneIdx = p.EndIdx
		v.IsFree = false
		v.NextFree = last.ArrivalBin + 1
		if p.Refueled {
			v.DistanceSinceRefuel = 0
			v.LastRefuel = last.ArrivalBin
		} else {
			v.DistanceSinceRefuel += p.Distance
		}
		s.legs[p.VehicleID] = append(s.legs[p.VehicleID], p.Legs...)
		s.emitted = append(s.emitted, p.Legs...)
	}
	return nil
}

func (s *State) checkMonotonic(bin int, p Plan) error {
	prevArrival := -1.0
	if prev := s.legs[p.VehicleID]; len(prev) > 0 {
		prevArrival = prev[len(prev)-1].ArrivalMinute
	}
	prevBin := -1
	if prev := s.legs[p.VehicleID]; len(prev) > 0 {
		prevBin = prev[len(prev)-1].ArrivalBin
	}
	for k, l := range p.Legs {
		if l.VehicleID != p.VehicleID {
			return &simerr.InvariantViolation{Bin: bin, VehicleID: p.VehicleID, Detail: fmt.Sprintf("leg %d belongs to vehicle %d", k, l.VehicleID)}
		}
		if l.DepartMinute < prevArrival || l.DepartBin < prevBin || l.ArrivalBin < l.DepartBin {
			return &simerr.InvariantViolation{Bin: bin, VehicleID: p.VehicleID, Detail: fmt.Sprintf("leg %d departs before the previous leg arrives", k)}
		}
		prevArrival, prevBin = l.ArrivalMinute, l.ArrivalBin
	}
	return nil
}

// Legs returns a copy of the itinerary of vehicle id.
func (s *State) Legs(id int) []model.VehicleLeg {
	if id < 0 || id >= len(s.legs) {
		return nil
	}
	return append([]model.VehicleLeg(nil), s.legs[id]...)
}

// Emitted returns every committed leg in emission order.
func (s *State) Emitted() []model.VehicleLeg {
	return append([]model.VehicleLeg(nil), s.emitted...)
}
