// Package kpi derives per-vehicle and fleet indicators from itinerary legs.
package kpi

import (
	"sort"

	"github.com/kilianp07/tncsim/core/model"
)

// VehicleKPI aggregates the legs driven by one vehicle.
type VehicleKPI struct {
	VehicleID        int     `json:"vehicle_id"`
	Legs             int     `json:"legs"`
	TripsServed      int     `json:"trips_served"`
	Refuels          int     `json:"refuels"`
	LoadedDistance   float64 `json:"loaded_distance"`
	DeadheadDistance float64 `json:"deadhead_distance"`
	LoadedMinutes    float64 `json:"loaded_minutes"`
	DeadheadMinutes  float64 `json:"deadhead_minutes"`
	// PassengerDistance weights each leg distance by its occupancy.
	PassengerDistance float64 `json:"passenger_distance"`
}

// Distance returns the total distance driven.
func (k VehicleKPI) Distance() float64 { return k.LoadedDistance + k.DeadheadDistance }

// DeadheadShare is the fraction of distance driven empty.
func (k VehicleKPI) DeadheadShare() float64 {
	if d := k.Distance(); d > 0 {
		return k.DeadheadDistance / d
	}
	return 0
}

// AverageOccupancy is the distance-weighted number of riders aboard.
func (k VehicleKPI) AverageOccupancy() float64 {
	if d := k.Distance(); d > 0 {
		return k.PassengerDistance / d
	}
	return 0
}

func (k *VehicleKPI) add(l model.VehicleLeg) {
	k.Legs++
	if l.Type == model.LegRefuel {
		k.Refuels++
	}
	if l.Deadhead() {
		k.DeadheadDistance += l.Distance
		k.DeadheadMinutes += l.TravelTime
		return
	}
	k.LoadedDistance += l.Distance
	k.LoadedMinutes += l.TravelTime
	k.PassengerDistance += float64(l.Occupancy) * l.Distance
}

// FromLegs returns one record per vehicle appearing in legs, by ascending
// vehicle ID.
func FromLegs(legs []model.VehicleLeg) []VehicleKPI {
	byVehicle := map[int]*VehicleKPI{}
	served := map[int]map[int]struct{}{}
	for _, l := range legs {
		k, ok := byVehicle[l.VehicleID]
		if !ok {
			k = &VehicleKPI{VehicleID: l.VehicleID}
			byVehicle[l.VehicleID] = k
			served[l.VehicleID] = map[int]struct{}{}
		}
		k.add(l)
		for _, id := range l.TripIDs {
			served[l.VehicleID][id] = struct{}{}
		}
	}
	out := make([]VehicleKPI, 0, len(byVehicle))
	for id, k := range byVehicle {
		k.TripsServed = len(served[id])
		out = append(out, *k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

// Fleet totals the records of every vehicle.
type Fleet struct {
	Vehicles int
	VehicleKPI
}

// Summarize adds up vehicle records. The embedded VehicleID is unused.
func Summarize(ks []VehicleKPI) Fleet {
	f := Fleet{Vehicles: len(ks)}
	f.VehicleID = -1
	for _, k := range ks {
		f.Legs += k.Legs
		f.TripsServed += k.TripsServed
		f.Refuels += k.Refuels
		f.LoadedDistance += k.LoadedDistance
		f.DeadheadDistance += k.DeadheadDistance
		f.LoadedMinutes += k.LoadedMinutes
		f.DeadheadMinutes += k.DeadheadMinutes
		f.PassengerDistance += k.PassengerDistance
	}
	return f
}
