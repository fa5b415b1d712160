package simulation

import (
	"time"

	"github.com/kilianp07/tncsim/core/metrics"
	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/skim"
)

// Input gathers everything a run reads.
type Input struct {
	Trips  []model.TripRequest
	Zones  []model.Zone
	Loader skim.Loader
}

// Result holds the output tables of a completed run.
type Result struct {
	RunID    string
	Legs     []model.VehicleLeg
	Chains   []model.ChainRecord
	TripIDs  []model.TripIDMapping
	Vehicles []model.Vehicle
	Bins     []metrics.BinStats
	Elapsed  time.Duration
}

// Summary condenses the result for run-level metrics.
func (r *Result) Summary() metrics.RunSummary {
	return metrics.RunSummary{
		RunID:    r.RunID,
		Trips:    len(r.TripIDs),
		Chains:   len(r.Chains),
		Legs:     len(r.Legs),
		Vehicles: len(r.Vehicles),
		Bins:     len(r.Bins),
		Elapsed:  r.Elapsed,
	}
}

// VehicleLegs returns the legs of vehicle id in itinerary order.
func (r *Result) VehicleLegs(id int) []model.VehicleLeg {
	var out []model.VehicleLeg
	for _, l := range r.Legs {
		if l.VehicleID == id {
			out = append(out, l)
		}
	}
	return out
}

// BinEvent reports the completion of one time bin.
type BinEvent struct {
	RunID string
	Stats metrics.BinStats
}
