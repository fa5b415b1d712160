package enrich

import (
	"fmt"
	"math/rand"

	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/simerr"
	"github.com/kilianp07/tncsim/core/skim"
	"github.com/kilianp07/tncsim/core/timebin"
)

// Result is the immutable output of enrichment.
type Result struct {
	Trips   []model.Trip
	Mapping []model.TripIDMapping
}

// Enrich resolves zones to skim indices, assigns dense internal IDs in input
// order and samples a time bin for every request. The same seed always yields
// the same bins.
func Enrich(reqs []model.TripRequest, zones *skim.ZoneIndex, idx *timebin.Index, seed int64) (Result, error) {
	rng := rand.New(rand.NewSource(seed))
	res := Result{
		Trips:   make([]model.Trip, 0, len(reqs)),
		Mapping: make([]model.TripIDMapping, 0, len(reqs)),
	}
	type key struct{ source, id string }
	seen := make(map[key]int, len(reqs))
	last := idx.BinsPerDay() - 1

	for i, r := range reqs {
		k := key{r.Source, r.TripID}
		if prev, dup := seen[k]; dup {
			return Result{}, simerr.Invariant(-1, fmt.Sprintf("duplicate trip id %q in source %q", r.TripID, r.Source), prev, i)
		}
		seen[k] = i

		o, ok := zones.Index(r.OriginZone)
		if !ok {
			return Result{}, &simerr.UnmappedZoneError{TripID: r.TripID, Zone: r.OriginZone, Role: "origin"}
		}
		d, ok := zones.Index(r.DestinationZone)
		if !ok {
			return Result{}, &simerr.UnmappedZoneError{TripID: r.TripID, Zone: r.DestinationZone, Role: "destination"}
		}
		if r.DepartWindow < 0 || r.DepartWindow >= timebin.WindowsPerDay {
			return Result{}, simerr.Invariant(-1, fmt.Sprintf("trip %q departure window %d outside [0,%d)", r.TripID, r.DepartWindow, timebin.WindowsPerDay), i)
		}

		lo, hi := idx.WindowBins(r.DepartWindow)
		bin := lo + rng.Intn(hi-lo)
		if bin > last {
			bin = last
		}
		res.Trips = append(res.Trips, model.Trip{
			ID:              i,
			Source:          r.Source,
			OriginalID:      r.TripID,
			Mode:            r.Mode,
			OriginZone:      r.OriginZone,
			DestinationZone: r.DestinationZone,
			DepartWindow:    r.DepartWindow,
			OriginIdx:       o,
			DestIdx:         d,
			TimeBin:         bin,
		})
		res.Mapping = append(res.Mapping, model.TripIDMapping{InternalID: i, Source: r.Source, OriginalID: r.TripID})
	}
	return res, nil
}

// ByBin groups trips by time bin, preserving internal ID order inside a bin.
func ByBin(trips []model.Trip, bins int) [][]model.Trip {
	out := make([][]model.Trip, bins)
	for _, t := range trips {
		out[t.TimeBin] = append(out[t.TimeBin], t)
	}
	return out
}
