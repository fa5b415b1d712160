package model

// CandidatePair is a feasible pooling option for two trips of the same bin.
// I is always the trip listed first in its batch.
type CandidatePair struct {
	I, J        int
	Totals      [4]float64
	Scenario    RouteScenario
	TotalTime   float64
	DetourI     float64
	DetourJ     float64
	TotalDetour float64
}

// Stop is one node of a trip-chain path.
type Stop struct {
	Zone    int
	SkimIdx int
	TripID  int
	Kind    StopKind
}

// TripChain is a routed episode served by one vehicle: either a pooled pair
// (four stops) or a single trip (two stops).
type TripChain struct {
	ID        int
	Bin       int
	Trips     []int
	Stops     []Stop
	Scenario  RouteScenario
	TotalTime float64
	DetourI   float64
	DetourJ   float64
}

// Pooled reports whether the chain serves two riders.
func (c TripChain) Pooled() bool { return len(c.Trips) == 2 }

// Origin returns the first stop of the chain.
func (c TripChain) Origin() Stop { return c.Stops[0] }

// ChainRecord is one row of the trip-chain output table.
type ChainRecord struct {
	ChainID            int      `json:"chain_id"`
	Bin                int      `json:"bin"`
	TripI              int      `json:"trip_i"`
	TripJ              *int     `json:"trip_j"`
	Scenario           string   `json:"route_scenario"`
	TotalInVehicleTime float64  `json:"total_in_vehicle_time"`
	DetourI            float64  `json:"detour_i"`
	DetourJ            *float64 `json:"detour_j"`
	InitialWait        float64  `json:"initial_wait"`
	VehicleID          int      `json:"vehicle_id"`
}

// Record converts the chain into its output row.
func (c TripChain) Record(vehicleID int, wait float64) ChainRecord {
	rec := ChainRecord{
		ChainID:            c.ID,
		Bin:                c.Bin,
		TripI:              c.Trips[0],
		Scenario:           c.Scenario.String(),
		TotalInVehicleTime: c.TotalTime,
		DetourI:            c.DetourI,
		InitialWait:        wait,
		VehicleID:          vehicleID,
	}
	if c.Pooled() {
		j := c.Trips[1]
		dj := c.DetourJ
		rec.TripJ = &j
		rec.DetourJ = &dj
	}
	return rec
}
