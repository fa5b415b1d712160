package model

import "fmt"

// Vehicle is a fleet-owned TNC vehicle. IDs are assigned monotonically and
// vehicles are never destroyed.
type Vehicle struct {
	ID       int
	Zone     int // current location zone
	ZoneIdx  int // skim index of Zone
	IsFree   bool
	Created  int // bin at which the vehicle was spawned
	NextFree int // first bin at which the vehicle is free again
	// LastRefuel is the bin of the last refuel arrival, -1 before the first one.
	LastRefuel          int
	DistanceSinceRefuel float64
}

// FreeAt reports whether the vehicle can accept work in bin.
func (v Vehicle) FreeAt(bin int) bool {
	return v.NextFree <= bin
}

// LegType classifies a vehicle leg.
type LegType int

const (
	LegPickup LegType = iota
	LegDropoff
	LegRefuel
)

func (t LegType) String() string {
	switch t {
	case LegPickup:
		return "pickup"
	case LegDropoff:
		return "dropoff"
	case LegRefuel:
		return "refuel"
	default:
		return fmt.Sprintf("LegType(%d)", int(t))
	}
}

// ParseLegType maps a label produced by String back to its LegType.
func ParseLegType(s string) (LegType, error) {
	for _, t := range []LegType{LegPickup, LegDropoff, LegRefuel} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown leg type %q", s)
}

// MarshalText encodes the leg type with its label.
func (t LegType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText decodes a label produced by MarshalText.
func (t *LegType) UnmarshalText(b []byte) error {
	v, err := ParseLegType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// VehicleLeg is one append-only movement record of a vehicle itinerary.
type VehicleLeg struct {
	VehicleID       int     `json:"vehicle_id"`
	ChainID         int     `json:"chain_id"` // -1 for refuel legs
	TripIDs         []int   `json:"servicing_trip_ids"`
	OriginZone      int     `json:"origin_zone"`
	DestinationZone int     `json:"destination_zone"`
	DepartBin       int     `json:"depart_bin"`
	ArrivalBin      int     `json:"arrival_bin"`
	DepartMinute    float64 `json:"depart_minute"`
	ArrivalMinute   float64 `json:"arrival_minute"`
	Type            LegType `json:"leg_type"`
	Occupancy       int     `json:"occupancy"`
	TravelTime      float64 `json:"travel_time"`
	Distance        float64 `json:"distance"`
}

// Deadhead reports whether the leg carries no riders.
func (l VehicleLeg) Deadhead() bool { return l.Occupancy == 0 }
