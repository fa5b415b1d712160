package model

import (
	"fmt"
	"strings"
)

// Mode tells whether a trip may be shared with another rider.
type Mode int

const (
	// ModeExclusive trips always ride alone.
	ModeExclusive Mode = iota
	// ModePoolable trips may be paired under the detour constraint.
	ModePoolable
)

func (m Mode) String() string {
	switch m {
	case ModeExclusive:
		return "exclusive"
	case ModePoolable:
		return "poolable"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the labels produced by String plus the common "solo" and
// "shared" aliases used by upstream demand tables.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exclusive", "solo", "single", "0":
		return ModeExclusive, nil
	case "poolable", "shared", "pool", "1":
		return ModePoolable, nil
	default:
		return 0, fmt.Errorf("unknown trip mode %q", s)
	}
}

// TripRequest is one row of the input trip list, before enrichment.
type TripRequest struct {
	Source          string `json:"source"`
	TripID          string `json:"trip_id"`
	Mode            Mode   `json:"mode"`
	OriginZone      int    `json:"origin_zone"`
	DestinationZone int    `json:"destination_zone"`
	// DepartWindow is the half-hour departure index counted from the start
	// of the simulated day.
	DepartWindow int `json:"depart_window"`
}

// Trip is an enriched, immutable trip. ID is the dense internal identifier
// used by every later stage.
type Trip struct {
	ID              int
	Source          string
	OriginalID      string
	Mode            Mode
	OriginZone      int
	DestinationZone int
	DepartWindow    int
	OriginIdx       int
	DestIdx         int
	TimeBin         int
}

// Poolable reports whether the trip may take part in pairing.
func (t Trip) Poolable() bool { return t.Mode == ModePoolable }

// TripIDMapping links an internal trip ID back to its source row.
type TripIDMapping struct {
	InternalID int    `json:"internal_id"`
	Source     string `json:"source"`
	OriginalID string `json:"original_id"`
}

// Zone is a row of the zone table.
type Zone struct {
	ID            int  `json:"zone_id"`
	RefuelCapable bool `json:"is_refuel_capable"`
}
