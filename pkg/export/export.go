// Package export writes the output tables of a run as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/kilianp07/tncsim/core/model"
)

// Document is the JSON layout of a complete run.
type Document struct {
	RunID    string                `json:"run_id"`
	Legs     []model.VehicleLeg    `json:"legs"`
	Chains   []model.ChainRecord   `json:"chains"`
	TripIDs  []model.TripIDMapping `json:"trip_ids"`
	Vehicles int                   `json:"vehicles"`
}

// WriteJSON writes doc to w as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ";")
}

func writeAll(w io.Writer, header []string, n int, row func(int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LegHeader lists the columns of the vehicle-leg table.
var LegHeader = []string{
	"vehicle_id", "chain_id", "servicing_trip_ids", "origin_zone", "destination_zone",
	"depart_bin", "arrival_bin", "depart_minute", "arrival_minute", "leg_type",
	"occupancy", "travel_time", "distance",
}

// WriteLegsCSV writes one row per vehicle leg. Serviced trips are joined
// with semicolons.
func WriteLegsCSV(w io.Writer, legs []model.VehicleLeg) error {
	return writeAll(w, LegHeader, len(legs), func(i int) []string {
		l := legs[i]
		return []string{
			strconv.Itoa(l.VehicleID),
			strconv.Itoa(l.ChainID),
			joinIDs(l.TripIDs),
			strconv.Itoa(l.OriginZone),
			strconv.Itoa(l.DestinationZone),
			strconv.Itoa(l.DepartBin),
			strconv.Itoa(l.ArrivalBin),
			ftoa(l.DepartMinute),
			ftoa(l.ArrivalMinute),
			l.Type.String(),
			strconv.Itoa(l.Occupancy),
			ftoa(l.TravelTime),
			ftoa(l.Distance),
		}
	})
}

// ChainHeader lists the columns of the trip-chain table.
var ChainHeader = []string{
	"chain_id", "bin", "trip_i", "trip_j", "route_scenario", "total_in_vehicle_time",
	"detour_i", "detour_j", "initial_wait", "vehicle_id",
}

// WriteChainsCSV writes one row per trip-chain. The second rider columns
// are empty for solo chains.
func WriteChainsCSV(w io.Writer, chains []model.ChainRecord) error {
	return writeAll(w, ChainHeader, len(chains), func(i int) []string {
		c := chains[i]
		tripJ, detourJ := "", ""
		if c.TripJ != nil {
			tripJ = strconv.Itoa(*c.TripJ)
		}
		if c.DetourJ != nil {
			detourJ = ftoa(*c.DetourJ)
		}
		return []string{
			strconv.Itoa(c.ChainID),
			strconv.Itoa(c.Bin),
			strconv.Itoa(c.TripI),
			tripJ,
			c.Scenario,
			ftoa(c.TotalInVehicleTime),
			ftoa(c.DetourI),
			detourJ,
			ftoa(c.InitialWait),
			strconv.Itoa(c.VehicleID),
		}
	})
}

// WriteTripIDsCSV writes the internal to original trip ID mapping.
func WriteTripIDsCSV(w io.Writer, ids []model.TripIDMapping) error {
	return writeAll(w, []string{"internal_id", "source", "original_id"}, len(ids), func(i int) []string {
		m := ids[i]
		return []string{strconv.Itoa(m.InternalID), m.Source, m.OriginalID}
	})
}
