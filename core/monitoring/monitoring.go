package monitoring

import (
	"errors"
	"strconv"
	"time"

	"github.com/kilianp07/tncsim/core/simerr"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// NopMonitor discards every report.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration)                       {}

// Tags derives report tags from a simulation error: its kind and, when the
// error carries them, the bin and vehicle involved.
func Tags(err error) map[string]string {
	tags := map[string]string{"kind": simerr.Kind(err)}
	var inv *simerr.InvariantViolation
	var div *simerr.DivergedError
	var cfg *simerr.ConfigError
	var zone *simerr.UnmappedZoneError
	switch {
	case errors.As(err, &inv):
		tags["bin"] = strconv.Itoa(inv.Bin)
		if inv.VehicleID >= 0 {
			tags["vehicle_id"] = strconv.Itoa(inv.VehicleID)
		}
	case errors.As(err, &div):
		tags["bin"] = strconv.Itoa(div.Bin)
		tags["stage"] = string(div.Stage)
	case errors.As(err, &cfg):
		tags["field"] = cfg.Field
	case errors.As(err, &zone):
		tags["trip_id"] = zone.TripID
		tags["zone"] = strconv.Itoa(zone.Zone)
	}
	return tags
}
