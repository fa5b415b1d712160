package simerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig marks malformed or inconsistent configuration.
	ErrConfig = errors.New("config error")
	// ErrUnmappedZone is returned when a trip references a zone missing from the skim mapping.
	ErrUnmappedZone = errors.New("unmapped zone")
	// ErrMatchingDiverged signals that stable pair matching exceeded its pass ceiling.
	ErrMatchingDiverged = errors.New("pair matching diverged")
	// ErrVehicleMatchingDiverged signals that vehicle matching exceeded its pass ceiling.
	ErrVehicleMatchingDiverged = errors.New("vehicle matching diverged")
	// ErrInvariant marks a violated coverage or ordering invariant.
	ErrInvariant = errors.New("invariant violation")
)

// ConfigError describes an invalid configuration value. It aborts a run before
// the first time bin is simulated.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// Configf builds a ConfigError for field with a formatted reason.
func Configf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UnmappedZoneError is returned when a trip endpoint cannot be resolved to a
// skim matrix index.
type UnmappedZoneError struct {
	TripID string
	Zone   int
	Role   string // "origin" or "destination"
}

func (e *UnmappedZoneError) Error() string {
	return fmt.Sprintf("unmapped zone: trip %s %s zone %d has no skim index", e.TripID, e.Role, e.Zone)
}

func (e *UnmappedZoneError) Unwrap() error { return ErrUnmappedZone }

// Stage identifies which fixed-point loop diverged.
type Stage string

const (
	StagePairing Stage = "pair"
	StageVehicle Stage = "vehicle"
)

// DivergedError reports that an iterative matching loop hit its pass ceiling.
type DivergedError struct {
	Stage   Stage
	Bin     int
	Passes  int
	Pending int
}

func (e *DivergedError) Error() string {
	return fmt.Sprintf("%s matching diverged at bin %d after %d passes (%d pending)", e.Stage, e.Bin, e.Passes, e.Pending)
}

func (e *DivergedError) Unwrap() error {
	if e.Stage == StageVehicle {
		return ErrVehicleMatchingDiverged
	}
	return ErrMatchingDiverged
}

// InvariantViolation is a fatal breach of a coverage or ordering guarantee.
// It is never corrected silently.
type InvariantViolation struct {
	Bin       int
	VehicleID int
	TripIDs   []int
	Detail    string
}

func (e *InvariantViolation) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invariant violation at bin %d: %s", e.Bin, e.Detail)
	if e.VehicleID >= 0 {
		fmt.Fprintf(&b, " (vehicle %d)", e.VehicleID)
	}
	if len(e.TripIDs) > 0 {
		fmt.Fprintf(&b, " (trips %v)", e.TripIDs)
	}
	return b.String()
}

func (e *InvariantViolation) Unwrap() error { return ErrInvariant }

// Invariant builds an InvariantViolation that is not tied to a vehicle.
func Invariant(bin int, detail string, trips ...int) error {
	return &InvariantViolation{Bin: bin, VehicleID: -1, TripIDs: trips, Detail: detail}
}

// Kind returns a short label for err, used as a monitoring tag.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrUnmappedZone):
		return "unmapped_zone"
	case errors.Is(err, ErrMatchingDiverged):
		return "pair_diverged"
	case errors.Is(err, ErrVehicleMatchingDiverged):
		return "vehicle_diverged"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	default:
		return "other"
	}
}
