package simerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsUnwrapToSentinels(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
		kind string
	}{
		{"config", Configf("bin_minutes", "must be positive, got %d", 0), ErrConfig, "config"},
		{"zone", &UnmappedZoneError{TripID: "t1", Zone: 9, Role: "origin"}, ErrUnmappedZone, "unmapped_zone"},
		{"pair", &DivergedError{Stage: StagePairing, Bin: 3, Passes: 10}, ErrMatchingDiverged, "pair_diverged"},
		{"vehicle", &DivergedError{Stage: StageVehicle, Bin: 3, Passes: 10}, ErrVehicleMatchingDiverged, "vehicle_diverged"},
		{"invariant", Invariant(4, "trip in two chains", 1, 2), ErrInvariant, "invariant"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			wrapped := fmt.Errorf("bin: %w", c.err)
			assert.ErrorIs(t, wrapped, c.want)
			assert.Equal(t, c.kind, Kind(wrapped))
		})
	}
	assert.Equal(t, "other", Kind(errors.New("boom")))
}

func TestInvariantViolationMessage(t *testing.T) {
	err := &InvariantViolation{Bin: 2, VehicleID: 7, Detail: "legs overlap"}
	assert.Equal(t, "invariant violation at bin 2: legs overlap (vehicle 7)", err.Error())

	var iv *InvariantViolation
	assert.True(t, errors.As(Invariant(1, "missing", 5), &iv))
	assert.Equal(t, []int{5}, iv.TripIDs)
	assert.Equal(t, -1, iv.VehicleID)
}
