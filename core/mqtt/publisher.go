package mqtt

import (
	"context"

	"github.com/kilianp07/tncsim/core/model"
)

// LegPublisher streams the itinerary of a finished run to a broker.
type LegPublisher interface {
	// PublishLegs sends every leg of runID grouped by vehicle.
	PublishLegs(ctx context.Context, runID string, legs []model.VehicleLeg) error
	Close()
}

// NopPublisher discards every leg.
type NopPublisher struct{}

func (NopPublisher) PublishLegs(context.Context, string, []model.VehicleLeg) error { return nil }
func (NopPublisher) Close()                                                          {}
