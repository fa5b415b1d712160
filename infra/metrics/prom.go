package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/tncsim/core/metrics"
)

// PromSink exposes per-bin simulation statistics as Prometheus metrics.
type PromSink struct {
	trips    prometheus.Counter
	chains   *prometheus.CounterVec
	vehicles *prometheus.CounterVec
	refuels  prometheus.Counter
	minutes  *prometheus.CounterVec
	fleet    prometheus.Gauge
	free     prometheus.Gauge
	runs     prometheus.Counter
}

// NewPromSink registers the metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		trips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tncsim_trips_total",
			Help: "Trips simulated",
		}),
		chains: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tncsim_chains_total",
			Help: "Trip-chains built, by kind",
		}, []string{"kind"}),
		vehicles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tncsim_vehicle_assignments_total",
			Help: "Chain assignments, by vehicle source",
		}, []string{"source"}),
		refuels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tncsim_refuels_total",
			Help: "Refuel legs inserted",
		}),
		minutes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tncsim_vehicle_minutes_total",
			Help: "Vehicle minutes spent waiting for riders or driving empty",
		}, []string{"kind"}),
		fleet: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tncsim_fleet_size",
			Help: "Vehicles in the fleet after the last simulated bin",
		}),
		free: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tncsim_free_vehicles",
			Help: "Free vehicles after the last simulated bin",
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tncsim_completed_runs_total",
			Help: "Runs completed",
		}),
	}
	var err error
	if s.trips, err = register(reg, s.trips); err != nil {
		return nil, err
	}
	if s.chains, err = register(reg, s.chains); err != nil {
		return nil, err
	}
	if s.vehicles, err = register(reg, s.vehicles); err != nil {
		return nil, err
	}
	if s.refuels, err = register(reg, s.refuels); err != nil {
		return nil, err
	}
	if s.minutes, err = register(reg, s.minutes); err != nil {
		return nil, err
	}
	if s.fleet, err = register(reg, s.fleet); err != nil {
		return nil, err
	}
	if s.free, err = register(reg, s.free); err != nil {
		return nil, err
	}
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordBin adds the bin statistics to the counters and gauges.
func (s *PromSink) RecordBin(b coremetrics.BinStats) error {
	s.trips.Add(float64(b.Trips))
	s.chains.WithLabelValues("pooled").Add(float64(b.PooledPairs))
	s.chains.WithLabelValues("solo").Add(float64(b.SoloChains))
	s.vehicles.WithLabelValues("pool").Add(float64(b.Assigned))
	s.vehicles.WithLabelValues("spawned").Add(float64(b.Spawned))
	s.refuels.Add(float64(b.Refuels))
	s.minutes.WithLabelValues("wait").Add(b.WaitMinutes)
	s.minutes.WithLabelValues("deadhead").Add(b.DeadheadMinutes)
	s.fleet.Set(float64(b.FleetSize))
	s.free.Set(float64(b.FreeVehicles))
	return nil
}

// RecordRun counts a completed run.
func (s *PromSink) RecordRun(coremetrics.RunSummary) error {
	s.runs.Inc()
	return nil
}
