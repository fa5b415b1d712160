package simulation

import "github.com/prometheus/client_golang/prometheus"

var (
	binDuration *prometheus.HistogramVec
	runsTotal   *prometheus.CounterVec
	fleetSize   prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Gauge) {
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tncsim_bin_duration_seconds",
			Help:    "Wall time spent simulating one time bin",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"period"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tncsim_runs_total",
			Help: "Simulation runs by outcome",
		},
		[]string{"outcome"},
	)
	fleet := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tncsim_fleet_vehicles",
			Help: "Vehicles created so far in the current run",
		},
	)
	return dur, runs, fleet
}

func init() {
	binDuration, runsTotal, fleetSize = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers simulation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(binDuration, runsTotal, fleetSize)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	binDuration, runsTotal, fleetSize = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
