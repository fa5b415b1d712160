package metrics

import "time"

// BinStats summarises one simulated time bin.
type BinStats struct {
	RunID           string
	Bin             int
	Period          string
	Clock           time.Duration // time of day at the start of the bin
	Trips           int
	Candidates      int // pairs within the pooling buffer
	Feasible        int // pairs meeting the detour bound
	PooledPairs     int
	SoloChains      int
	Assigned        int // chains served by an existing free vehicle
	Spawned         int
	Refuels         int
	FleetSize       int
	FreeVehicles    int
	WaitMinutes     float64
	DeadheadMinutes float64
	Elapsed         time.Duration
}

// Chains returns the number of trip-chains of the bin.
func (s BinStats) Chains() int { return s.PooledPairs + s.SoloChains }

// MetricsSink records per-bin simulation statistics.
type MetricsSink interface {
	RecordBin(s BinStats) error
}

// RunSummary describes a completed run.
type RunSummary struct {
	RunID    string
	Trips    int
	Chains   int
	Legs     int
	Vehicles int
	Bins     int
	Elapsed  time.Duration
}

// RunRecorder is implemented by sinks able to record run summaries.
type RunRecorder interface {
	RecordRun(s RunSummary) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordBin(BinStats) error   { return nil }
func (NopSink) RecordRun(RunSummary) error { return nil }

// MultiSink forwards records to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordBin forwards the stats to all sinks, returning the first error.
func (m *MultiSink) RecordBin(s BinStats) error {
	for _, sink := range m.Sinks {
		if err := sink.RecordBin(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun forwards the summary to the sinks that support it.
func (m *MultiSink) RecordRun(s RunSummary) error {
	for _, sink := range m.Sinks {
		if rr, ok := sink.(RunRecorder); ok {
			if err := rr.RecordRun(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Closer is implemented by sinks holding connections.
type Closer interface {
	Close()
}

// Close releases the sinks behind s that hold resources.
func Close(s MetricsSink) {
	switch v := s.(type) {
	case *MultiSink:
		for _, sink := range v.Sinks {
			Close(sink)
		}
	case Closer:
		v.Close()
	}
}
