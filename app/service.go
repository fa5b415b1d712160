// Package app wires configuration, adapters and the simulator into a
// runnable service.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kilianp07/tncsim/config"
	corekpi "github.com/kilianp07/tncsim/core/kpi"
	coremetrics "github.com/kilianp07/tncsim/core/metrics"
	coremon "github.com/kilianp07/tncsim/core/monitoring"
	coremqtt "github.com/kilianp07/tncsim/core/mqtt"
	"github.com/kilianp07/tncsim/core/simulation"
	"github.com/kilianp07/tncsim/core/timebin"
	"github.com/kilianp07/tncsim/infra/input"
	"github.com/kilianp07/tncsim/infra/kpi"
	"github.com/kilianp07/tncsim/infra/logger"
	"github.com/kilianp07/tncsim/infra/metrics"
	"github.com/kilianp07/tncsim/infra/monitoring"
	"github.com/kilianp07/tncsim/infra/mqtt"
	"github.com/kilianp07/tncsim/infra/store"
	"github.com/kilianp07/tncsim/internal/eventbus"
	"github.com/kilianp07/tncsim/pkg/export"
)

// Output file names inside the CSV directory.
const (
	LegsFile    = "vehicle_legs.csv"
	ChainsFile  = "trip_chains.csv"
	TripIDsFile = "trip_ids.csv"
)

// Service runs one simulation from a configuration and writes its outputs.
type Service struct {
	cfg  *config.Config
	sim  *simulation.Simulator
	bus  *eventbus.TypedBus[simulation.BinEvent]
	sink coremetrics.MetricsSink
	mon  coremon.Monitor
	pub  coremqtt.LegPublisher
	log  logger.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher replaces the leg publisher built from the mqtt section.
func WithPublisher(p coremqtt.LegPublisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithMonitor replaces the monitor built from the sentry section.
func WithMonitor(m coremon.Monitor) Option {
	return func(s *Service) { s.mon = m }
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if err := logger.Configure(cfg.Logging); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	s := &Service{cfg: cfg, log: logger.New("service")}
	for _, o := range opts {
		o(s)
	}

	if s.mon == nil {
		mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
		if err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
		s.mon = mon
	}

	s.sink = coremetrics.NopSink{}
	if len(cfg.Metrics.Sinks) > 0 {
		sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sinks: %w", err)
		}
		s.sink = sink
	}

	if s.pub == nil {
		s.pub = coremqtt.NopPublisher{}
		if cfg.MQTT.Enabled {
			pub, err := mqtt.NewLegPublisher(cfg.MQTT)
			if err != nil {
				coremetrics.Close(s.sink)
				return nil, fmt.Errorf("mqtt publisher: %w", err)
			}
			s.pub = pub
		}
	}

	s.bus = eventbus.NewTyped[simulation.BinEvent]()
	sim, err := simulation.New(cfg.Simulation,
		simulation.WithLogger(logger.New("simulator")),
		simulation.WithMetricsSink(s.sink),
		simulation.WithEventBus(s.bus),
		simulation.WithMonitor(s.mon),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.sim = sim
	return s, nil
}

// Index returns the time-bin layout of the configured day.
func (s *Service) Index() *timebin.Index { return s.sim.Index() }

// Run loads the inputs, simulates the day and writes every configured
// output. Nothing is written when the simulation fails.
func (s *Service) Run(ctx context.Context) (*simulation.Result, error) {
	if addr := s.cfg.Metrics.ListenAddr; addr != "" {
		srvCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if err := metrics.StartPromServer(srvCtx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	in, err := s.loadInput()
	if err != nil {
		return nil, err
	}

	sub := s.bus.Subscribe()
	done := make(chan struct{})
	go s.reportProgress(sub, done)
	res, err := s.sim.Run(ctx, in)
	s.bus.Unsubscribe(sub)
	<-done
	if err != nil {
		return nil, err
	}

	kpis := corekpi.FromLegs(res.Legs)
	fleet := corekpi.Summarize(kpis)
	s.log.Infof("fleet: %d vehicles, %.1f distance, %.1f%% deadhead, %.2f average occupancy",
		fleet.Vehicles, fleet.Distance(), 100*fleet.DeadheadShare(), fleet.AverageOccupancy())

	if err := s.write(ctx, res, kpis); err != nil {
		s.mon.CaptureException(err, map[string]string{"kind": "output", "run_id": res.RunID})
		return nil, err
	}
	return res, nil
}

func (s *Service) loadInput() (simulation.Input, error) {
	trips, err := input.LoadTrips(s.cfg.Input.Trips)
	if err != nil {
		return simulation.Input{}, fmt.Errorf("load trips: %w", err)
	}
	zones, err := input.LoadZones(s.cfg.Input.Zones)
	if err != nil {
		return simulation.Input{}, fmt.Errorf("load zones: %w", err)
	}
	s.log.Infof("loaded %d trip requests from %d sources and %d zones", len(trips), len(s.cfg.Input.Trips), len(zones))
	return simulation.Input{
		Trips:  trips,
		Zones:  zones,
		Loader: input.NewFileLoader(s.cfg.Input.Skims),
	}, nil
}

// reportProgress logs a line per simulated hour.
func (s *Service) reportProgress(sub <-chan simulation.BinEvent, done chan<- struct{}) {
	defer close(done)
	perHour := 60 / s.sim.Index().BinMinutes()
	if perHour == 0 {
		perHour = 1
	}
	for ev := range sub {
		st := ev.Stats
		if st.Bin%perHour != perHour-1 {
			continue
		}
		s.log.Infof("%s [%s] bin %d: fleet %d, %d chains this bin",
			timebin.FormatClock(st.Clock), st.Period, st.Bin, st.FleetSize, st.Chains())
	}
}

func (s *Service) write(ctx context.Context, res *simulation.Result, kpis []corekpi.VehicleKPI) error {
	out := s.cfg.Output
	if out.Empty() && !s.cfg.MQTT.Enabled {
		s.log.Warnf("no output configured, run %s results are discarded", res.RunID)
	}
	if out.CSVDir != "" {
		if err := writeCSV(out.CSVDir, res); err != nil {
			return err
		}
		s.log.Infof("wrote csv tables to %s", out.CSVDir)
	}
	if out.JSONPath != "" {
		doc := export.Document{RunID: res.RunID, Legs: res.Legs, Chains: res.Chains, TripIDs: res.TripIDs, Vehicles: len(res.Vehicles)}
		if err := writeFile(out.JSONPath, func(w io.Writer) error { return export.WriteJSON(w, doc) }); err != nil {
			return err
		}
		s.log.Infof("wrote %s", out.JSONPath)
	}
	if out.ChartPath != "" {
		if err := writeFile(out.ChartPath, func(w io.Writer) error { return export.WriteBinChart(w, res.RunID, res.Bins) }); err != nil {
			return err
		}
		s.log.Infof("wrote %s", out.ChartPath)
	}
	if out.SQLitePath != "" {
		if err := saveSQLite(ctx, out.SQLitePath, res, kpis); err != nil {
			return err
		}
		s.log.Infof("saved run %s to %s", res.RunID, out.SQLitePath)
	}
	if err := s.pub.PublishLegs(ctx, res.RunID, res.Legs); err != nil {
		return fmt.Errorf("publish legs: %w", err)
	}
	return nil
}

func writeCSV(dir string, res *simulation.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{LegsFile, func(w io.Writer) error { return export.WriteLegsCSV(w, res.Legs) }},
		{ChainsFile, func(w io.Writer) error { return export.WriteChainsCSV(w, res.Chains) }},
		{TripIDsFile, func(w io.Writer) error { return export.WriteTripIDsCSV(w, res.TripIDs) }},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), f.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func saveSQLite(ctx context.Context, path string, res *simulation.Result, kpis []corekpi.VehicleKPI) error {
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer st.Close()
	err = st.Save(ctx, store.Run{
		ID:       res.RunID,
		Legs:     res.Legs,
		Chains:   res.Chains,
		TripIDs:  res.TripIDs,
		Vehicles: len(res.Vehicles),
	})
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	ks, err := kpi.NewSQLiteStore(path)
	if err != nil {
		return fmt.Errorf("open kpi store: %w", err)
	}
	defer ks.Close()
	if err := ks.Add(ctx, res.RunID, kpis); err != nil {
		return fmt.Errorf("save kpis: %w", err)
	}
	return nil
}

// Close releases the publisher, the metrics sinks and flushes the monitor.
func (s *Service) Close() {
	if s.bus != nil {
		s.bus.Close()
	}
	if s.pub != nil {
		s.pub.Close()
	}
	if s.sink != nil {
		coremetrics.Close(s.sink)
	}
	if s.mon != nil {
		s.mon.Flush(2 * time.Second)
	}
}
