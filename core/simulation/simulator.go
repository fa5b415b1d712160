// Package simulation drives the bin-by-bin loop: it pools the trips of each
// time bin, assigns the resulting chains to vehicles, builds and commits
// their itineraries and collects the output tables of the day.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/tncsim/core/enrich"
	"github.com/kilianp07/tncsim/core/fleet"
	"github.com/kilianp07/tncsim/core/logger"
	"github.com/kilianp07/tncsim/core/metrics"
	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/monitoring"
	"github.com/kilianp07/tncsim/core/pooling"
	"github.com/kilianp07/tncsim/core/simerr"
	"github.com/kilianp07/tncsim/core/skim"
	"github.com/kilianp07/tncsim/core/timebin"
	"github.com/kilianp07/tncsim/internal/eventbus"
)

// Simulator runs the trip-pooling and dispatch loop over one day.
type Simulator struct {
	cfg  Config
	idx  *timebin.Index
	log  logger.Logger
	sink metrics.MetricsSink
	bus  *eventbus.TypedBus[BinEvent]
	mon  monitoring.Monitor
}

// Option customises a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsSink sets the sink receiving per-bin statistics.
func WithMetricsSink(m metrics.MetricsSink) Option {
	return func(s *Simulator) {
		if m != nil {
			s.sink = m
		}
	}
}

// WithEventBus publishes a BinEvent on bus after every bin.
func WithEventBus(bus *eventbus.TypedBus[BinEvent]) Option {
	return func(s *Simulator) { s.bus = bus }
}

// WithMonitor reports fatal run errors to m.
func WithMonitor(m monitoring.Monitor) Option {
	return func(s *Simulator) {
		if m != nil {
			s.mon = m
		}
	}
}

// New validates cfg and returns a Simulator.
func New(cfg Config, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	idx, err := timebin.New(cfg.TimeBins)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		cfg:  cfg,
		idx:  idx,
		log:  logger.NopLogger{},
		sink: metrics.NopSink{},
		mon:  monitoring.NopMonitor{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Index returns the time-bin index of the run.
func (s *Simulator) Index() *timebin.Index { return s.idx }

// Run simulates every bin of the day in ascending order. Any error aborts
// the run and no result is returned.
func (s *Simulator) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	s.log.Infof("run %s: %d trip requests, %d bins of %d min", runID, len(in.Trips), s.idx.BinsPerDay(), s.idx.BinMinutes())

	res, err := s.run(ctx, runID, in)
	if err != nil {
		runsTotal.WithLabelValues(simerr.Kind(err)).Inc()
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			tags := monitoring.Tags(err)
			tags["run_id"] = runID
			s.mon.CaptureException(err, tags)
		}
		s.log.Errorf("run %s aborted: %v", runID, err)
		return nil, err
	}
	res.Elapsed = time.Since(start)
	runsTotal.WithLabelValues("ok").Inc()
	if rr, ok := s.sink.(metrics.RunRecorder); ok {
		if err := rr.RecordRun(res.Summary()); err != nil {
			s.log.Warnf("record run summary: %v", err)
		}
	}
	s.log.Infof("run %s done in %s: %d chains, %d legs, %d vehicles", runID, res.Elapsed.Round(time.Millisecond), len(res.Chains), len(res.Legs), len(res.Vehicles))
	return res, nil
}

// stages bundles the per-run components built once the skim mapping is known.
type stages struct {
	pooler  *pooling.Pooler
	matcher *fleet.Matcher
	builder *fleet.Builder
	refuel  *fleet.RefuelPlanner
}

func (s *Simulator) stages(zones []model.Zone, index *skim.ZoneIndex) (stages, error) {
	pooler, err := pooling.NewPooler(pooling.Config{
		PoolingBuffer: s.cfg.PoolingBufferMinutes,
		MaxDetour:     s.cfg.MaxDetourMinutes,
		BatchSize:     s.cfg.BatchSize,
		Workers:       s.cfg.Workers,
		MaxPasses:     s.cfg.MaxPairPasses,
	}, s.log)
	if err != nil {
		return stages{}, err
	}
	matcher, err := fleet.NewMatcher(fleet.MatcherConfig{
		MaxWait:   s.cfg.MaxWaitMinutes,
		BatchSize: s.cfg.BatchSize,
		Workers:   s.cfg.Workers,
		MaxPasses: s.cfg.MaxVehiclePasses,
	})
	if err != nil {
		return stages{}, err
	}
	builder := fleet.NewBuilder(s.idx.BinMinutes())
	refuel, err := fleet.NewRefuelPlanner(s.cfg.MaxRefuelDistance, zones, index, builder)
	if err != nil {
		return stages{}, err
	}
	return stages{pooler: pooler, matcher: matcher, builder: builder, refuel: refuel}, nil
}

func (s *Simulator) run(ctx context.Context, runID string, in Input) (*Result, error) {
	if in.Loader == nil {
		return nil, simerr.Configf("input.skims", "no skim loader configured")
	}
	cache := skim.NewCache(in.Loader, s.log)
	_, first, err := s.idx.PeriodFor(0)
	if err != nil {
		return nil, err
	}
	sk, err := cache.EnsureLoaded(ctx, first)
	if err != nil {
		return nil, err
	}
	st, err := s.stages(in.Zones, sk.Zones)
	if err != nil {
		return nil, err
	}
	enriched, err := enrich.Enrich(in.Trips, sk.Zones, s.idx, s.cfg.Seed)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: runID, TripIDs: enriched.Mapping}
	byBin := enrich.ByBin(enriched.Trips, s.idx.BinsPerDay())
	state := fleet.NewState()
	nextChain := 0

	for bin := range byBin {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats, records, err := s.step(ctx, runID, bin, byBin[bin], cache, state, st, &nextChain)
		if err != nil {
			return nil, err
		}
		res.Chains = append(res.Chains, records...)
		res.Bins = append(res.Bins, stats)
		if err := s.sink.RecordBin(stats); err != nil {
			s.log.Warnf("record bin %d: %v", bin, err)
		}
		if s.bus != nil {
			s.bus.Publish(BinEvent{RunID: runID, Stats: stats})
		}
	}

	if err := checkTripCoverage(len(enriched.Trips), res.Chains); err != nil {
		return nil, err
	}
	res.Legs = state.Emitted()
	res.Vehicles = state.Vehicles()
	return res, nil
}

// step simulates one bin and folds its legs into state.
func (s *Simulator) step(ctx context.Context, runID string, bin int, trips []model.Trip, cache *skim.Cache, state *fleet.State, st stages, nextChain *int) (metrics.BinStats, []model.ChainRecord, error) {
	began := time.Now()
	clock, period, err := s.idx.PeriodFor(bin)
	if err != nil {
		return metrics.BinStats{}, nil, err
	}
	sk, err := cache.EnsureLoaded(ctx, period)
	if err != nil {
		return metrics.BinStats{}, nil, fmt.Errorf("bin %d: %w", bin, err)
	}
	state.Release(bin)
	stats := metrics.BinStats{RunID: runID, Bin: bin, Period: period, Clock: clock, Trips: len(trips)}

	pooled, err := st.pooler.PoolBin(ctx, bin, trips, sk)
	if err != nil {
		return metrics.BinStats{}, nil, err
	}
	chains := pooled.Chains
	for i := range chains {
		chains[i].ID = *nextChain
		*nextChain++
	}
	stats.Candidates, stats.Feasible, stats.PooledPairs = pooled.Candidates, pooled.Feasible, pooled.PooledPairs
	stats.SoloChains = len(chains) - pooled.PooledPairs

	matched, err := st.matcher.Match(ctx, bin, chains, state.Free(), sk)
	if err != nil {
		return metrics.BinStats{}, nil, err
	}
	assigned := matched.Assigned
	for _, c := range matched.Unserved {
		o := chains[c].Origin()
		v := state.Spawn(bin, o.Zone, o.SkimIdx)
		assigned = append(assigned, fleet.Assignment{Chain: c, Vehicle: v, Spawned: true})
	}
	sort.Slice(assigned, func(a, b int) bool { return assigned[a].Chain < assigned[b].Chain })
	if err := checkAssignments(bin, len(chains), assigned); err != nil {
		return metrics.BinStats{}, nil, err
	}
	stats.Assigned = len(matched.Assigned)
	stats.Spawned = len(matched.Unserved)

	plans := make([]fleet.Plan, 0, len(assigned))
	records := make([]model.ChainRecord, 0, len(assigned))
	for _, a := range assigned {
		p := st.builder.Build(bin, a.Vehicle, chains[a.Chain], sk)
		if st.refuel.Apply(a.Vehicle, &p, sk) {
			stats.Refuels++
		}
		stats.WaitMinutes += p.Wait
		stats.DeadheadMinutes += p.DeadheadMinutes()
		plans = append(plans, p)
		records = append(records, chains[a.Chain].Record(a.Vehicle.ID, p.Wait))
	}
	if err := state.Commit(bin, plans); err != nil {
		return metrics.BinStats{}, nil, err
	}

	stats.FleetSize = state.Len()
	stats.FreeVehicles = len(state.Free())
	stats.Elapsed = time.Since(began)
	binDuration.WithLabelValues(period).Observe(stats.Elapsed.Seconds())
	fleetSize.Set(float64(stats.FleetSize))
	if len(trips) > 0 {
		s.log.Debugw("bin simulated", map[string]any{
			"bin":     bin,
			"clock":   timebin.FormatClock(clock),
			"period":  period,
			"trips":   len(trips),
			"pooled":  stats.PooledPairs,
			"spawned": stats.Spawned,
			"refuels": stats.Refuels,
			"fleet":   stats.FleetSize,
		})
	}
	return stats, records, nil
}

// checkAssignments verifies that every chain of the bin has exactly one
// vehicle and that no vehicle serves two chains.
func checkAssignments(bin, chains int, assigned []fleet.Assignment) error {
	perChain := make([]int, chains)
	vehicles := make(map[int]int, len(assigned))
	for _, a := range assigned {
		if a.Chain < 0 || a.Chain >= chains {
			return simerr.Invariant(bin, fmt.Sprintf("assignment for unknown chain %d", a.Chain))
		}
		perChain[a.Chain]++
		if prev, dup := vehicles[a.Vehicle.ID]; dup {
			return &simerr.InvariantViolation{Bin: bin, VehicleID: a.Vehicle.ID, Detail: fmt.Sprintf("vehicle assigned to chains %d and %d", prev, a.Chain)}
		}
		vehicles[a.Vehicle.ID] = a.Chain
	}
	for c, n := range perChain {
		if n != 1 {
			return simerr.Invariant(bin, fmt.Sprintf("chain %d assigned to %d vehicles", c, n))
		}
	}
	return nil
}

// checkTripCoverage verifies that each trip appears in exactly one chain.
func checkTripCoverage(trips int, chains []model.ChainRecord) error {
	seen := make([]int, trips)
	mark := func(bin, id int) error {
		if id < 0 || id >= trips {
			return simerr.Invariant(bin, "chain references an unknown trip", id)
		}
		seen[id]++
		return nil
	}
	for _, c := range chains {
		if err := mark(c.Bin, c.TripI); err != nil {
			return err
		}
		if c.TripJ != nil {
			if err := mark(c.Bin, *c.TripJ); err != nil {
				return err
			}
		}
	}
	for id, n := range seen {
		if n != 1 {
			return simerr.Invariant(-1, fmt.Sprintf("trip served by %d chains", n), id)
		}
	}
	return nil
}
