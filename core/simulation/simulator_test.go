package simulation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/tncsim/core/metrics"
	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/simerr"
	"github.com/kilianp07/tncsim/core/skim"
	"github.com/kilianp07/tncsim/core/timebin"
	"github.com/kilianp07/tncsim/internal/eventbus"
)

var lineZones = []int{101, 102, 103, 104}

// lineSkims places the zones on a line: six minutes and four distance units
// per hop, two minutes and one unit inside a zone.
func lineSkims(t *testing.T) *skim.StaticLoader {
	t.Helper()
	zi, err := skim.NewZoneIndex(lineZones)
	require.NoError(t, err)
	n := len(lineZones)
	tv := make([]float64, n*n)
	dv := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			hops := i - j
			if hops < 0 {
				hops = -hops
			}
			tv[i*n+j], dv[i*n+j] = float64(6*hops), float64(4*hops)
			if hops == 0 {
				tv[i*n+j], dv[i*n+j] = 2, 1
			}
		}
	}
	tm, err := skim.NewMatrix(zi, tv)
	require.NoError(t, err)
	dm, err := skim.NewMatrix(zi, dv)
	require.NoError(t, err)
	return skim.Uniform([]string{"AM", "PM"}, skim.PeriodMatrices{Time: tm, Distance: dm})
}

func halfHourBins() timebin.Config {
	return timebin.Config{
		BinMinutes:       30,
		PeriodBoundaries: []int{0, 24, timebin.WindowsPerDay},
		PeriodLabels:     []string{"AM", "PM"},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TimeBins = halfHourBins()
	cfg.BatchSize = 8
	cfg.Workers = 4
	return cfg
}

func zonesTable(refuel ...int) []model.Zone {
	capable := map[int]bool{}
	for _, z := range refuel {
		capable[z] = true
	}
	out := make([]model.Zone, len(lineZones))
	for i, z := range lineZones {
		out[i] = model.Zone{ID: z, RefuelCapable: capable[z]}
	}
	return out
}

func demand(n int) []model.TripRequest {
	reqs := make([]model.TripRequest, n)
	for i := range reqs {
		mode := model.ModePoolable
		if i%5 == 4 {
			mode = model.ModeExclusive
		}
		reqs[i] = model.TripRequest{
			Source:          "hh",
			TripID:          fmt.Sprintf("t%d", i),
			Mode:            mode,
			OriginZone:      lineZones[i%4],
			DestinationZone: lineZones[(i*3+2)%4],
			DepartWindow:    i % 6,
		}
	}
	return reqs
}

func run(t *testing.T, cfg Config, in Input, opts ...Option) *Result {
	t.Helper()
	sim, err := New(cfg, opts...)
	require.NoError(t, err)
	res, err := sim.Run(context.Background(), in)
	require.NoError(t, err)
	return res
}

func TestRunCoversEveryTripOnce(t *testing.T) {
	in := Input{Trips: demand(40), Zones: zonesTable(), Loader: lineSkims(t)}
	res := run(t, testConfig(), in)

	require.Len(t, res.TripIDs, 40)
	served := map[int]int{}
	for _, c := range res.Chains {
		served[c.TripI]++
		if c.TripJ != nil {
			served[*c.TripJ]++
			require.NotNil(t, c.DetourJ)
		}
		assert.GreaterOrEqual(t, c.VehicleID, 0)
		assert.Less(t, c.VehicleID, len(res.Vehicles))
		assert.LessOrEqual(t, c.InitialWait, testConfig().MaxWaitMinutes+1e-9)
	}
	require.Len(t, served, 40)
	for id, n := range served {
		assert.Equal(t, 1, n, "trip %d", id)
	}
	assert.Len(t, res.Bins, 48)
	assert.NotEmpty(t, res.RunID)
}

func TestRunLegsAreMonotonic(t *testing.T) {
	in := Input{Trips: demand(60), Zones: zonesTable(), Loader: lineSkims(t)}
	res := run(t, testConfig(), in)

	for _, v := range res.Vehicles {
		legs := res.VehicleLegs(v.ID)
		require.NotEmpty(t, legs, "vehicle %d has no legs", v.ID)
		for k := 1; k < len(legs); k++ {
			assert.LessOrEqual(t, legs[k-1].ArrivalBin, legs[k].DepartBin, "vehicle %d leg %d", v.ID, k)
			assert.LessOrEqual(t, legs[k-1].ArrivalMinute, legs[k].DepartMinute)
		}
		for _, l := range legs {
			assert.Equal(t, len(l.TripIDs), l.Occupancy)
			assert.LessOrEqual(t, l.Occupancy, 2)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	in := Input{Trips: demand(60), Zones: zonesTable(101, 104), Loader: lineSkims(t)}
	cfg := testConfig()
	cfg.MaxRefuelDistance = 12

	a := run(t, cfg, in)
	cfg.Workers = 1
	b := run(t, cfg, in)

	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, a.Chains, b.Chains)
	assert.Equal(t, a.Legs, b.Legs)
	assert.Equal(t, a.Vehicles, b.Vehicles)
}

func TestRunSpawnsWhenNearestVehicleIsTooFar(t *testing.T) {
	in := Input{
		Zones:  zonesTable(),
		Loader: lineSkims(t),
		Trips: []model.TripRequest{
			{Source: "hh", TripID: "a", Mode: model.ModeExclusive, OriginZone: 101, DestinationZone: 104, DepartWindow: 0},
			{Source: "hh", TripID: "b", Mode: model.ModeExclusive, OriginZone: 101, DestinationZone: 102, DepartWindow: 2},
		},
	}
	res := run(t, testConfig(), in)
	require.Len(t, res.Vehicles, 2)
	require.Len(t, res.Chains, 2)
	assert.Equal(t, 1, res.Chains[1].VehicleID)
	assert.Zero(t, res.Chains[1].InitialWait)
	legs := res.VehicleLegs(1)
	require.Len(t, legs, 1)
	assert.Equal(t, 101, legs[0].OriginZone)
	assert.Equal(t, 2, res.Vehicles[1].Created)

	cfg := testConfig()
	cfg.MaxWaitMinutes = 20
	res = run(t, cfg, in)
	require.Len(t, res.Vehicles, 1)
	assert.Equal(t, 18.0, res.Chains[1].InitialWait)
	legs = res.VehicleLegs(0)
	require.Len(t, legs, 3)
	assert.True(t, legs[1].Deadhead())
	assert.Equal(t, model.LegPickup, legs[1].Type)
}

func TestRunInsertsRefuelLegs(t *testing.T) {
	const maxDistance = 10
	in := Input{Trips: demand(60), Zones: zonesTable(101, 104), Loader: lineSkims(t)}
	cfg := testConfig()
	cfg.MaxRefuelDistance = maxDistance
	res := run(t, cfg, in)

	refuels := 0
	for _, v := range res.Vehicles {
		legs := res.VehicleLegs(v.ID)
		var driven float64
		for k := 0; k < len(legs); {
			if legs[k].Type == model.LegRefuel {
				t.Fatalf("vehicle %d: refuel leg %d not preceded by a chain", v.ID, k)
			}
			chain := legs[k].ChainID
			for k < len(legs) && legs[k].ChainID == chain {
				driven += legs[k].Distance
				k++
			}
			if driven > maxDistance {
				require.Less(t, k, len(legs), "vehicle %d over range without refuel", v.ID)
				require.Equal(t, model.LegRefuel, legs[k].Type)
				assert.Contains(t, []int{101, 104}, legs[k].DestinationZone)
				driven = 0
				refuels++
				k++
			} else if k < len(legs) {
				assert.NotEqual(t, model.LegRefuel, legs[k].Type, "vehicle %d refuelled under range", v.ID)
			}
		}
	}
	assert.Positive(t, refuels)

	total := 0
	for _, b := range res.Bins {
		total += b.Refuels
	}
	assert.Equal(t, refuels, total)
}

func TestRunRejectsRefuelWithoutStations(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRefuelDistance = 10
	sim, err := New(cfg)
	require.NoError(t, err)
	_, err = sim.Run(context.Background(), Input{Trips: demand(3), Zones: zonesTable(), Loader: lineSkims(t)})
	assert.ErrorIs(t, err, simerr.ErrConfig)
}

type captureMonitor struct {
	errs []error
	tags []map[string]string
}

func (m *captureMonitor) CaptureException(err error, tags map[string]string) {
	m.errs = append(m.errs, err)
	m.tags = append(m.tags, tags)
}
func (m *captureMonitor) Flush(time.Duration) {}

func TestRunUnmappedZoneAborts(t *testing.T) {
	mon := &captureMonitor{}
	sim, err := New(testConfig(), WithMonitor(mon))
	require.NoError(t, err)
	reqs := demand(3)
	reqs[1].DestinationZone = 999
	res, err := sim.Run(context.Background(), Input{Trips: reqs, Zones: zonesTable(), Loader: lineSkims(t)})
	assert.Nil(t, res)
	var uz *simerr.UnmappedZoneError
	require.ErrorAs(t, err, &uz)
	assert.Equal(t, "t1", uz.TripID)
	require.Len(t, mon.errs, 1)
	assert.Equal(t, "unmapped_zone", mon.tags[0]["kind"])
	assert.NotEmpty(t, mon.tags[0]["run_id"])
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mon := &captureMonitor{}
	sim, err := New(testConfig(), WithMonitor(mon))
	require.NoError(t, err)
	res, err := sim.Run(ctx, Input{Trips: demand(5), Zones: zonesTable(), Loader: lineSkims(t)})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mon.errs)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, simerr.ErrConfig)

	cfg = testConfig()
	cfg.TimeBins.PeriodLabels = []string{"AM"}
	_, err = New(cfg)
	assert.ErrorIs(t, err, simerr.ErrConfig)

	cfg = testConfig()
	cfg.MaxWaitMinutes = -1
	_, err = New(cfg)
	var ce *simerr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "max_wait_minutes", ce.Field)
}

type binSink struct {
	bins []metrics.BinStats
	runs []metrics.RunSummary
}

func (s *binSink) RecordBin(b metrics.BinStats) error   { s.bins = append(s.bins, b); return nil }
func (s *binSink) RecordRun(r metrics.RunSummary) error { s.runs = append(s.runs, r); return nil }

func TestRunReportsProgress(t *testing.T) {
	reg := prometheus.NewRegistry()
	ResetMetrics(reg)
	t.Cleanup(func() { ResetMetrics(nil) })

	sink := &binSink{}
	bus := eventbus.NewTyped[BinEvent]()
	events := bus.Subscribe()
	res := run(t, testConfig(), Input{Trips: demand(20), Zones: zonesTable(), Loader: lineSkims(t)},
		WithMetricsSink(sink), WithEventBus(bus))
	bus.Close()

	require.Len(t, sink.bins, 48)
	require.Len(t, sink.runs, 1)
	assert.Equal(t, res.Summary(), sink.runs[0])
	trips := 0
	for _, b := range sink.bins {
		trips += b.Trips
		assert.Equal(t, res.RunID, b.RunID)
	}
	assert.Equal(t, 20, trips)
	assert.Equal(t, len(res.Vehicles), sink.bins[47].FleetSize)

	n := 0
	for ev := range events {
		assert.Equal(t, n, ev.Stats.Bin)
		n++
	}
	assert.Equal(t, 48, n)

	assert.Equal(t, 1.0, testutil.ToFloat64(runsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(len(res.Vehicles)), testutil.ToFloat64(fleetSize))
	assert.Equal(t, 2, testutil.CollectAndCount(binDuration))
}
