package fleet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/simerr"
	"github.com/kilianp07/tncsim/core/skim"
)

// testSkim covers zones 0..3 with symmetric times; distances equal times.
//
//	0-1: 20  0-2: 10  0-3: 5  1-2: 10  1-3: 30  2-3: 7
func testSkim(t *testing.T) *skim.Skim {
	t.Helper()
	zi, err := skim.NewZoneIndex([]int{0, 1, 2, 3})
	require.NoError(t, err)
	edges := map[[2]int]float64{
		{0, 1}: 20, {0, 2}: 10, {0, 3}: 5,
		{1, 2}: 10, {1, 3}: 30, {2, 3}: 7,
	}
	vals := make([]float64, 16)
	for e, v := range edges {
		vals[e[0]*4+e[1]] = v
		vals[e[1]*4+e[0]] = v
	}
	m, err := skim.NewMatrix(zi, vals)
	require.NoError(t, err)
	c := skim.NewCache(skim.Uniform([]string{"AM"}, skim.PeriodMatrices{Time: m, Distance: m}), nil)
	s, err := c.EnsureLoaded(context.Background(), "AM")
	require.NoError(t, err)
	return s
}

func solo(id, trip, o, d int) model.TripChain {
	return model.TripChain{
		ID:    id,
		Trips: []int{trip},
		Stops: []model.Stop{
			{Zone: o, SkimIdx: o, TripID: trip, Kind: model.Pickup},
			{Zone: d, SkimIdx: d, TripID: trip, Kind: model.Dropoff},
		},
	}
}

func newMatcher(t *testing.T, cfg MatcherConfig) *Matcher {
	t.Helper()
	m, err := NewMatcher(cfg)
	require.NoError(t, err)
	return m
}

func TestMatchSpawnsWhenEveryVehicleIsTooFar(t *testing.T) {
	s := testSkim(t)
	st := NewState()
	st.Spawn(0, 1, 1)

	m := newMatcher(t, MatcherConfig{MaxWait: 15, BatchSize: 10, Workers: 2})
	chains := []model.TripChain{solo(0, 0, 0, 2)}
	res, err := m.Match(context.Background(), 3, chains, st.Free(), s)
	require.NoError(t, err)
	assert.Empty(t, res.Assigned)
	assert.Equal(t, []int{0}, res.Unserved)

	before := st.Len()
	for _, c := range res.Unserved {
		o := chains[c].Origin()
		v := st.Spawn(3, o.Zone, o.SkimIdx)
		assert.Equal(t, 0, v.Zone)
	}
	assert.Equal(t, before+1, st.Len())
}

func TestMatchEarliestChainKeepsContestedVehicle(t *testing.T) {
	s := testSkim(t)
	st := NewState()
	st.Spawn(0, 2, 2)
	st.Spawn(0, 2, 2)

	m := newMatcher(t, MatcherConfig{MaxWait: 15, BatchSize: 10, Workers: 4})
	chains := []model.TripChain{solo(0, 0, 0, 1), solo(1, 1, 0, 1)}
	res, err := m.Match(context.Background(), 0, chains, st.Free(), s)
	require.NoError(t, err)
	require.Len(t, res.Assigned, 2)
	assert.Equal(t, 0, res.Assigned[0].Chain)
	assert.Equal(t, 0, res.Assigned[0].Vehicle.ID)
	assert.Equal(t, 1, res.Assigned[1].Chain)
	assert.Equal(t, 1, res.Assigned[1].Vehicle.ID)
	assert.Equal(t, 10.0, res.Assigned[1].Wait)
	assert.Equal(t, 2, res.Passes)
	assert.Empty(t, res.Unserved)
}

func TestMatchPicksNearestVehicle(t *testing.T) {
	s := testSkim(t)
	st := NewState()
	st.Spawn(0, 1, 1)
	st.Spawn(0, 3, 3)

	m := newMatcher(t, MatcherConfig{MaxWait: 15, BatchSize: 1})
	res, err := m.Match(context.Background(), 0, []model.TripChain{solo(0, 0, 0, 2)}, st.Free(), s)
	require.NoError(t, err)
	require.Len(t, res.Assigned, 1)
	assert.Equal(t, 1, res.Assigned[0].Vehicle.ID)
	assert.Equal(t, 5.0, res.Assigned[0].Wait)
}

func TestMatchPassCeiling(t *testing.T) {
	s := testSkim(t)
	st := NewState()
	st.Spawn(0, 2, 2)
	st.Spawn(0, 2, 2)

	m := newMatcher(t, MatcherConfig{MaxWait: 15, BatchSize: 10, MaxPasses: 1})
	chains := []model.TripChain{solo(0, 0, 0, 1), solo(1, 1, 0, 1)}
	_, err := m.Match(context.Background(), 9, chains, st.Free(), s)
	var div *simerr.DivergedError
	require.ErrorAs(t, err, &div)
	assert.ErrorIs(t, err, simerr.ErrVehicleMatchingDiverged)
	assert.Equal(t, simerr.StageVehicle, div.Stage)
	assert.Equal(t, 9, div.Bin)
}

func TestMatchBatchesShareThePool(t *testing.T) {
	s := testSkim(t)
	st := NewState()
	st.Spawn(0, 0, 0)

	m := newMatcher(t, MatcherConfig{MaxWait: 15, BatchSize: 1})
	chains := []model.TripChain{solo(0, 0, 0, 1), solo(1, 1, 0, 1)}
	res, err := m.Match(context.Background(), 0, chains, st.Free(), s)
	require.NoError(t, err)
	require.Len(t, res.Assigned, 1)
	assert.Equal(t, 0, res.Assigned[0].Chain)
	assert.Equal(t, []int{1}, res.Unserved)
}

func TestNewMatcherRejectsBadConfig(t *testing.T) {
	_, err := NewMatcher(MatcherConfig{MaxWait: 15})
	assert.ErrorIs(t, err, simerr.ErrConfig)
	_, err = NewMatcher(MatcherConfig{MaxWait: -1, BatchSize: 1})
	assert.ErrorIs(t, err, simerr.ErrConfig)
}

func pooledChain() model.TripChain {
	return model.TripChain{
		ID:       4,
		Trips:    []int{10, 11},
		Scenario: model.ScenarioIJJI,
		Stops: []model.Stop{
			{Zone: 0, SkimIdx: 0, TripID: 10, Kind: model.Pickup},
			{Zone: 3, SkimIdx: 3, TripID: 11, Kind: model.Pickup},
			{Zone: 2, SkimIdx: 2, TripID: 11, Kind: model.Dropoff},
			{Zone: 1, SkimIdx: 1, TripID: 10, Kind: model.Dropoff},
		},
	}
}

func TestBuildPooledItinerary(t *testing.T) {
	s := testSkim(t)
	st := NewState()
	v := st.Spawn(0, 1, 1)

	p := NewBuilder(5).Build(2, v, pooledChain(), s)
	require.Len(t, p.Legs, 4)
	assert.Equal(t, 20.0, p.Wait)
	assert.Equal(t, 42.0, p.Distance)
	assert.Equal(t, 1, p.EndIdx)
	assert.Equal(t, 20.0, p.DeadheadMinutes())

	repo := p.Legs[0]
	assert.Equal(t, model.LegPickup, repo.Type)
	assert.Zero(t, repo.Occupancy)
	assert.Empty(t, repo.TripIDs)
	assert.Equal(t, 2, repo.DepartBin)
	assert.Equal(t, 6, repo.ArrivalBin)

	assert.Equal(t, model.LegPickup, p.Legs[1].Type)
	assert.Equal(t, []int{10}, p.Legs[1].TripIDs)
	assert.Equal(t, model.LegDropoff, p.Legs[2].Type)
	assert.Equal(t, []int{10, 11}, p.Legs[2].TripIDs)
	assert.Equal(t, 2, p.Legs[2].Occupancy)
	assert.Equal(t, []int{10}, p.Legs[3].TripIDs)
	assert.Equal(t, 52.0, p.Legs[3].ArrivalMinute)
	assert.Equal(t, 10, p.Legs[3].ArrivalBin)

	for k := 1; k < len(p.Legs); k++ {
		assert.LessOrEqual(t, p.Legs[k-1].ArrivalBin, p.Legs[k].DepartBin)
		assert.Equal(t, 4, p.Legs[k].ChainID)
	}
}

func TestBuildSkipsZeroReposition(t *testing.T) {
	s := testSkim(t)
	st := NewState()
	v := st.Spawn(0, 0, 0)

	p := NewBuilder(5).Build(0, v, solo(0, 7, 0, 2), s)
	require.Len(t, p.Legs, 1)
	assert.Zero(t, p.Wait)
	assert.Equal(t, model.LegDropoff, p.Legs[0].Type)
	assert.Equal(t, 1, p.Legs[0].Occupancy)
}

func TestCommitMovesVehicleAndReleases(t *testing.T) {
	s := testSkim(t)
	st := NewState()
	v := st.Spawn(0, 1, 1)
	p := NewBuilder(5).Build(2, v, pooledChain(), s)

	require.NoError(t, st.Commit(2, []Plan{p}))
	got, ok := st.Vehicle(v.ID)
	require.True(t, ok)
	assert.False(t, got.IsFree)
	assert.Equal(t, 1, got.Zone)
	assert.Equal(t, 11, got.NextFree)
	assert.Equal(t, 42.0, got.DistanceSinceRefuel)
	assert.Len(t, st.Legs(v.ID), 4)
	assert.Len(t, st.Emitted(), 4)

	assert.Zero(t, st.Release(10))
	assert.Empty(t, st.Free())
	assert.Equal(t, 1, st.Release(11))
	assert.Len(t, st.Free(), 1)
}

func TestCommitRejectsOverlappingLegs(t *testing.T) {
	s := testSkim(t)
	st := NewState()
	v := st.Spawn(0, 1, 1)
	b := NewBuilder(5)
	require.NoError(t, st.Commit(2, []Plan{b.Build(2, v, pooledChain(), s)}))

	v, _ = st.Vehicle(v.ID)
	early := b.Build(3, v, solo(9, 20, 1, 2), s)
	err := st.Commit(3, []Plan{early})
	var inv *simerr.InvariantViolation
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, v.ID, inv.VehicleID)

	err = st.Commit(3, []Plan{{VehicleID: 42}})
	assert.ErrorIs(t, err, simerr.ErrInvariant)
}

func TestCommitRejectsDoubleBooking(t *testing.T) {
	s := testSkim(t)
	st := NewState()
	v := st.Spawn(0, 0, 0)
	b := NewBuilder(5)
	p := b.Build(0, v, solo(0, 0, 0, 2), s)
	err := st.Commit(0, []Plan{p, p})
	assert.ErrorIs(t, err, simerr.ErrInvariant)
}

func refuelZones() []model.Zone {
	return []model.Zone{{ID: 0}, {ID: 1, RefuelCapable: true}, {ID: 2}, {ID: 3, RefuelCapable: true}}
}

func TestRefuelTriggersAboveRange(t *testing.T) {
	s := testSkim(t)
	b := NewBuilder(5)
	r, err := NewRefuelPlanner(100, refuelZones(), s.Zones, b)
	require.NoError(t, err)

	st := NewState()
	v := st.Spawn(0, 0, 0)

	v.DistanceSinceRefuel = 90
	p := b.Build(0, v, solo(0, 0, 0, 2), s)
	assert.False(t, r.Apply(v, &p, s), "exactly at range must not refuel")
	assert.Len(t, p.Legs, 1)

	v.DistanceSinceRefuel = 91
	p = b.Build(0, v, solo(0, 0, 0, 2), s)
	require.True(t, r.Apply(v, &p, s))
	require.Len(t, p.Legs, 2)
	fuel := p.Legs[1]
	assert.Equal(t, model.LegRefuel, fuel.Type)
	assert.Equal(t, -1, fuel.ChainID)
	assert.Equal(t, 3, fuel.DestinationZone)
	assert.Zero(t, fuel.Occupancy)
	assert.Equal(t, p.Legs[0].ArrivalMinute, fuel.DepartMinute)
	assert.Equal(t, 0, p.ChainID)

	require.NoError(t, st.Commit(0, []Plan{p}))
	got, _ := st.Vehicle(v.ID)
	assert.Zero(t, got.DistanceSinceRefuel)
	assert.Equal(t, fuel.ArrivalBin, got.LastRefuel)
	assert.Equal(t, 3, got.Zone)
	assert.Equal(t, fuel.ArrivalBin+1, got.NextFree)
}

func TestRefuelPlannerConfig(t *testing.T) {
	s := testSkim(t)
	b := NewBuilder(5)

	off, err := NewRefuelPlanner(0, nil, s.Zones, b)
	require.NoError(t, err)
	assert.False(t, off.Enabled())

	_, err = NewRefuelPlanner(50, []model.Zone{{ID: 0}, {ID: 99, RefuelCapable: true}}, s.Zones, b)
	assert.ErrorIs(t, err, simerr.ErrConfig)

	r, err := NewRefuelPlanner(50, refuelZones(), s.Zones, b)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Nearest(0, s))
	assert.Equal(t, 1, r.Nearest(1, s))
}
