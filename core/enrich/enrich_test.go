package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/simerr"
	"github.com/kilianp07/tncsim/core/skim"
	"github.com/kilianp07/tncsim/core/timebin"
)

func fixtures(t *testing.T) (*skim.ZoneIndex, *timebin.Index) {
	t.Helper()
	zi, err := skim.NewZoneIndex([]int{100, 200, 300})
	require.NoError(t, err)
	idx, err := timebin.New(timebin.DefaultConfig())
	require.NoError(t, err)
	return zi, idx
}

func TestEnrichAssignsBinsInsideWindow(t *testing.T) {
	zi, idx := fixtures(t)
	var reqs []model.TripRequest
	for w := 0; w < timebin.WindowsPerDay; w++ {
		reqs = append(reqs, model.TripRequest{Source: "a", TripID: string(rune('A' + w)), Mode: model.ModePoolable, OriginZone: 100, DestinationZone: 300, DepartWindow: w})
	}
	res, err := Enrich(reqs, zi, idx, 42)
	require.NoError(t, err)
	require.Len(t, res.Trips, len(reqs))
	for i, tr := range res.Trips {
		lo, hi := idx.WindowBins(tr.DepartWindow)
		assert.GreaterOrEqual(t, tr.TimeBin, lo)
		assert.Less(t, tr.TimeBin, hi)
		assert.Equal(t, i, tr.ID)
		assert.Equal(t, 0, tr.OriginIdx)
		assert.Equal(t, 2, tr.DestIdx)
	}
	assert.Equal(t, model.TripIDMapping{InternalID: 3, Source: "a", OriginalID: "D"}, res.Mapping[3])
}

func TestEnrichIsDeterministicForSeed(t *testing.T) {
	zi, idx := fixtures(t)
	reqs := make([]model.TripRequest, 50)
	for i := range reqs {
		reqs[i] = model.TripRequest{Source: "s", TripID: string(rune('a' + i)), OriginZone: 200, DestinationZone: 100, DepartWindow: i % 10}
	}
	a, err := Enrich(reqs, zi, idx, 7)
	require.NoError(t, err)
	b, err := Enrich(reqs, zi, idx, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEnrichErrors(t *testing.T) {
	zi, idx := fixtures(t)

	_, err := Enrich([]model.TripRequest{{TripID: "x", OriginZone: 100, DestinationZone: 999}}, zi, idx, 1)
	var uz *simerr.UnmappedZoneError
	require.ErrorAs(t, err, &uz)
	assert.Equal(t, "destination", uz.Role)
	assert.Equal(t, 999, uz.Zone)

	dup := []model.TripRequest{
		{Source: "a", TripID: "1", OriginZone: 100, DestinationZone: 200},
		{Source: "b", TripID: "1", OriginZone: 100, DestinationZone: 200},
		{Source: "a", TripID: "1", OriginZone: 100, DestinationZone: 200},
	}
	_, err = Enrich(dup, zi, idx, 1)
	assert.ErrorIs(t, err, simerr.ErrInvariant)

	_, err = Enrich([]model.TripRequest{{TripID: "w", OriginZone: 100, DestinationZone: 200, DepartWindow: 48}}, zi, idx, 1)
	assert.ErrorIs(t, err, simerr.ErrInvariant)
}

func TestByBin(t *testing.T) {
	trips := []model.Trip{{ID: 0, TimeBin: 2}, {ID: 1, TimeBin: 0}, {ID: 2, TimeBin: 2}}
	bins := ByBin(trips, 3)
	assert.Len(t, bins[1], 0)
	require.Len(t, bins[2], 2)
	assert.Equal(t, 0, bins[2][0].ID)
	assert.Equal(t, 2, bins[2][1].ID)
}
