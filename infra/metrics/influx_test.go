package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/tncsim/core/metrics"
)

func captureServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(data)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func TestInfluxSinkRecordBin(t *testing.T) {
	srv, bodies := captureServer(t)
	sink, err := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "b", Day: "2024-03-05"})
	require.NoError(t, err)
	defer sink.Close()

	stats := coremetrics.BinStats{
		RunID: "r1", Bin: 12, Period: "AM", Clock: 4 * time.Hour,
		Trips: 9, Candidates: 6, Feasible: 4, PooledPairs: 2, SoloChains: 5,
		Assigned: 6, Spawned: 1, Refuels: 1, FleetSize: 14, FreeVehicles: 3,
		WaitMinutes: 12.34567, DeadheadMinutes: 20,
	}
	require.NoError(t, sink.RecordBin(stats))

	want := sink.binPoint(stats)
	assert.Equal(t, time.Date(2024, 3, 5, 4, 0, 0, 0, time.UTC), want.Time())
	got := bodies()
	require.Len(t, got, 1)
	assert.Equal(t, strings.TrimSpace(write.PointToLineProtocol(want, time.Nanosecond)), got[0])
	assert.Contains(t, got[0], "wait_minutes=12.346")
	assert.Contains(t, got[0], "run_id=r1")
}

func TestInfluxSinkRecordRun(t *testing.T) {
	srv, bodies := captureServer(t)
	sink, err := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "b"})
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.RecordRun(coremetrics.RunSummary{RunID: "r2", Trips: 3, Chains: 2, Legs: 5, Vehicles: 2, Elapsed: 1500 * time.Millisecond}))
	got := bodies()
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "tnc_run,run_id=r2 "))
	assert.Contains(t, got[0], "elapsed_ms=1500i")
}

func TestNewInfluxSinkBadDay(t *testing.T) {
	_, err := NewInfluxSink(InfluxConfig{URL: "http://localhost", Day: "05/03/2024"})
	assert.Error(t, err)
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink, err := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "b"})
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, sink)
	assert.True(t, called)
}
