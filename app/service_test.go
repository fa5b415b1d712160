package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/tncsim/config"
	"github.com/kilianp07/tncsim/core/model"
	coremon "github.com/kilianp07/tncsim/core/monitoring"
	"github.com/kilianp07/tncsim/core/simerr"
	"github.com/kilianp07/tncsim/core/simulation"
	"github.com/kilianp07/tncsim/core/timebin"
	"github.com/kilianp07/tncsim/infra/input"
	"github.com/kilianp07/tncsim/infra/kpi"
	"github.com/kilianp07/tncsim/infra/logger"
	"github.com/kilianp07/tncsim/infra/store"
)

type recordPublisher struct {
	runID  string
	legs   []model.VehicleLeg
	closed bool
}

func (p *recordPublisher) PublishLegs(_ context.Context, runID string, legs []model.VehicleLeg) error {
	p.runID, p.legs = runID, legs
	return nil
}
func (p *recordPublisher) Close() { p.closed = true }

type recordMonitor struct {
	errs []error
}

func (m *recordMonitor) CaptureException(err error, _ map[string]string) { m.errs = append(m.errs, err) }
func (m *recordMonitor) Flush(time.Duration)                          {}

var _ coremon.Monitor = (*recordMonitor)(nil)

type mockMonitor struct {
	mock.Mock
}

func (m *mockMonitor) CaptureException(err error, tags map[string]string) { m.Called(err, tags) }
func (m *mockMonitor) Flush(timeout time.Duration)                       { m.Called(timeout) }

func writeInput(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

// scenario writes two zones five minutes apart and returns a configuration
// reading them.
func scenario(t *testing.T, trips string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	for _, period := range []string{"AM", "PM"} {
		writeInput(t, dir, fmt.Sprintf("time_%s.csv", period), "origin,destination,value\n1,1,1\n1,2,5\n2,1,5\n2,2,1\n")
		writeInput(t, dir, fmt.Sprintf("distance_%s.csv", period), "origin,destination,value\n1,1,0.5\n1,2,3\n2,1,3\n2,2,0.5\n")
	}
	cfg := &config.Config{
		Simulation: simulation.DefaultConfig(),
		TimeBins: timebin.Config{
			BinMinutes:       30,
			PeriodBoundaries: []int{0, 24, 48},
			PeriodLabels:     []string{"AM", "PM"},
		},
		Input: config.InputConfig{
			Trips: []input.TripSource{{Path: writeInput(t, dir, "trips.csv", trips)}},
			Zones: writeInput(t, dir, "zones.csv", "zone_id,refuel\n1,true\n2,false\n"),
			Skims: input.SkimFiles{Dir: dir},
		},
		Output: config.OutputConfig{
			CSVDir:     filepath.Join(dir, "out"),
			JSONPath:   filepath.Join(dir, "out", "run.json"),
			SQLitePath: filepath.Join(dir, "out", "runs.db"),
			ChartPath:  filepath.Join(dir, "out", "activity.html"),
		},
		Logging: logger.Options{Level: "warn", Out: io.Discard},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

const trips = "trip_id,origin,destination,depart_window\n" +
	"a,1,2,2\n" +
	"b,1,2,2\n" +
	"c,2,1,30\n"

func TestRunWritesOutputs(t *testing.T) {
	cfg := scenario(t, trips)
	pub := &recordPublisher{}
	svc, err := New(cfg, WithPublisher(pub), WithMonitor(&recordMonitor{}))
	require.NoError(t, err)

	res, err := svc.Run(context.Background())
	require.NoError(t, err)
	svc.Close()

	require.Len(t, res.TripIDs, 3)
	assert.NotEmpty(t, res.Legs)
	assert.True(t, pub.closed)
	assert.Equal(t, res.RunID, pub.runID)
	assert.Len(t, pub.legs, len(res.Legs))

	f, err := os.Open(filepath.Join(cfg.Output.CSVDir, LegsFile))
	require.NoError(t, err)
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Len(t, rows, len(res.Legs)+1)

	assert.FileExists(t, cfg.Output.ChartPath)
	for _, name := range []string{ChainsFile, TripIDsFile} {
		assert.FileExists(t, filepath.Join(cfg.Output.CSVDir, name))
	}
	body, err := os.ReadFile(cfg.Output.JSONPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), res.RunID))

	st, err := store.NewSQLiteStore(cfg.Output.SQLitePath)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.Runs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{res.RunID}, runs)
	legs, err := st.Legs(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Len(t, legs, len(res.Legs))

	ks, err := kpi.NewSQLiteStore(cfg.Output.SQLitePath)
	require.NoError(t, err)
	defer ks.Close()
	vehicleKPIs, err := ks.Query(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Len(t, vehicleKPIs, len(res.Vehicles))
	served := 0
	for _, k := range vehicleKPIs {
		served += k.TripsServed
	}
	assert.Equal(t, 3, served)
}

func TestFailedRunWritesNothing(t *testing.T) {
	cfg := scenario(t, trips+"d,1,9,4\n")
	pub := &recordPublisher{}
	mon := &mockMonitor{}
	unmapped := mock.MatchedBy(func(err error) bool { return errors.Is(err, simerr.ErrUnmappedZone) })
	withZone := mock.MatchedBy(func(tags map[string]string) bool { return tags["trip_id"] == "d" && tags["zone"] == "9" })
	mon.On("CaptureException", unmapped, withZone).Once()
	mon.On("Flush", mock.Anything).Maybe()
	svc, err := New(cfg, WithPublisher(pub), WithMonitor(mon))
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	svc.Close()
	assert.ErrorIs(t, err, simerr.ErrUnmappedZone)
	assert.NoDirExists(t, cfg.Output.CSVDir)
	assert.Empty(t, pub.runID)
	mon.AssertExpectations(t)
}

func TestMissingInput(t *testing.T) {
	cfg := scenario(t, trips)
	cfg.Input.Zones = filepath.Join(t.TempDir(), "missing.csv")
	svc, err := New(cfg, WithPublisher(&recordPublisher{}), WithMonitor(&recordMonitor{}))
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Run(context.Background())
	assert.ErrorContains(t, err, "load zones")
}

func TestInvalidLogging(t *testing.T) {
	cfg := scenario(t, trips)
	cfg.Logging.Level = "loud"
	_, err := New(cfg, WithPublisher(&recordPublisher{}), WithMonitor(&recordMonitor{}))
	assert.ErrorContains(t, err, "logging")
}
