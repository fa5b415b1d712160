package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/tncsim/core/metrics"
	"github.com/kilianp07/tncsim/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket receiving bin statistics.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
	// Day is the calendar date (YYYY-MM-DD) the simulated clock is
	// anchored to; empty uses 2000-01-01.
	Day string `json:"day"`
}

// InfluxSink writes one point per simulated bin to an InfluxDB instance
// using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	day      time.Time
	log      logger.Logger
}

// NewInfluxSink creates a sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	day := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if cfg.Day != "" {
		d, err := time.Parse(time.DateOnly, cfg.Day)
		if err != nil {
			return nil, err
		}
		day = d
	}
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		day:      day,
		log:      logger.New("influx-sink"),
	}, nil
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) (coremetrics.MetricsSink, error) {
	sink, err := NewInfluxSink(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}, nil
	}
	return sink, nil
}

// binPoint converts bin statistics to a line protocol point stamped with
// the simulated clock.
func (s *InfluxSink) binPoint(b coremetrics.BinStats) *write.Point {
	return write.NewPointWithMeasurement("tnc_bin").
		AddTag("run_id", b.RunID).
		AddTag("period", b.Period).
		AddField("bin", b.Bin).
		AddField("trips", b.Trips).
		AddField("candidates", b.Candidates).
		AddField("feasible", b.Feasible).
		AddField("pooled_pairs", b.PooledPairs).
		AddField("solo_chains", b.SoloChains).
		AddField("assigned", b.Assigned).
		AddField("spawned", b.Spawned).
		AddField("refuels", b.Refuels).
		AddField("fleet_size", b.FleetSize).
		AddField("free_vehicles", b.FreeVehicles).
		AddField("wait_minutes", round3(b.WaitMinutes)).
		AddField("deadhead_minutes", round3(b.DeadheadMinutes)).
		SetTime(s.day.Add(b.Clock))
}

// RecordBin writes the bin statistics.
func (s *InfluxSink) RecordBin(b coremetrics.BinStats) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, s.binPoint(b))
}

// RecordRun writes the run summary.
func (s *InfluxSink) RecordRun(r coremetrics.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("tnc_run").
		AddTag("run_id", r.RunID).
		AddField("trips", r.Trips).
		AddField("chains", r.Chains).
		AddField("legs", r.Legs).
		AddField("vehicles", r.Vehicles).
		AddField("elapsed_ms", r.Elapsed.Milliseconds()).
		SetTime(s.day)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client resources.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
