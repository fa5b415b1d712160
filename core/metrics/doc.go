// Package metrics defines the sinks that receive per-bin simulation
// statistics. Implementations such as the Prometheus and InfluxDB sinks live
// in infra/metrics and register themselves by name; NewMetricsSink builds
// a MultiSink when several are configured.
package metrics
