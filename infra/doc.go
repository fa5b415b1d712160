// Package infra contains technical adapters around the simulator: CSV
// inputs, metrics sinks, persistence, MQTT publishing and error
// monitoring. These packages should depend only on the interfaces defined
// in the core packages.
package infra
