package metrics

import "github.com/kilianp07/tncsim/core/factory"

// Config defines the metrics sinks of a run.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// ListenAddr serves /metrics for the duration of a run when set.
	ListenAddr string `json:"listen_addr"`
}
