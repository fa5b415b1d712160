package simulation

import (
	"github.com/kilianp07/tncsim/core/simerr"
	"github.com/kilianp07/tncsim/core/timebin"
)

// Config holds the parameters of a run. Times are in minutes; the refuel
// distance uses the unit of the distance skims.
type Config struct {
	Seed                 int64   `json:"seed"`
	PoolingBufferMinutes float64 `json:"pooling_buffer_minutes"`
	MaxDetourMinutes     float64 `json:"max_detour_minutes"`
	MaxWaitMinutes       float64 `json:"max_wait_minutes"`
	BatchSize            int     `json:"batch_size"`
	// Workers bounds concurrent batch scoring; 0 uses GOMAXPROCS.
	Workers int `json:"workers"`
	// MaxRefuelDistance enables refuel side trips when positive.
	MaxRefuelDistance float64 `json:"max_refuel_distance"`
	MaxPairPasses     int     `json:"max_pair_passes"`
	MaxVehiclePasses  int     `json:"max_vehicle_passes"`

	TimeBins timebin.Config `json:"-"`
}

// DefaultConfig returns the parameters used when a configuration file
// leaves them unset.
func DefaultConfig() Config {
	return Config{
		Seed:                 1,
		PoolingBufferMinutes: 10,
		MaxDetourMinutes:     15,
		MaxWaitMinutes:       15,
		BatchSize:            500,
		TimeBins:             timebin.DefaultConfig(),
	}
}

// SetDefaults fills fields that have no meaningful zero value.
func (c *Config) SetDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultConfig().BatchSize
	}
	c.TimeBins.SetDefaults()
}

// Validate returns a ConfigError for the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.PoolingBufferMinutes < 0:
		return simerr.Configf("pooling_buffer_minutes", "must not be negative")
	case c.MaxDetourMinutes < 0:
		return simerr.Configf("max_detour_minutes", "must not be negative")
	case c.MaxWaitMinutes < 0:
		return simerr.Configf("max_wait_minutes", "must not be negative")
	case c.BatchSize <= 0:
		return simerr.Configf("batch_size", "must be positive, got %d", c.BatchSize)
	case c.Workers < 0:
		return simerr.Configf("workers", "must not be negative")
	case c.MaxRefuelDistance < 0:
		return simerr.Configf("max_refuel_distance", "must not be negative")
	case c.MaxPairPasses < 0:
		return simerr.Configf("max_pair_passes", "must not be negative")
	case c.MaxVehiclePasses < 0:
		return simerr.Configf("max_vehicle_passes", "must not be negative")
	}
	return c.TimeBins.Validate()
}
