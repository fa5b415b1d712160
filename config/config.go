// Package config loads the simulator configuration from a YAML or JSON file
// with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/tncsim/core/metrics"
	"github.com/kilianp07/tncsim/core/simulation"
	"github.com/kilianp07/tncsim/core/timebin"
	"github.com/kilianp07/tncsim/infra/input"
	"github.com/kilianp07/tncsim/infra/logger"
	"github.com/kilianp07/tncsim/infra/mqtt"
)

// EnvPrefix marks environment variables overriding file values.
// K_SIMULATION__SEED=7 sets simulation.seed.
const EnvPrefix = "K_"

type Config struct {
	Simulation simulation.Config `json:"simulation"`
	TimeBins   timebin.Config    `json:"time_bins"`
	Input      InputConfig       `json:"input"`
	Output     OutputConfig      `json:"output"`
	Metrics    metrics.Config    `json:"metrics"`
	Logging    logger.Options    `json:"logging"`
	MQTT       mqtt.Config       `json:"mqtt"`
	Sentry     SentryConfig      `json:"sentry"`
}

// InputConfig locates the trip tables, the zone table and the skims.
type InputConfig struct {
	Trips []input.TripSource `json:"trips"`
	Zones string             `json:"zones"`
	Skims input.SkimFiles    `json:"skims"`
}

// SetDefaults names unnamed trip sources after their file.
func (c *InputConfig) SetDefaults() {
	for i := range c.Trips {
		if c.Trips[i].Name == "" {
			base := filepath.Base(c.Trips[i].Path)
			c.Trips[i].Name = strings.TrimSuffix(base, filepath.Ext(base))
		}
	}
	c.Skims.SetDefaults()
}

// Validate checks that every input is located.
func (c InputConfig) Validate() error {
	if len(c.Trips) == 0 {
		return fmt.Errorf("input: at least one trip source is required")
	}
	for i, t := range c.Trips {
		if t.Path == "" {
			return fmt.Errorf("input: trips[%d] has no path", i)
		}
	}
	if c.Zones == "" {
		return fmt.Errorf("input: zones path is required")
	}
	if c.Skims.Dir == "" {
		return fmt.Errorf("input: skims.dir is required")
	}
	return nil
}

// OutputConfig selects where run results are written. Empty fields are
// skipped.
type OutputConfig struct {
	CSVDir     string `json:"csv_dir"`
	JSONPath   string `json:"json_path"`
	SQLitePath string `json:"sqlite_path"`
	// ChartPath receives an HTML chart of the per-bin activity.
	ChartPath string `json:"chart_path"`
}

// Empty reports whether no output is configured.
func (c OutputConfig) Empty() bool {
	return c.CSVDir == "" && c.JSONPath == "" && c.SQLitePath == "" && c.ChartPath == ""
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := Config{Simulation: simulation.DefaultConfig()}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section and hands the time bins to the
// simulation parameters.
func (c *Config) SetDefaults() {
	c.TimeBins.SetDefaults()
	c.Simulation.SetDefaults()
	c.Simulation.TimeBins = c.TimeBins
	c.Input.SetDefaults()
	c.MQTT.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	if err := c.Input.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	return nil
}
