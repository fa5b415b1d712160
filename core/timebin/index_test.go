package timebin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/tncsim/core/simerr"
)

func TestPeriodFor(t *testing.T) {
	idx, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 288, idx.BinsPerDay())

	checks := []struct {
		bin    int
		clock  string
		period string
	}{
		{0, "03:00", "EA"},
		{35, "05:55", "EA"},
		{36, "06:00", "AM"}, // window 6 is on the EA/AM edge
		{71, "08:55", "AM"},
		{72, "09:00", "MD"},
		{150, "15:30", "PM"},
		{192, "19:00", "EV"},
		{287, "02:55", "EV"}, // wraps past midnight
	}
	for _, c := range checks {
		clock, period, err := idx.PeriodFor(c.bin)
		require.NoError(t, err)
		assert.Equal(t, c.clock, FormatClock(clock), "bin %d", c.bin)
		assert.Equal(t, c.period, period, "bin %d", c.bin)
	}

	_, _, err = idx.PeriodFor(288)
	assert.Error(t, err)
	_, _, err = idx.PeriodFor(-1)
	assert.Error(t, err)
}

func TestClockWraps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DayStartMinutes = 23 * 60
	idx, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour, idx.Clock(0))
	assert.Equal(t, time.Duration(0), idx.Clock(12))
}

func TestConfigValidation(t *testing.T) {
	cases := map[string]func(*Config){
		"mismatched lengths": func(c *Config) { c.PeriodLabels = c.PeriodLabels[:3] },
		"bin width":          func(c *Config) { c.BinMinutes = 7 },
		"not ascending":      func(c *Config) { c.PeriodBoundaries = []int{0, 12, 6, 25, 32, 48} },
		"first edge":         func(c *Config) { c.PeriodBoundaries = []int{1, 6, 12, 25, 32, 48} },
		"uncovered day":      func(c *Config) { c.PeriodBoundaries = []int{0, 6, 12, 25, 32, 40} },
		"duplicate label":    func(c *Config) { c.PeriodLabels = []string{"EA", "AM", "AM", "PM", "EV"} },
		"day start":          func(c *Config) { c.DayStartMinutes = 1440 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, simerr.ErrConfig)
		})
	}
}

func TestWindowBins(t *testing.T) {
	idx, err := New(DefaultConfig())
	require.NoError(t, err)
	lo, hi := idx.WindowBins(2)
	assert.Equal(t, 12, lo)
	assert.Equal(t, 18, hi)

	cfg := DefaultConfig()
	cfg.BinMinutes = 60
	coarse, err := New(cfg)
	require.NoError(t, err)
	lo, hi = coarse.WindowBins(3)
	assert.Equal(t, 1, lo)
	assert.Equal(t, 2, hi)
}

func TestSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.BinMinutes)
}
