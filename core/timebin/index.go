package timebin

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/tncsim/core/simerr"
)

const (
	minutesPerDay = 24 * 60
	// WindowMinutes is the width of the coarse departure windows used by
	// upstream trip tables.
	WindowMinutes = 30
	// WindowsPerDay is the number of half-hour departure windows in a day.
	WindowsPerDay = minutesPerDay / WindowMinutes
)

// Config defines the simulated day and its travel-time periods.
type Config struct {
	BinMinutes      int `json:"bin_minutes"`
	DayStartMinutes int `json:"day_start_minutes"`
	// PeriodBoundaries are half-open edges over departure windows: period k
	// covers windows [PeriodBoundaries[k], PeriodBoundaries[k+1]).
	PeriodBoundaries []int    `json:"period_boundaries"`
	PeriodLabels     []string `json:"period_labels"`
}

// DefaultConfig returns five periods over a day starting at 03:00 with
// five-minute bins.
func DefaultConfig() Config {
	return Config{
		BinMinutes:       5,
		DayStartMinutes:  180,
		PeriodBoundaries: []int{0, 6, 12, 25, 32, WindowsPerDay},
		PeriodLabels:     []string{"EA", "AM", "MD", "PM", "EV"},
	}
}

// SetDefaults fills unset fields from DefaultConfig.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.BinMinutes == 0 {
		c.BinMinutes = d.BinMinutes
	}
	if len(c.PeriodBoundaries) == 0 && len(c.PeriodLabels) == 0 {
		c.PeriodBoundaries = d.PeriodBoundaries
		c.PeriodLabels = d.PeriodLabels
	}
}

// Validate checks the configuration and returns a ConfigError on failure.
func (c Config) Validate() error {
	if c.BinMinutes <= 0 || minutesPerDay%c.BinMinutes != 0 {
		return simerr.Configf("bin_minutes", "must be a positive divisor of %d, got %d", minutesPerDay, c.BinMinutes)
	}
	if c.DayStartMinutes < 0 || c.DayStartMinutes >= minutesPerDay {
		return simerr.Configf("day_start_minutes", "must be in [0,%d), got %d", minutesPerDay, c.DayStartMinutes)
	}
	if len(c.PeriodLabels) == 0 {
		return simerr.Configf("period_labels", "at least one period is required")
	}
	if len(c.PeriodBoundaries) != len(c.PeriodLabels)+1 {
		return simerr.Configf("period_boundaries", "expected %d edges for %d labels, got %d",
			len(c.PeriodLabels)+1, len(c.PeriodLabels), len(c.PeriodBoundaries))
	}
	if c.PeriodBoundaries[0] != 0 {
		return simerr.Configf("period_boundaries", "first edge must be 0, got %d", c.PeriodBoundaries[0])
	}
	for i := 1; i < len(c.PeriodBoundaries); i++ {
		if c.PeriodBoundaries[i] <= c.PeriodBoundaries[i-1] {
			return simerr.Configf("period_boundaries", "edges must be strictly ascending at position %d", i)
		}
	}
	if last := c.PeriodBoundaries[len(c.PeriodBoundaries)-1]; last < WindowsPerDay {
		return simerr.Configf("period_boundaries", "last edge %d leaves windows up to %d uncovered", last, WindowsPerDay)
	}
	seen := make(map[string]bool, len(c.PeriodLabels))
	for _, l := range c.PeriodLabels {
		if l == "" || seen[l] {
			return simerr.Configf("period_labels", "labels must be unique and non-empty, got %q", l)
		}
		seen[l] = true
	}
	return nil
}

// Index maps time bins to clock times and travel-time periods.
type Index struct {
	cfg Config
}

// New validates cfg and returns an Index.
func New(cfg Config) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Index{cfg: cfg}, nil
}

// BinMinutes returns the bin width.
func (x *Index) BinMinutes() int { return x.cfg.BinMinutes }

// BinsPerDay returns the number of bins in the simulated day.
func (x *Index) BinsPerDay() int { return minutesPerDay / x.cfg.BinMinutes }

// Labels returns the period labels in day order.
func (x *Index) Labels() []string {
	return append([]string(nil), x.cfg.PeriodLabels...)
}

// Clock returns the wall-clock time of the start of bin as an offset from
// midnight. The clock wraps at 24h.
func (x *Index) Clock(bin int) time.Duration {
	m := (x.cfg.DayStartMinutes + bin*x.cfg.BinMinutes) % minutesPerDay
	return time.Duration(m) * time.Minute
}

// DepartBin returns the half-hour departure window containing bin.
func (x *Index) DepartBin(bin int) int {
	return bin * x.cfg.BinMinutes / WindowMinutes
}

// PeriodOfDepartBin maps a departure window to its period label. A window
// lying exactly on an edge belongs to the following period.
func (x *Index) PeriodOfDepartBin(d int) string {
	edges := x.cfg.PeriodBoundaries
	k := sort.SearchInts(edges, d+1) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(x.cfg.PeriodLabels) {
		k = len(x.cfg.PeriodLabels) - 1
	}
	return x.cfg.PeriodLabels[k]
}

// PeriodFor returns the clock time and period label of bin.
func (x *Index) PeriodFor(bin int) (time.Duration, string, error) {
	if bin < 0 || bin >= x.BinsPerDay() {
		return 0, "", fmt.Errorf("time bin %d outside [0,%d)", bin, x.BinsPerDay())
	}
	return x.Clock(bin), x.PeriodOfDepartBin(x.DepartBin(bin)), nil
}

// WindowBins returns the half-open bin range [lo, hi) covered by a
// half-hour departure window. The range is never empty.
func (x *Index) WindowBins(window int) (int, int) {
	w := x.cfg.BinMinutes
	lo := window * WindowMinutes / w
	hi := (window + 1) * WindowMinutes / w
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// FormatClock renders an offset from midnight as HH:MM.
func FormatClock(d time.Duration) string {
	m := int(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
