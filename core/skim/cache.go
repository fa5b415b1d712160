package skim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kilianp07/tncsim/core/logger"
	"github.com/kilianp07/tncsim/core/simerr"
)

// Cache holds the skim of the active period and every period loaded so far.
// Readers call Active; the active pointer is swapped as a whole so no reader
// sees a half-replaced pair of matrices.
type Cache struct {
	loader Loader
	log    logger.Logger

	mu     sync.Mutex
	loaded map[string]*Skim
	zones  *ZoneIndex
	active atomic.Pointer[Skim]
}

// NewCache returns an empty cache backed by loader.
func NewCache(loader Loader, log logger.Logger) *Cache {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Cache{loader: loader, log: log, loaded: make(map[string]*Skim)}
}

// EnsureLoaded makes period the active one. It is a no-op when period is
// already active and hits the loader only for the first request of a period.
func (c *Cache) EnsureLoaded(ctx context.Context, period string) (*Skim, error) {
	if s := c.active.Load(); s != nil && s.Period == period {
		return s, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.loaded[period]
	if !ok {
		m, err := c.loader.LoadPeriod(ctx, period)
		if err != nil {
			return nil, fmt.Errorf("load skims for period %s: %w", period, err)
		}
		if s, err = c.admit(period, m); err != nil {
			return nil, err
		}
		c.loaded[period] = s
		c.log.Infof("loaded skims for period %s (%d zones)", period, s.Zones.Len())
	}
	c.active.Store(s)
	return s, nil
}

func (c *Cache) admit(period string, m PeriodMatrices) (*Skim, error) {
	field := "skims." + period
	if err := m.Time.validate("time"); err != nil {
		return nil, simerr.Configf(field, "%v", err)
	}
	if err := m.Distance.validate("distance"); err != nil {
		return nil, simerr.Configf(field, "%v", err)
	}
	if !m.Time.Zones.Equal(m.Distance.Zones) {
		return nil, simerr.Configf(field, "time and distance matrices use different zone mappings")
	}
	if c.zones == nil {
		c.zones = m.Time.Zones
	} else if !c.zones.Equal(m.Time.Zones) {
		return nil, simerr.Configf(field, "zone mapping differs from previously loaded periods")
	}
	return &Skim{Period: period, Zones: c.zones, time: m.Time.Values, distance: m.Distance.Values}, nil
}

// Active returns the skim of the active period, or nil before the first load.
func (c *Cache) Active() *Skim { return c.active.Load() }

// Zones returns the mapping shared by every loaded period, or nil before the
// first load.
func (c *Cache) Zones() *ZoneIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zones
}
