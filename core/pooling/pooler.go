package pooling

import (
	"context"
	"runtime"

	"github.com/kilianp07/tncsim/core/logger"
	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/simerr"
	"github.com/kilianp07/tncsim/core/skim"
)

// Config holds the pooling parameters. Times are in minutes.
type Config struct {
	PoolingBuffer float64
	MaxDetour     float64
	BatchSize     int
	Workers       int
	// MaxPasses caps stable matching passes; 0 derives it from the input.
	MaxPasses int
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Validate checks the pooling parameters.
func (c Config) Validate() error {
	if c.PoolingBuffer < 0 {
		return simerr.Configf("pooling_buffer_minutes", "must not be negative")
	}
	if c.MaxDetour < 0 {
		return simerr.Configf("max_detour_minutes", "must not be negative")
	}
	if c.BatchSize <= 0 {
		return simerr.Configf("batch_size", "must be positive, got %d", c.BatchSize)
	}
	return nil
}

// BinResult is the pooling outcome of one time bin.
type BinResult struct {
	Chains      []model.TripChain
	Candidates  int // pairs within the pooling buffer
	Feasible    int // pairs with a feasible ordering
	PooledPairs int
}

// Pooler runs candidate generation, detour evaluation, stable matching and
// route assembly for one bin.
type Pooler struct {
	cfg Config
	log logger.Logger
}

// NewPooler validates cfg and returns a Pooler.
func NewPooler(cfg Config, log logger.Logger) (*Pooler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Pooler{cfg: cfg, log: log}, nil
}

// PoolBin pools the trips of bin. Exclusive trips bypass pairing and become
// solo chains.
func (p *Pooler) PoolBin(ctx context.Context, bin int, trips []model.Trip, s *skim.Skim) (BinResult, error) {
	var poolable []model.Trip
	for _, t := range trips {
		if t.TimeBin != bin {
			return BinResult{}, simerr.Invariant(bin, "trip assigned to another bin", t.ID)
		}
		if t.Poolable() {
			poolable = append(poolable, t)
		}
	}

	pairs, raw, err := Candidates(ctx, poolable, s, p.cfg)
	if err != nil {
		return BinResult{}, err
	}
	matched, err := StableMatch(bin, pairs, p.cfg.MaxPasses)
	if err != nil {
		return BinResult{}, err
	}
	chains, err := Assemble(bin, trips, matched, s)
	if err != nil {
		return BinResult{}, err
	}
	if len(pairs) > 0 {
		p.log.Debugw("pooled bin", map[string]any{
			"bin":        bin,
			"trips":      len(trips),
			"candidates": raw,
			"feasible":   len(pairs),
			"matched":    len(matched),
		})
	}
	return BinResult{Chains: chains, Candidates: raw, Feasible: len(pairs), PooledPairs: len(matched)}, nil
}
