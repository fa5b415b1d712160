package fleet

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/simerr"
	"github.com/kilianp07/tncsim/core/skim"
)

// waitEpsilon absorbs floating-point noise on the wait bound.
const waitEpsilon = 1e-9

// MatcherConfig holds the vehicle matching parameters.
type MatcherConfig struct {
	MaxWait   float64 // minutes
	BatchSize int
	Workers   int
	// MaxPasses caps passes per batch; 0 uses the batch length + 1.
	MaxPasses int
}

// Assignment binds a chain (by position in the matcher input) to a vehicle.
type Assignment struct {
	Chain   int
	Vehicle model.Vehicle
	Wait    float64
	Spawned bool
}

// MatchResult lists the assignments made from the free pool and the chains
// left unserved, both in input order.
type MatchResult struct {
	Assigned []Assignment
	Unserved []int
	Passes   int
}

// Matcher assigns trip-chains to the nearest free vehicle.
type Matcher struct {
	cfg MatcherConfig
}

// NewMatcher validates cfg and returns a Matcher.
func NewMatcher(cfg MatcherConfig) (*Matcher, error) {
	if cfg.MaxWait < 0 {
		return nil, simerr.Configf("max_wait_minutes", "must not be negative")
	}
	if cfg.BatchSize <= 0 {
		return nil, simerr.Configf("batch_size", "must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Matcher{cfg: cfg}, nil
}

type choice struct {
	pool int // index in the pool, -1 when the pool is empty
	wait float64
}

// nearest returns the pool vehicle with the lowest travel time to origin.
// The pool is ordered by vehicle ID so ties keep the lowest ID.
func nearest(pool []model.Vehicle, origin int, s *skim.Skim) choice {
	best := choice{pool: -1, wait: math.Inf(1)}
	for k, v := range pool {
		if w := repositionTime(s, v.ZoneIdx, origin); w < best.wait {
			best = choice{pool: k, wait: w}
		}
	}
	return best
}

// Match assigns chains to the free vehicles of free, which must be ordered
// by ID. Chains are processed in batches sharing one pool. In every pass each
// pending chain picks its nearest free vehicle; a chain whose nearest vehicle
// is beyond MaxWait leaves pool matching, and when several chains pick the
// same vehicle the earliest chain keeps it while the others retry in the
// next pass. Chains never matched are returned as unserved.
func (m *Matcher) Match(ctx context.Context, bin int, chains []model.TripChain, free []model.Vehicle, s *skim.Skim) (MatchResult, error) {
	pool := append([]model.Vehicle(nil), free...)
	var res MatchResult

	for start := 0; start < len(chains); start += m.cfg.BatchSize {
		end := min(start+m.cfg.BatchSize, len(chains))
		pending := make([]int, 0, end-start)
		for c := start; c < end; c++ {
			pending = append(pending, c)
		}
		ceiling := m.cfg.MaxPasses
		if ceiling <= 0 {
			ceiling = len(pending) + 1
		}

		for pass := 0; len(pending) > 0; pass++ {
			if len(pool) == 0 {
				res.Unserved = append(res.Unserved, pending...)
				break
			}
			if pass >= ceiling {
				return MatchResult{}, &simerr.DivergedError{Stage: simerr.StageVehicle, Bin: bin, Passes: pass, Pending: len(pending)}
			}
			res.Passes++

			choices, err := m.score(ctx, chains, pending, pool, s)
			if err != nil {
				return MatchResult{}, err
			}

			claimed := make(map[int]bool)
			var retry []int
			for k, c := range pending {
				ch := choices[k]
				switch {
				case ch.pool < 0 || ch.wait > m.cfg.MaxWait+waitEpsilon:
					res.Unserved = append(res.Unserved, c)
				case claimed[ch.pool]:
					retry = append(retry, c)
				default:
					claimed[ch.pool] = true
					res.Assigned = append(res.Assigned, Assignment{Chain: c, Vehicle: pool[ch.pool], Wait: ch.wait})
				}
			}
			next := pool[:0]
			for k, v := range pool {
				if !claimed[k] {
					next = append(next, v)
				}
			}
			pool = next
			pending = retry
		}
	}
	sortByChain(res.Unserved)
	return res, nil
}

// score finds the nearest pool vehicle of every pending chain concurrently.
// It only reads the pool; selection happens serially in Match.
func (m *Matcher) score(ctx context.Context, chains []model.TripChain, pending []int, pool []model.Vehicle, s *skim.Skim) ([]choice, error) {
	out := make([]choice, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for k, c := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[k] = nearest(pool, chains[c].Origin().SkimIdx, s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func sortByChain(idx []int) {
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && idx[j] < idx[j-1]; j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
}
