package pooling

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/tncsim/core/model"
	"github.com/kilianp07/tncsim/core/skim"
)

// Batches splits trips into consecutive slices of at most size trips.
// Pairing never crosses a batch boundary: this bounds memory per bin at the
// cost of missing pairs split across batches.
func Batches[T any](items []T, size int) [][]T {
	if size <= 0 || size >= len(items) {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// near reports whether two trips' origins and destinations are both within
// buffer minutes of each other.
func near(a, b model.Trip, s *skim.Skim, buffer float64) bool {
	return s.Time(a.OriginIdx, b.OriginIdx) <= buffer && s.Time(a.DestIdx, b.DestIdx) <= buffer
}

// batchCandidates returns the feasible pairs of one batch, in (i, j) order.
func batchCandidates(batch []model.Trip, s *skim.Skim, buffer, maxDetour float64) (pairs []model.CandidatePair, raw int) {
	for a := 0; a < len(batch); a++ {
		for b := a + 1; b < len(batch); b++ {
			if !near(batch[a], batch[b], s, buffer) {
				continue
			}
			raw++
			if p, ok := Evaluate(batch[a], batch[b], s, maxDetour); ok {
				pairs = append(pairs, p)
			}
		}
	}
	return pairs, raw
}

// Candidates generates and evaluates pairs for the poolable trips of a bin.
// Batches are scored concurrently; the result is concatenated in batch order
// so it does not depend on scheduling. raw counts pairs passing the buffer
// test before the detour check.
func Candidates(ctx context.Context, trips []model.Trip, s *skim.Skim, cfg Config) (pairs []model.CandidatePair, raw int, err error) {
	batches := Batches(trips, cfg.BatchSize)
	perBatch := make([][]model.CandidatePair, len(batches))
	rawCounts := make([]int, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers())
	for i, b := range batches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perBatch[i], rawCounts[i] = batchCandidates(b, s, cfg.PoolingBuffer, cfg.MaxDetour)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	for i := range perBatch {
		pairs = append(pairs, perBatch[i]...)
		raw += rawCounts[i]
	}
	return pairs, raw, nil
}
