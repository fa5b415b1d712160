package skim

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ZoneIndex is a dense zone→row/column mapping shared by skim matrices.
type ZoneIndex struct {
	zones []int
	index map[int]int
}

// NewZoneIndex builds a mapping where zones[i] maps to row i. Duplicate
// zones are rejected.
func NewZoneIndex(zones []int) (*ZoneIndex, error) {
	idx := make(map[int]int, len(zones))
	for i, z := range zones {
		if _, ok := idx[z]; ok {
			return nil, fmt.Errorf("duplicate zone %d in skim mapping", z)
		}
		idx[z] = i
	}
	return &ZoneIndex{zones: append([]int(nil), zones...), index: idx}, nil
}

// SortedZoneIndex builds a mapping over the ascending, de-duplicated zones.
func SortedZoneIndex(zones []int) *ZoneIndex {
	set := make(map[int]struct{}, len(zones))
	for _, z := range zones {
		set[z] = struct{}{}
	}
	uniq := make([]int, 0, len(set))
	for z := range set {
		uniq = append(uniq, z)
	}
	sort.Ints(uniq)
	zi, _ := NewZoneIndex(uniq)
	return zi
}

// Len returns the number of mapped zones.
func (z *ZoneIndex) Len() int { return len(z.zones) }

// Index returns the skim row of zone.
func (z *ZoneIndex) Index(zone int) (int, bool) {
	i, ok := z.index[zone]
	return i, ok
}

// Zone returns the zone at row i.
func (z *ZoneIndex) Zone(i int) int { return z.zones[i] }

// Zones returns a copy of the zones in row order.
func (z *ZoneIndex) Zones() []int { return append([]int(nil), z.zones...) }

// Equal reports whether both mappings assign the same rows to the same zones.
func (z *ZoneIndex) Equal(o *ZoneIndex) bool {
	if z == o {
		return true
	}
	if z == nil || o == nil || len(z.zones) != len(o.zones) {
		return false
	}
	for i := range z.zones {
		if z.zones[i] != o.zones[i] {
			return false
		}
	}
	return true
}

// Matrix is a square zone-to-zone matrix.
type Matrix struct {
	Zones  *ZoneIndex
	Values *mat.Dense
}

// NewMatrix wraps values in a Matrix. values is row-major with
// zones.Len()² entries.
func NewMatrix(zones *ZoneIndex, values []float64) (Matrix, error) {
	n := zones.Len()
	if len(values) != n*n {
		return Matrix{}, fmt.Errorf("matrix has %d values, want %d for %d zones", len(values), n*n, n)
	}
	if n == 0 {
		return Matrix{}, fmt.Errorf("matrix has no zones")
	}
	return Matrix{Zones: zones, Values: mat.NewDense(n, n, values)}, nil
}

func (m Matrix) validate(name string) error {
	if m.Zones == nil || m.Values == nil {
		return fmt.Errorf("%s matrix is empty", name)
	}
	r, c := m.Values.Dims()
	if r != c {
		return fmt.Errorf("%s matrix is not square (%dx%d)", name, r, c)
	}
	if r != m.Zones.Len() {
		return fmt.Errorf("%s matrix has %d rows for %d mapped zones", name, r, m.Zones.Len())
	}
	return nil
}

// PeriodMatrices holds the travel-time (minutes) and distance matrices of
// one period.
type PeriodMatrices struct {
	Time     Matrix
	Distance Matrix
}

// Loader provides the matrices of a period. Implementations live outside
// the core (files, databases) or in memory for tests.
type Loader interface {
	LoadPeriod(ctx context.Context, period string) (PeriodMatrices, error)
}

// Skim is the immutable pair of matrices active for one period.
type Skim struct {
	Period   string
	Zones    *ZoneIndex
	time     *mat.Dense
	distance *mat.Dense
}

// Time returns the travel time in minutes between two skim indices.
func (s *Skim) Time(from, to int) float64 { return s.time.At(from, to) }

// Distance returns the travel distance between two skim indices.
func (s *Skim) Distance(from, to int) float64 { return s.distance.At(from, to) }

// StaticLoader serves matrices kept in memory.
type StaticLoader struct {
	Periods map[string]PeriodMatrices
	// Calls counts LoadPeriod invocations per period.
	Calls map[string]int
}

// NewStaticLoader returns a loader serving the given matrices.
func NewStaticLoader(periods map[string]PeriodMatrices) *StaticLoader {
	return &StaticLoader{Periods: periods, Calls: make(map[string]int)}
}

// Uniform returns a loader where every label serves the same matrices.
func Uniform(labels []string, m PeriodMatrices) *StaticLoader {
	p := make(map[string]PeriodMatrices, len(labels))
	for _, l := range labels {
		p[l] = m
	}
	return NewStaticLoader(p)
}

// LoadPeriod implements Loader.
func (l *StaticLoader) LoadPeriod(_ context.Context, period string) (PeriodMatrices, error) {
	l.Calls[period]++
	m, ok := l.Periods[period]
	if !ok {
		return PeriodMatrices{}, fmt.Errorf("no matrices for period %s", period)
	}
	return m, nil
}
