package input

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilianp07/tncsim/core/skim"
)

// SkimFiles locates the per-period skim tables. Patterns contain the
// {period} placeholder and are resolved against Dir.
type SkimFiles struct {
	Dir             string `json:"dir"`
	TimePattern     string `json:"time_pattern"`
	DistancePattern string `json:"distance_pattern"`
}

// SetDefaults fills the default file name patterns.
func (c *SkimFiles) SetDefaults() {
	if c.TimePattern == "" {
		c.TimePattern = "time_{period}.csv"
	}
	if c.DistancePattern == "" {
		c.DistancePattern = "distance_{period}.csv"
	}
}

// FileLoader implements skim.Loader over long-format CSV files with the
// columns origin, destination and value. Every origin-destination pair of
// the zones present must appear exactly once.
type FileLoader struct {
	Files SkimFiles
}

// NewFileLoader returns a loader reading the files described by f.
func NewFileLoader(f SkimFiles) *FileLoader {
	f.SetDefaults()
	return &FileLoader{Files: f}
}

func (l *FileLoader) path(pattern, period string) string {
	return filepath.Join(l.Files.Dir, strings.ReplaceAll(pattern, "{period}", period))
}

// LoadPeriod implements skim.Loader.
func (l *FileLoader) LoadPeriod(ctx context.Context, period string) (skim.PeriodMatrices, error) {
	if err := ctx.Err(); err != nil {
		return skim.PeriodMatrices{}, err
	}
	tm, err := readMatrixFile(l.path(l.Files.TimePattern, period))
	if err != nil {
		return skim.PeriodMatrices{}, err
	}
	dm, err := readMatrixFile(l.path(l.Files.DistancePattern, period))
	if err != nil {
		return skim.PeriodMatrices{}, err
	}
	return skim.PeriodMatrices{Time: tm, Distance: dm}, nil
}

func readMatrixFile(path string) (skim.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return skim.Matrix{}, err
	}
	defer f.Close()
	return ReadMatrix(f, filepath.Base(path))
}

// ReadMatrix parses a long-format zone-to-zone table. Rows and columns are
// ordered by ascending zone ID.
func ReadMatrix(r io.Reader, name string) (skim.Matrix, error) {
	t, err := openTable(name, r, "origin", "destination", "value")
	if err != nil {
		return skim.Matrix{}, err
	}
	type od struct{ o, d int }
	cells := map[od]float64{}
	var zones []int
	for {
		rec, err := t.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return skim.Matrix{}, err
		}
		o, err := t.integer(rec, "origin")
		if err != nil {
			return skim.Matrix{}, err
		}
		d, err := t.integer(rec, "destination")
		if err != nil {
			return skim.Matrix{}, err
		}
		v, err := t.number(rec, "value")
		if err != nil {
			return skim.Matrix{}, err
		}
		if v < 0 {
			return skim.Matrix{}, fmt.Errorf("%s line %d: negative value %g", name, t.line, v)
		}
		if _, dup := cells[od{o, d}]; dup {
			return skim.Matrix{}, fmt.Errorf("%s line %d: duplicate pair %d-%d", name, t.line, o, d)
		}
		cells[od{o, d}] = v
		zones = append(zones, o, d)
	}

	index := skim.SortedZoneIndex(zones)
	n := index.Len()
	if len(cells) != n*n {
		return skim.Matrix{}, fmt.Errorf("%s: %d pairs for %d zones, want %d", name, len(cells), n, n*n)
	}
	values := make([]float64, n*n)
	for k, v := range cells {
		i, _ := index.Index(k.o)
		j, _ := index.Index(k.d)
		values[i*n+j] = v
	}
	return skim.NewMatrix(index, values)
}
