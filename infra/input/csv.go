// Package input reads the trip, zone and skim tables of a run from CSV
// files.
package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// table is a CSV reader addressing columns by header name.
type table struct {
	name string
	r    *csv.Reader
	cols map[string]int
	line int
}

func openTable(name string, r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", name, c)
		}
	}
	return &table{name: name, r: cr, cols: cols, line: 1}, nil
}

// next returns the following record or io.EOF.
func (t *table) next() ([]string, error) {
	rec, err := t.r.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	t.line++
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}
	return rec, nil
}

func (t *table) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

func (t *table) str(rec []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *table) integer(rec []string, col string) (int, error) {
	v, err := strconv.Atoi(t.str(rec, col))
	if err != nil {
		return 0, fmt.Errorf("%s line %d: column %s: %w", t.name, t.line, col, err)
	}
	return v, nil
}

func (t *table) number(rec []string, col string) (float64, error) {
	v, err := strconv.ParseFloat(t.str(rec, col), 64)
	if err != nil {
		return 0, fmt.Errorf("%s line %d: column %s: %w", t.name, t.line, col, err)
	}
	return v, nil
}
