package input

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/kilianp07/tncsim/core/model"
)

// ReadZones parses a zone table with the columns zone_id and an optional
// refuel flag (true/false or 1/0).
func ReadZones(r io.Reader) ([]model.Zone, error) {
	t, err := openTable("zones", r, "zone_id")
	if err != nil {
		return nil, err
	}
	var out []model.Zone
	seen := map[int]bool{}
	for {
		rec, err := t.next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		id, err := t.integer(rec, "zone_id")
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, fmt.Errorf("zones line %d: duplicate zone %d", t.line, id)
		}
		seen[id] = true
		z := model.Zone{ID: id}
		if v := t.str(rec, "refuel"); v != "" {
			if z.RefuelCapable, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("zones line %d: refuel: %w", t.line, err)
			}
		}
		out = append(out, z)
	}
}

// LoadZones reads the zone table at path.
func LoadZones(path string) ([]model.Zone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadZones(f)
}
