package input

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilianp07/tncsim/core/model"
)

// TripSource is one trip table and the label its IDs are scoped to.
type TripSource struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// label returns the source name, defaulting to the file base name.
func (s TripSource) label() string {
	if s.Name != "" {
		return s.Name
	}
	return strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
}

// ReadTrips parses a trip table with the columns trip_id, origin,
// destination, depart_window and an optional mode (poolable by default).
func ReadTrips(r io.Reader, source string) ([]model.TripRequest, error) {
	t, err := openTable(source, r, "trip_id", "origin", "destination", "depart_window")
	if err != nil {
		return nil, err
	}
	var out []model.TripRequest
	for {
		rec, err := t.next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		req := model.TripRequest{Source: source, TripID: t.str(rec, "trip_id"), Mode: model.ModePoolable}
		if req.TripID == "" {
			return nil, fmt.Errorf("%s line %d: empty trip_id", source, t.line)
		}
		if req.OriginZone, err = t.integer(rec, "origin"); err != nil {
			return nil, err
		}
		if req.DestinationZone, err = t.integer(rec, "destination"); err != nil {
			return nil, err
		}
		if req.DepartWindow, err = t.integer(rec, "depart_window"); err != nil {
			return nil, err
		}
		if m := t.str(rec, "mode"); m != "" {
			if req.Mode, err = model.ParseMode(m); err != nil {
				return nil, fmt.Errorf("%s line %d: %w", source, t.line, err)
			}
		}
		out = append(out, req)
	}
}

// LoadTrips reads every source in order and concatenates their trips.
func LoadTrips(sources []TripSource) ([]model.TripRequest, error) {
	var all []model.TripRequest
	for _, s := range sources {
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, err
		}
		trips, err := ReadTrips(f, s.label())
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		all = append(all, trips...)
	}
	return all, nil
}
