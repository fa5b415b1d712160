// Package store persists the output tables of simulation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/tncsim/core/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	trips      INTEGER NOT NULL,
	vehicles   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS legs (
	run_id           TEXT NOT NULL,
	seq              INTEGER NOT NULL,
	vehicle_id       INTEGER NOT NULL,
	chain_id         INTEGER NOT NULL,
	trip_ids         TEXT NOT NULL,
	origin_zone      INTEGER NOT NULL,
	destination_zone INTEGER NOT NULL,
	depart_bin       INTEGER NOT NULL,
	arrival_bin      INTEGER NOT NULL,
	depart_minute    REAL NOT NULL,
	arrival_minute   REAL NOT NULL,
	leg_type         TEXT NOT NULL,
	occupancy        INTEGER NOT NULL,
	travel_time      REAL NOT NULL,
	distance         REAL NOT NULL,
	PRIMARY KEY(run_id, seq)
);
CREATE TABLE IF NOT EXISTS chains (
	run_id       TEXT NOT NULL,
	chain_id     INTEGER NOT NULL,
	bin          INTEGER NOT NULL,
	trip_i       INTEGER NOT NULL,
	trip_j       INTEGER,
	scenario     TEXT NOT NULL,
	total_time   REAL NOT NULL,
	detour_i     REAL NOT NULL,
	detour_j     REAL,
	initial_wait REAL NOT NULL,
	vehicle_id   INTEGER NOT NULL,
	PRIMARY KEY(run_id, chain_id)
);
CREATE TABLE IF NOT EXISTS trip_ids (
	run_id      TEXT NOT NULL,
	internal_id INTEGER NOT NULL,
	source      TEXT NOT NULL,
	original_id TEXT NOT NULL,
	PRIMARY KEY(run_id, internal_id)
);`

// Run is the set of tables saved for one run.
type Run struct {
	ID       string
	Legs     []model.VehicleLeg
	Chains   []model.ChainRecord
	TripIDs  []model.TripIDMapping
	Vehicles int
}

// SQLiteStore persists runs in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save writes every table of r in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, r Run) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO runs (run_id, created_at, trips, vehicles) VALUES (?, ?, ?, ?)`,
		r.ID, time.Now().Unix(), len(r.TripIDs), r.Vehicles); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	legStmt, err := tx.PrepareContext(ctx, `INSERT INTO legs (run_id, seq, vehicle_id, chain_id, trip_ids,
		origin_zone, destination_zone, depart_bin, arrival_bin, depart_minute, arrival_minute,
		leg_type, occupancy, travel_time, distance) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = legStmt.Close() }()
	for i, l := range r.Legs {
		if _, err = legStmt.ExecContext(ctx, r.ID, i, l.VehicleID, l.ChainID, encodeIDs(l.TripIDs),
			l.OriginZone, l.DestinationZone, l.DepartBin, l.ArrivalBin, l.DepartMinute, l.ArrivalMinute,
			l.Type.String(), l.Occupancy, l.TravelTime, l.Distance); err != nil {
			return fmt.Errorf("insert leg %d: %w", i, err)
		}
	}

	chainStmt, err := tx.PrepareContext(ctx, `INSERT INTO chains (run_id, chain_id, bin, trip_i, trip_j,
		scenario, total_time, detour_i, detour_j, initial_wait, vehicle_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = chainStmt.Close() }()
	for _, c := range r.Chains {
		var tripJ sql.NullInt64
		var detourJ sql.NullFloat64
		if c.TripJ != nil {
			tripJ = sql.NullInt64{Int64: int64(*c.TripJ), Valid: true}
		}
		if c.DetourJ != nil {
			detourJ = sql.NullFloat64{Float64: *c.DetourJ, Valid: true}
		}
		if _, err = chainStmt.ExecContext(ctx, r.ID, c.ChainID, c.Bin, c.TripI, tripJ, c.Scenario,
			c.TotalInVehicleTime, c.DetourI, detourJ, c.InitialWait, c.VehicleID); err != nil {
			return fmt.Errorf("insert chain %d: %w", c.ChainID, err)
		}
	}

	idStmt, err := tx.PrepareContext(ctx, `INSERT INTO trip_ids (run_id, internal_id, source, original_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = idStmt.Close() }()
	for _, m := range r.TripIDs {
		if _, err = idStmt.ExecContext(ctx, r.ID, m.InternalID, m.Source, m.OriginalID); err != nil {
			return fmt.Errorf("insert trip id %d: %w", m.InternalID, err)
		}
	}
	return tx.Commit()
}

// Legs returns the legs of a run in emission order.
func (s *SQLiteStore) Legs(ctx context.Context, runID string) ([]model.VehicleLeg, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT vehicle_id, chain_id, trip_ids, origin_zone, destination_zone,
		depart_bin, arrival_bin, depart_minute, arrival_minute, leg_type, occupancy, travel_time, distance
		FROM legs WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.VehicleLeg
	for rows.Next() {
		var l model.VehicleLeg
		var ids, typ string
		if err := rows.Scan(&l.VehicleID, &l.ChainID, &ids, &l.OriginZone, &l.DestinationZone,
			&l.DepartBin, &l.ArrivalBin, &l.DepartMinute, &l.ArrivalMinute, &typ, &l.Occupancy,
			&l.TravelTime, &l.Distance); err != nil {
			return nil, err
		}
		if l.TripIDs, err = decodeIDs(ids); err != nil {
			return nil, err
		}
		if l.Type, err = model.ParseLegType(typ); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Chains returns the trip-chains of a run ordered by chain ID.
func (s *SQLiteStore) Chains(ctx context.Context, runID string) ([]model.ChainRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chain_id, bin, trip_i, trip_j, scenario, total_time,
		detour_i, detour_j, initial_wait, vehicle_id FROM chains WHERE run_id = ? ORDER BY chain_id`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.ChainRecord
	for rows.Next() {
		var c model.ChainRecord
		var tripJ sql.NullInt64
		var detourJ sql.NullFloat64
		if err := rows.Scan(&c.ChainID, &c.Bin, &c.TripI, &tripJ, &c.Scenario, &c.TotalInVehicleTime,
			&c.DetourI, &detourJ, &c.InitialWait, &c.VehicleID); err != nil {
			return nil, err
		}
		if tripJ.Valid {
			j := int(tripJ.Int64)
			c.TripJ = &j
		}
		if detourJ.Valid {
			d := detourJ.Float64
			c.DetourJ = &d
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Runs lists the stored run IDs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func encodeIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ";")
}

func decodeIDs(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("decode trip ids %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}
