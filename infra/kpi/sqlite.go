package kpi

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	core "github.com/kilianp07/tncsim/core/kpi"
)

// SQLiteStore persists per-vehicle KPI records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS vehicle_kpi (
        run_id TEXT NOT NULL,
        vehicle_id INTEGER NOT NULL,
        legs INTEGER,
        trips_served INTEGER,
        refuels INTEGER,
        loaded_distance REAL,
        deadhead_distance REAL,
        loaded_minutes REAL,
        deadhead_minutes REAL,
        passenger_distance REAL,
        PRIMARY KEY(run_id, vehicle_id)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add inserts the records of a run. A record already present for the same
// vehicle is accumulated.
func (s *SQLiteStore) Add(ctx context.Context, runID string, ks []core.VehicleKPI) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, k := range ks {
		_, err = tx.ExecContext(ctx, `INSERT INTO vehicle_kpi (run_id, vehicle_id, legs, trips_served, refuels,
            loaded_distance, deadhead_distance, loaded_minutes, deadhead_minutes, passenger_distance)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id, vehicle_id) DO UPDATE SET
            legs = legs + excluded.legs,
            trips_served = trips_served + excluded.trips_served,
            refuels = refuels + excluded.refuels,
            loaded_distance = loaded_distance + excluded.loaded_distance,
            deadhead_distance = deadhead_distance + excluded.deadhead_distance,
            loaded_minutes = loaded_minutes + excluded.loaded_minutes,
            deadhead_minutes = deadhead_minutes + excluded.deadhead_minutes,
            passenger_distance = passenger_distance + excluded.passenger_distance`,
			runID, k.VehicleID, k.Legs, k.TripsServed, k.Refuels,
			k.LoadedDistance, k.DeadheadDistance, k.LoadedMinutes, k.DeadheadMinutes, k.PassengerDistance)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns the records of a run by ascending vehicle ID.
func (s *SQLiteStore) Query(ctx context.Context, runID string) ([]core.VehicleKPI, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT vehicle_id, legs, trips_served, refuels, loaded_distance,
            deadhead_distance, loaded_minutes, deadhead_minutes, passenger_distance
        FROM vehicle_kpi WHERE run_id = ? ORDER BY vehicle_id`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []core.VehicleKPI
	for rows.Next() {
		var k core.VehicleKPI
		if err := rows.Scan(&k.VehicleID, &k.Legs, &k.TripsServed, &k.Refuels, &k.LoadedDistance,
			&k.DeadheadDistance, &k.LoadedMinutes, &k.DeadheadMinutes, &k.PassengerDistance); err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
