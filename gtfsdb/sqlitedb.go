package gtfsdb

import (
	"database/sql"
	"fmt"

	"scheddb.mobitransit.org/internal/appconf"
)

// createDB opens a SQLite database and bootstraps the staging tables for
// stop-visit and frequency rows.
func createDB(config Config) (*sql.DB, error) {
	if config.Env == appconf.Test && config.DBPath != ":memory:" {
		return nil, fmt.Errorf("test environment must stage in memory, got %q", config.DBPath)
	}

	db, err := sql.Open("sqlite", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	if err := createTables(tx); err != nil {
		tx.Rollback() // nolint:errcheck
		return nil, err
	}

	_, err = tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_stop_visits_trip_id ON stop_visits(trip_id);
		CREATE INDEX IF NOT EXISTS idx_stop_visits_stop_id ON stop_visits(stop_id);
		CREATE INDEX IF NOT EXISTS idx_stop_visits_route_id ON stop_visits(route_id);
		CREATE INDEX IF NOT EXISTS idx_frequencies_trip_id ON frequencies(trip_id);
	`)
	if err != nil {
		tx.Rollback() // nolint:errcheck
		return nil, fmt.Errorf("error creating indexes: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}

	return db, nil
}

func createTables(tx *sql.Tx) error {
	if err := createStopVisitsTable(tx); err != nil {
		return err
	}
	return createFrequenciesTable(tx)
}

// createTable creates a table in the database
func createTable(tx *sql.Tx, tableName string, createStmt string) error {
	if _, err := tx.Exec(createStmt); err != nil {
		return fmt.Errorf("error creating table %s: %w", tableName, err)
	}
	return nil
}
