package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"
)

// FrequencyRow is one staged headway definition for a trip. Times are seconds
// since midnight.
type FrequencyRow struct {
	TripID      int
	StartSecs   int
	EndSecs     int
	HeadwaySecs int
	ExactTimes  int
}

func createFrequenciesTable(tx *sql.Tx) error {
	return createTable(tx, "frequencies", `
		CREATE TABLE IF NOT EXISTS frequencies (
			trip_id INTEGER NOT NULL,
			start_secs INTEGER NOT NULL,
			end_secs INTEGER NOT NULL,
			headway_secs INTEGER NOT NULL,
			exact_times INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (trip_id, start_secs)
		);`,
	)
}

// InsertFrequencies bulk-loads frequency rows inside one transaction.
func (c *Client) InsertFrequencies(ctx context.Context, freqs []FrequencyRow) error {
	tx, err := c.DB.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO frequencies (
			trip_id, start_secs, end_secs, headway_secs, exact_times
		) VALUES (?, ?, ?, ?, ?);
	`)
	if err != nil {
		tx.Rollback() // nolint:errcheck
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close() // nolint:errcheck

	for _, f := range freqs {
		_, err := stmt.ExecContext(ctx, f.TripID, f.StartSecs, f.EndSecs, f.HeadwaySecs, f.ExactTimes)
		if err != nil {
			tx.Rollback() // nolint:errcheck
			return fmt.Errorf("error inserting frequency: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// FrequenciesForTrips returns the staged frequency rows of the given trips,
// ordered by trip id and start time.
func (c *Client) FrequenciesForTrips(ctx context.Context, tripIDs []int) ([]FrequencyRow, error) {
	if len(tripIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT trip_id, start_secs, end_secs, headway_secs, exact_times
		FROM frequencies
		WHERE trip_id IN (%s)
		ORDER BY trip_id, start_secs;
	`, placeholders(len(tripIDs)))

	rows, err := c.DB.QueryContext(ctx, query, intArgs(tripIDs)...)
	if err != nil {
		return nil, fmt.Errorf("error querying frequencies: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	var freqs []FrequencyRow
	for rows.Next() {
		var f FrequencyRow
		if err := rows.Scan(&f.TripID, &f.StartSecs, &f.EndSecs, &f.HeadwaySecs, &f.ExactTimes); err != nil {
			return nil, fmt.Errorf("error scanning frequency: %w", err)
		}
		freqs = append(freqs, f)
	}
	return freqs, rows.Err()
}

// DeleteFrequenciesForTrips removes the staged frequency rows of the given trips.
func (c *Client) DeleteFrequenciesForTrips(ctx context.Context, tripIDs []int) error {
	if len(tripIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM frequencies WHERE trip_id IN (%s);`, placeholders(len(tripIDs)))
	if _, err := c.DB.ExecContext(ctx, query, intArgs(tripIDs)...); err != nil {
		return fmt.Errorf("error deleting frequencies: %w", err)
	}
	return nil
}
