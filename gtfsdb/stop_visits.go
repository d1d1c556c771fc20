package gtfsdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// StopVisit is one staged stop-visit row: the scheduled arrival and departure
// of one trip at one stop. Times are seconds since midnight; a negative value
// means the source row carried no explicit time and the materializer must
// interpolate.
type StopVisit struct {
	RouteID       int
	TripID        int
	StopID        int
	StopSequence  int
	ArrivalSecs   int
	DepartureSecs int
	Headsign      string
	PickupType    int
	DropOffType   int
}

func createStopVisitsTable(tx *sql.Tx) error {
	return createTable(tx, "stop_visits", `
		CREATE TABLE IF NOT EXISTS stop_visits (
			route_id INTEGER NOT NULL,
			trip_id INTEGER NOT NULL,
			stop_id INTEGER NOT NULL,
			stop_sequence INTEGER NOT NULL,
			arrival_secs INTEGER NOT NULL,
			departure_secs INTEGER NOT NULL,
			stop_headsign TEXT NOT NULL DEFAULT '',
			pickup_type INTEGER NOT NULL DEFAULT 0,
			drop_off_type INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (trip_id, stop_sequence)
		);`,
	)
}

// InsertStopVisits bulk-loads stop-visit rows inside one transaction.
func (c *Client) InsertStopVisits(ctx context.Context, visits []StopVisit) error {
	tx, err := c.DB.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO stop_visits (
			route_id, trip_id, stop_id, stop_sequence,
			arrival_secs, departure_secs, stop_headsign, pickup_type, drop_off_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		tx.Rollback() // nolint:errcheck
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close() // nolint:errcheck

	for _, v := range visits {
		_, err := stmt.ExecContext(ctx,
			v.RouteID, v.TripID, v.StopID, v.StopSequence,
			v.ArrivalSecs, v.DepartureSecs, v.Headsign, v.PickupType, v.DropOffType,
		)
		if err != nil {
			tx.Rollback() // nolint:errcheck
			return fmt.Errorf("error inserting stop visit: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// StopVisitsForTrips returns the staged rows of the given trips, ordered by
// trip id and stop sequence. Materialization calls this once per route with
// the route's own trip-id set only.
func (c *Client) StopVisitsForTrips(ctx context.Context, tripIDs []int) ([]StopVisit, error) {
	if len(tripIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT route_id, trip_id, stop_id, stop_sequence,
			arrival_secs, departure_secs, stop_headsign, pickup_type, drop_off_type
		FROM stop_visits
		WHERE trip_id IN (%s)
		ORDER BY trip_id, stop_sequence;
	`, placeholders(len(tripIDs)))

	rows, err := c.DB.QueryContext(ctx, query, intArgs(tripIDs)...)
	if err != nil {
		return nil, fmt.Errorf("error querying stop visits: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	var visits []StopVisit
	for rows.Next() {
		var v StopVisit
		err := rows.Scan(
			&v.RouteID, &v.TripID, &v.StopID, &v.StopSequence,
			&v.ArrivalSecs, &v.DepartureSecs, &v.Headsign, &v.PickupType, &v.DropOffType,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning stop visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// DeleteStopVisitsForTrips removes the staged rows of the given trips.
func (c *Client) DeleteStopVisitsForTrips(ctx context.Context, tripIDs []int) error {
	if len(tripIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM stop_visits WHERE trip_id IN (%s);`, placeholders(len(tripIDs)))
	if _, err := c.DB.ExecContext(ctx, query, intArgs(tripIDs)...); err != nil {
		return fmt.Errorf("error deleting stop visits: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func intArgs(ids []int) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
