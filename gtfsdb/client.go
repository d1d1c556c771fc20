// Package gtfsdb is the tabular staging store: stop-visit and frequency rows
// are loaded into SQLite once up front so materialization can read one route's
// rows at a time instead of holding the whole feed in memory.
package gtfsdb

import (
	"database/sql"
	"log/slog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"scheddb.mobitransit.org/internal/logging"
)

// Client is the main entry point for the staging store
type Client struct {
	config Config
	DB     *sql.DB
	logger *slog.Logger
}

// NewClient creates a new Client with the provided configuration
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	db, err := createDB(config)
	if err != nil {
		return nil, err
	}
	if config.verbose {
		logging.LogOperation(logger, "staging store ready", slog.String("path", config.DBPath))
	}

	return &Client{
		config: config,
		DB:     db,
		logger: logger,
	}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}
