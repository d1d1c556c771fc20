package gtfsdb

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// TableCounts returns the row count of every staging table.
func (c *Client) TableCounts() (map[string]int, error) {
	rows, err := c.DB.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("error querying table names: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, table := range tables {
		var count int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := c.DB.QueryRow(query).Scan(&count); err != nil {
			return nil, err
		}
		counts[table] = count
	}

	return counts, nil
}

// DumpCounts renders the staging table counts for verbose output.
func (c *Client) DumpCounts() (string, error) {
	counts, err := c.TableCounts()
	if err != nil {
		return "", err
	}
	return spew.Sdump(counts), nil
}
