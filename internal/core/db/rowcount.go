package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// RowCounter counts dataset rows matching a filter expression by running
// SELECT COUNT(*) against the table named like the dataset.
type RowCounter struct {
	db *sqlx.DB
}

// NewRowCounter creates a counter on db.
func NewRowCounter(db *sqlx.DB) *RowCounter {
	return &RowCounter{db: db}
}

// RowCount returns the number of rows of dataset satisfying where. An empty
// where counts all rows. The filter is passed to the database verbatim.
func (c *RowCounter) RowCount(ctx context.Context, dataset, where string) (int64, error) {
	query := "SELECT COUNT(*) FROM " + quoteIdentifier(dataset)
	if strings.TrimSpace(where) != "" {
		query += " WHERE " + where
	}

	var n int64
	if err := c.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s where %q: %w", dataset, where, err)
	}
	return n, nil
}

// quoteIdentifier quotes each dot-separated part of a table name.
func quoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
