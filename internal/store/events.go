package store

import (
	"context"
	"database/sql"
	"fmt"

	"beantrack/internal/model"
)

// ListItemEvents returns the transition history for a UPC, oldest first.
// Ties within one timestamp are broken by insertion order so the history
// always reads in lifecycle order.
func ListItemEvents(ctx context.Context, db *sql.DB, upc int64) ([]model.Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, upc, actor, created_at FROM events
		 WHERE upc = ? ORDER BY created_at, rowid`, upc,
	)
	if err != nil {
		return nil, fmt.Errorf("listing item events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.UPC, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
