package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ryfazal/stocklog/internal/model"
)

// ListLocations returns every location ever referenced, ordered by name.
// The set only grows; locations are never deleted.
func ListLocations(ctx context.Context, db *sql.DB) ([]model.Location, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, created_at FROM locations ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		var loc model.Location
		if err := rows.Scan(&loc.Name, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}
