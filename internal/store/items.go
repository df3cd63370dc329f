package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ryfazal/stocklog/internal/ledger"
	"github.com/ryfazal/stocklog/internal/model"
)

// AddItem registers a new SKU. A non-zero initial quantity is seeded through
// a completed adjustment transaction in the same SQL transaction, so the item
// never carries a stored quantity and the seed is atomic with registration.
func AddItem(ctx context.Context, db *sql.DB, sku, name, unit string, tags map[string]string, initialQty int, location string) (*model.Item, error) {
	if sku == "" {
		return nil, ledger.Validationf("sku", "required")
	}
	if name == "" {
		return nil, ledger.Validationf("name", "required")
	}
	if initialQty < 0 {
		return nil, ledger.Validationf("initial_qty", "must not be negative")
	}
	if unit == "" {
		unit = "pcs"
	}
	if location == "" {
		location = model.AdjustLocation
	}

	var tagsJSON any
	if len(tags) > 0 {
		data, err := json.Marshal(tags)
		if err != nil {
			return nil, fmt.Errorf("encoding tags: %w", err)
		}
		tagsJSON = string(data)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE sku = ?`, sku).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking sku: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("item %q: %w", sku, ledger.ErrDuplicate)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (sku, name, unit, tags) VALUES (?, ?, ?, ?)`,
		sku, name, unit, tagsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	if initialQty > 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO locations (name) VALUES (?)`, location,
		); err != nil {
			return nil, fmt.Errorf("registering location %q: %w", location, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO transactions (id, type, sku, quantity, to_location, ref, status, applied, applied_at)
			 VALUES (?, 'adjustment', ?, ?, ?, 'initial stock', 'completed', 1, CURRENT_TIMESTAMP)`,
			uuid.NewString(), sku, initialQty, location,
		)
		if err != nil {
			return nil, fmt.Errorf("seeding initial stock: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	return GetItem(ctx, db, sku)
}

// GetItem returns an item by SKU (exact, case-sensitive match).
// Returns nil if not found.
func GetItem(ctx context.Context, db *sql.DB, sku string) (*model.Item, error) {
	item := &model.Item{}
	var tags sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT sku, name, unit, active, tags, created_at FROM items WHERE sku = ?`, sku,
	).Scan(&item.SKU, &item.Name, &item.Unit, &item.Active, &tags, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &item.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags: %w", err)
		}
	}
	return item, nil
}

// ListItems returns items ordered by SKU. Inactive items are hidden unless
// includeInactive is set; their historical transactions stay valid either way.
func ListItems(ctx context.Context, db *sql.DB, includeInactive bool) ([]model.Item, error) {
	query := `SELECT sku, name, unit, active, tags, created_at FROM items`
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY sku`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		var tags sql.NullString
		if err := rows.Scan(&item.SKU, &item.Name, &item.Unit, &item.Active, &tags, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		if tags.Valid {
			if err := json.Unmarshal([]byte(tags.String), &item.Tags); err != nil {
				return nil, fmt.Errorf("decoding tags: %w", err)
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetItemActive toggles an item's visibility for listing and validation.
func SetItemActive(ctx context.Context, db *sql.DB, sku string, active bool) error {
	res, err := db.ExecContext(ctx,
		`UPDATE items SET active = ? WHERE sku = ?`, active, sku,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %q: %w", sku, ledger.ErrNotFound)
	}
	return nil
}
