package store

import (
	"context"
	"database/sql"
	"fmt"

	"beantrack/internal/model"
)

const itemColumns = `sku, upc, owner_id, origin_farmer_id, origin_farm_name,
	        origin_farm_information, origin_farm_latitude, origin_farm_longitude,
	        product_id, product_notes, product_price, state,
	        distributor_id, retailer_id, consumer_id, photo_mime, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	var photoMime sql.NullString
	err := row.Scan(&item.SKU, &item.UPC, &item.OwnerID, &item.OriginFarmerID,
		&item.OriginFarmName, &item.OriginFarmInformation,
		&item.OriginFarmLatitude, &item.OriginFarmLongitude,
		&item.ProductID, &item.ProductNotes, &item.ProductPrice, &item.State,
		&item.DistributorID, &item.RetailerID, &item.ConsumerID,
		&photoMime, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.PhotoMime = photoMime.String
	return item, nil
}

// GetItemByUPC returns the full item record for a UPC, or nil if unknown.
func GetItemByUPC(ctx context.Context, db *sql.DB, upc int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE upc = ?`, upc,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns all items, optionally filtered by lifecycle state.
func ListItems(ctx context.Context, db *sql.DB, state model.State) ([]model.Item, error) {
	var rows *sql.Rows
	var err error

	if state != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items WHERE state = ? ORDER BY sku`, state,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items ORDER BY sku`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// SetItemPhoto stores the harvest photo for an item.
func SetItemPhoto(ctx context.Context, db *sql.DB, upc int64, photo []byte, mime string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE items SET photo = ?, photo_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE upc = ?`,
		photo, mime, upc,
	)
	if err != nil {
		return fmt.Errorf("setting item photo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting item photo: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// GetItemPhoto returns an item's harvest photo and MIME type. A nil photo
// with no error means the item has no photo.
func GetItemPhoto(ctx context.Context, db *sql.DB, upc int64) ([]byte, string, error) {
	var photo []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT photo, photo_mime FROM items WHERE upc = ?`, upc,
	).Scan(&photo, &mime)
	if err == sql.ErrNoRows {
		return nil, "", model.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item photo: %w", err)
	}
	return photo, mime.String, nil
}

// CountItemsByState returns how many items are currently in each state.
func CountItemsByState(ctx context.Context, db *sql.DB) (map[model.State]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM items GROUP BY state`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.State]int)
	for rows.Next() {
		var state model.State
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scanning item count: %w", err)
		}
		counts[state] = n
	}
	return counts, rows.Err()
}
