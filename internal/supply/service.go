// Package supply implements the batch lifecycle state machine. Every
// transition runs as a single SQLite transaction that checks the caller's
// authorization and the item's current state before touching any row, so a
// failed operation leaves the store exactly as it was.
package supply

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"beantrack/internal/model"
	"beantrack/internal/notify"
)

// Service validates and applies lifecycle transitions.
type Service struct {
	db    *sql.DB
	hooks notify.Hooks
	log   *zap.Logger
}

// New creates a Service. Hooks are optional and fire after commit.
func New(db *sql.DB, hooks notify.Hooks, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, hooks: hooks, log: log}
}

// itemRow is the slice of an item a transition guard needs.
type itemRow struct {
	sku         int64
	state       model.State
	farmer      string
	distributor string
	price       int64
}

// getItem reads the guard fields for a UPC inside the transaction.
func getItem(ctx context.Context, tx *sql.Tx, upc int64) (*itemRow, error) {
	row := &itemRow{}
	err := tx.QueryRowContext(ctx,
		`SELECT sku, state, origin_farmer_id, distributor_id, product_price
		 FROM items WHERE upc = ?`, upc,
	).Scan(&row.sku, &row.state, &row.farmer, &row.distributor, &row.price)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading item: %w", err)
	}
	return row, nil
}

// hasRole checks the role registry inside the transaction.
func hasRole(ctx context.Context, tx *sql.Tx, principal, role string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM roles WHERE principal = ? AND role = ?`,
		principal, role,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking role: %w", err)
	}
	return true, nil
}

// requireRole fails with ErrUnauthorized unless the principal holds the role.
func requireRole(ctx context.Context, tx *sql.Tx, principal, role string) error {
	ok, err := hasRole(ctx, tx, principal, role)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is not a registered %s", model.ErrUnauthorized, principal, role)
	}
	return nil
}

// requireState fails with ErrInvalidState unless the item is in want.
func requireState(item *itemRow, want model.State) error {
	if item.state != want {
		return fmt.Errorf("%w: item is %s, not %s", model.ErrInvalidState, item.state, want)
	}
	return nil
}

// recordEvent appends the transition's event row inside the transaction.
func recordEvent(ctx context.Context, tx *sql.Tx, name model.State, upc int64, actor string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO events (id, name, upc, actor) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), string(name), upc, actor,
	)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// committed fans the event out to hooks and logs it. Called only after the
// transaction has committed; hook failures cannot undo the transition.
func (s *Service) committed(ctx context.Context, name model.State, upc int64, actor string) {
	s.log.Info("transition committed",
		zap.String("state", string(name)),
		zap.Int64("upc", upc),
		zap.String("actor", actor),
	)
	s.hooks.Emit(ctx, notify.Event{Name: name, UPC: upc, Actor: actor})
}

// fetch returns the full committed item record after a transition.
func (s *Service) fetch(ctx context.Context, upc int64) (*model.Item, error) {
	item := &model.Item{}
	var photoMime sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT sku, upc, owner_id, origin_farmer_id, origin_farm_name,
		        origin_farm_information, origin_farm_latitude, origin_farm_longitude,
		        product_id, product_notes, product_price, state,
		        distributor_id, retailer_id, consumer_id, photo_mime, created_at, updated_at
		 FROM items WHERE upc = ?`, upc,
	).Scan(&item.SKU, &item.UPC, &item.OwnerID, &item.OriginFarmerID,
		&item.OriginFarmName, &item.OriginFarmInformation,
		&item.OriginFarmLatitude, &item.OriginFarmLongitude,
		&item.ProductID, &item.ProductNotes, &item.ProductPrice, &item.State,
		&item.DistributorID, &item.RetailerID, &item.ConsumerID,
		&photoMime, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching item: %w", err)
	}
	item.PhotoMime = photoMime.String
	return item, nil
}
