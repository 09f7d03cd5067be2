package supply

import (
	"context"
	"database/sql"
	"fmt"

	"beantrack/internal/model"
)

// HarvestParams are the creation inputs for a new batch. Everything here is
// immutable provenance once the item exists.
type HarvestParams struct {
	UPC                   int64
	OriginFarmerID        string
	OriginFarmName        string
	OriginFarmInformation string
	OriginFarmLatitude    string
	OriginFarmLongitude   string
	ProductNotes          string
}

// Harvest creates a batch in the harvested state. The caller must be a
// registered farmer; if OriginFarmerID names a different principal, that
// principal must be a registered farmer too and becomes the initial owner.
func (s *Service) Harvest(ctx context.Context, caller string, p HarvestParams) (*model.Item, error) {
	if p.UPC <= 0 {
		return nil, fmt.Errorf("upc must be positive")
	}
	if p.OriginFarmName == "" {
		return nil, fmt.Errorf("origin farm name required")
	}
	farmer := p.OriginFarmerID
	if farmer == "" {
		farmer = caller
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireRole(ctx, tx, caller, model.RoleFarmer); err != nil {
		return nil, err
	}
	if farmer != caller {
		if err := requireRole(ctx, tx, farmer, model.RoleFarmer); err != nil {
			return nil, err
		}
	}

	// Duplicate check before any write so a reused UPC touches nothing.
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE upc = ?`, p.UPC).Scan(&one)
	if err == nil {
		return nil, fmt.Errorf("%w: upc %d", model.ErrDuplicateItem, p.UPC)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("checking upc: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO items (upc, owner_id, origin_farmer_id, origin_farm_name,
		                    origin_farm_information, origin_farm_latitude, origin_farm_longitude,
		                    product_notes, state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UPC, farmer, farmer, p.OriginFarmName,
		p.OriginFarmInformation, p.OriginFarmLatitude, p.OriginFarmLongitude,
		p.ProductNotes, model.StateHarvested,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	sku, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item sku: %w", err)
	}

	// product_id derives from the assigned sequential sku.
	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET product_id = ? WHERE sku = ?`, sku+p.UPC, sku,
	); err != nil {
		return nil, fmt.Errorf("setting product id: %w", err)
	}

	if err := recordEvent(ctx, tx, model.StateHarvested, p.UPC, caller); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing harvest: %w", err)
	}

	s.committed(ctx, model.StateHarvested, p.UPC, caller)
	return s.fetch(ctx, p.UPC)
}

// Process moves a harvested batch to processed. Only the batch's origin
// farmer may do this.
func (s *Service) Process(ctx context.Context, caller string, upc int64) (*model.Item, error) {
	return s.advanceByFarmer(ctx, caller, upc, model.StateHarvested, model.StateProcessed)
}

// Pack moves a processed batch to packed. Only the batch's origin farmer
// may do this.
func (s *Service) Pack(ctx context.Context, caller string, upc int64) (*model.Item, error) {
	return s.advanceByFarmer(ctx, caller, upc, model.StateProcessed, model.StatePacked)
}

// advanceByFarmer is the shared shape of the farmer-only forward steps.
func (s *Service) advanceByFarmer(ctx context.Context, caller string, upc int64, from, to model.State) (*model.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := getItem(ctx, tx, upc)
	if err != nil {
		return nil, err
	}
	if item.farmer != caller {
		return nil, fmt.Errorf("%w: only the origin farmer may do this", model.ErrUnauthorized)
	}
	if err := requireState(item, from); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE upc = ?`,
		to, upc,
	); err != nil {
		return nil, fmt.Errorf("updating item state: %w", err)
	}

	if err := recordEvent(ctx, tx, to, upc, caller); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transition: %w", err)
	}

	s.committed(ctx, to, upc, caller)
	return s.fetch(ctx, upc)
}

// Sell lists a packed batch for sale at the given price. The price is set
// here and never again; no other transition writes it.
func (s *Service) Sell(ctx context.Context, caller string, upc, price int64) (*model.Item, error) {
	if price <= 0 {
		return nil, fmt.Errorf("price must be positive")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := getItem(ctx, tx, upc)
	if err != nil {
		return nil, err
	}
	if item.farmer != caller {
		return nil, fmt.Errorf("%w: only the origin farmer may do this", model.ErrUnauthorized)
	}
	if err := requireState(item, model.StatePacked); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET state = ?, product_price = ?, updated_at = CURRENT_TIMESTAMP WHERE upc = ?`,
		model.StateForSale, price, upc,
	); err != nil {
		return nil, fmt.Errorf("listing item: %w", err)
	}

	if err := recordEvent(ctx, tx, model.StateForSale, upc, caller); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing listing: %w", err)
	}

	s.committed(ctx, model.StateForSale, upc, caller)
	return s.fetch(ctx, upc)
}

// Buy sells the batch to a registered distributor. The payment must cover
// the listed price; the farmer is credited exactly the price and any
// overpayment is refunded to the buyer inside the same transaction.
func (s *Service) Buy(ctx context.Context, caller string, upc, payment int64) (*model.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireRole(ctx, tx, caller, model.RoleDistributor); err != nil {
		return nil, err
	}
	item, err := getItem(ctx, tx, upc)
	if err != nil {
		return nil, err
	}
	if err := requireState(item, model.StateForSale); err != nil {
		return nil, err
	}
	if payment < item.price {
		return nil, fmt.Errorf("%w: offered %d, price is %d",
			model.ErrInsufficientPayment, payment, item.price)
	}

	// The item row is finalized before any account is touched, so a
	// recipient observing the ledger can never see a half-updated item.
	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET state = ?, owner_id = ?, distributor_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE upc = ?`,
		model.StateSold, caller, caller, upc,
	); err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}

	if err := settle(ctx, tx, caller, item.farmer, item.price, payment); err != nil {
		return nil, err
	}

	if err := recordEvent(ctx, tx, model.StateSold, upc, caller); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing purchase: %w", err)
	}

	s.committed(ctx, model.StateSold, upc, caller)
	return s.fetch(ctx, upc)
}

// settle moves the payment: the buyer is debited the full payment, the
// farmer is credited exactly the price, and the overpayment is credited back
// to the buyer. All three moves share the transaction, so either the whole
// settlement lands or none of it does.
func settle(ctx context.Context, tx *sql.Tx, buyer, farmer string, price, payment int64) error {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE principal = ?`, buyer,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: buyer %s has no account", model.ErrSettlementFailure, buyer)
	}
	if err != nil {
		return fmt.Errorf("reading buyer account: %w", err)
	}
	if balance < payment {
		return fmt.Errorf("%w: buyer balance %d below payment %d",
			model.ErrSettlementFailure, balance, payment)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - ? WHERE principal = ?`,
		payment, buyer,
	); err != nil {
		return fmt.Errorf("%w: debiting buyer: %v", model.ErrSettlementFailure, err)
	}

	if refund := payment - price; refund > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET balance = balance + ? WHERE principal = ?`,
			refund, buyer,
		); err != nil {
			return fmt.Errorf("%w: refunding buyer: %v", model.ErrSettlementFailure, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (principal, balance) VALUES (?, ?)
		 ON CONFLICT (principal) DO UPDATE SET balance = balance + ?`,
		farmer, price, price,
	); err != nil {
		return fmt.Errorf("%w: paying farmer: %v", model.ErrSettlementFailure, err)
	}

	return nil
}

// Ship marks a sold batch as shipped. Only the distributor recorded on the
// batch may ship it.
func (s *Service) Ship(ctx context.Context, caller string, upc int64) (*model.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := getItem(ctx, tx, upc)
	if err != nil {
		return nil, err
	}
	// State before identity: before the sale there is no recorded
	// distributor, and that must read as a state error, not an
	// authorization one.
	if err := requireState(item, model.StateSold); err != nil {
		return nil, err
	}
	if item.distributor != caller {
		return nil, fmt.Errorf("%w: only the recorded distributor may ship", model.ErrUnauthorized)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE upc = ?`,
		model.StateShipped, upc,
	); err != nil {
		return nil, fmt.Errorf("updating item state: %w", err)
	}

	if err := recordEvent(ctx, tx, model.StateShipped, upc, caller); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing shipment: %w", err)
	}

	s.committed(ctx, model.StateShipped, upc, caller)
	return s.fetch(ctx, upc)
}

// Receive hands a shipped batch to a registered retailer, who takes custody.
func (s *Service) Receive(ctx context.Context, caller string, upc int64) (*model.Item, error) {
	return s.takeCustody(ctx, caller, upc, model.RoleRetailer,
		model.StateShipped, model.StateReceived, "retailer_id")
}

// Purchase sells a received batch to a registered consumer. The purchased
// state is terminal.
func (s *Service) Purchase(ctx context.Context, caller string, upc int64) (*model.Item, error) {
	return s.takeCustody(ctx, caller, upc, model.RoleConsumer,
		model.StateReceived, model.StatePurchased, "consumer_id")
}

// takeCustody is the shared shape of the role-gated custody transfers at the
// end of the chain. custodyColumn is one of the fixed item columns, never
// caller input.
func (s *Service) takeCustody(ctx context.Context, caller string, upc int64, role string, from, to model.State, custodyColumn string) (*model.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireRole(ctx, tx, caller, role); err != nil {
		return nil, err
	}
	item, err := getItem(ctx, tx, upc)
	if err != nil {
		return nil, err
	}
	if err := requireState(item, from); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET state = ?, owner_id = ?, `+custodyColumn+` = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE upc = ?`,
		to, caller, caller, upc,
	); err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}

	if err := recordEvent(ctx, tx, to, upc, caller); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transition: %w", err)
	}

	s.committed(ctx, to, upc, caller)
	return s.fetch(ctx, upc)
}
