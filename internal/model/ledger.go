package model

import "time"

// Account is a principal's settlement balance, in integer micro-units.
type Account struct {
	Principal string `json:"principal"`
	Balance   int64  `json:"balance"`
}

// Event records one successful lifecycle transition. The name is the state
// the item entered. Events are append-only and form the batch's audit trail.
type Event struct {
	ID        string    `json:"id"`
	Name      State     `json:"name"`
	UPC       int64     `json:"upc"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}
