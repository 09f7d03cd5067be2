package model

import "time"

// State is a lifecycle state of a tracked batch. States advance strictly
// forward through the order in StateOrder; there is no way back.
type State string

// Lifecycle states, in order.
const (
	StateHarvested State = "harvested"
	StateProcessed State = "processed"
	StatePacked    State = "packed"
	StateForSale   State = "forsale"
	StateSold      State = "sold"
	StateShipped   State = "shipped"
	StateReceived  State = "received"
	StatePurchased State = "purchased"
)

// StateOrder is the fixed forward order of the lifecycle. StatePurchased is
// terminal.
var StateOrder = []State{
	StateHarvested,
	StateProcessed,
	StatePacked,
	StateForSale,
	StateSold,
	StateShipped,
	StateReceived,
	StatePurchased,
}

var stateIndex = func() map[State]int {
	m := make(map[State]int, len(StateOrder))
	for i, s := range StateOrder {
		m[s] = i
	}
	return m
}()

// Ordinal returns the position of the state in the lifecycle order, or -1 for
// an unknown state.
func (s State) Ordinal() int {
	i, ok := stateIndex[s]
	if !ok {
		return -1
	}
	return i
}

// ValidState reports whether s is one of the eight lifecycle states.
func ValidState(s State) bool {
	_, ok := stateIndex[s]
	return ok
}

// Item is a single traceable batch, identified by its UPC. Provenance fields
// are set at harvest and never change; custody fields are populated exactly
// once each, at the transition where that role first takes the batch.
type Item struct {
	SKU                   int64     `json:"sku"`
	UPC                   int64     `json:"upc"`
	OwnerID               string    `json:"owner_id"`
	OriginFarmerID        string    `json:"origin_farmer_id"`
	OriginFarmName        string    `json:"origin_farm_name"`
	OriginFarmInformation string    `json:"origin_farm_information,omitempty"`
	OriginFarmLatitude    string    `json:"origin_farm_latitude,omitempty"`
	OriginFarmLongitude   string    `json:"origin_farm_longitude,omitempty"`
	ProductID             int64     `json:"product_id"`
	ProductNotes          string    `json:"product_notes,omitempty"`
	ProductPrice          int64     `json:"product_price"`
	State                 State     `json:"state"`
	DistributorID         string    `json:"distributor_id,omitempty"`
	RetailerID            string    `json:"retailer_id,omitempty"`
	ConsumerID            string    `json:"consumer_id,omitempty"`
	PhotoMime             string    `json:"photo_mime,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
