package model

import "errors"

// Failure modes of lifecycle operations. Every one of these is detected
// before any row is written, so a failed operation leaves the store
// untouched. Callers match with errors.Is.
var (
	// ErrNotFound means the referenced UPC has no item.
	ErrNotFound = errors.New("item not found")

	// ErrDuplicateItem means a harvest reused an existing UPC.
	ErrDuplicateItem = errors.New("item already exists")

	// ErrInvalidState means the item is not in the state the requested
	// transition starts from.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrUnauthorized means the caller lacks the required role, or is not
	// the specific principal recorded on the item.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrInsufficientPayment means a buy offered less than the listed price.
	ErrInsufficientPayment = errors.New("payment below product price")

	// ErrSettlementFailure means the payment to the farmer or the refund to
	// the buyer could not be completed.
	ErrSettlementFailure = errors.New("settlement failed")
)
