package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrInvalidSide      = errors.New("invalid_side")
	ErrInvalidOrderKind = errors.New("invalid_order_kind")
	ErrOrderNotFound    = errors.New("order_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
