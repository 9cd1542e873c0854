package cart

import "errors"

var (
	// -- Validation & Input --
	ErrInvalidItem = errors.New("invalid cart item")

	// -- Resource State --
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrCartEmpty        = errors.New("cart is empty")
)
