package order

import (
	"errors"

	"marketingclass-be/internal/cart"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrEmptyCart            = cart.ErrCartEmpty
	ErrUnknownCourse        = errors.New("course not available")
	ErrAlreadyOwned         = errors.New("course already purchased")
	ErrInvalidPaymentMethod = errors.New("payment method is required")
	ErrOrderNotPending      = errors.New("order is not pending")
)
