package payment

import (
	"errors"

	"marketingclass-be/internal/order"
)

var (
	// -- Resource State --
	ErrOrderNotFound   = order.ErrOrderNotFound
	ErrStatusNotFound  = errors.New("payment status not found")
	ErrOrderNotPayable = errors.New("order is not awaiting payment")

	// -- Access --
	ErrUnauthorized = order.ErrUnauthorized
	ErrForbidden    = order.ErrForbidden

	// -- State machine --
	ErrInvalidStatus        = errors.New("invalid payment status")
	ErrIllegalTransition    = errors.New("illegal payment status transition")
	ErrConcurrentUpdate     = errors.New("payment status was modified concurrently")
	ErrVerificationRequired = errors.New("verified status is set through admin verification")

	// -- Validation & Input --
	ErrInvalidMethod  = errors.New("payment method is required")
	ErrInvalidAmount  = errors.New("invalid payment amount")
	ErrAmountMismatch = errors.New("paid amount does not match order total")
)
