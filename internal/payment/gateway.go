package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ChargeRequest struct {
	OrderID string
	Method  string
	Amount  decimal.Decimal
}

// ChargeResult is a business outcome. A declined charge is StateFailed, not an error.
type ChargeResult struct {
	Status        State
	Message       string
	TransactionID string
	PaidAt        time.Time
}

type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}
