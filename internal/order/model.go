package order

import (
	"time"

	"marketingclass-be/internal/cart"

	"github.com/shopspring/decimal"
)

// Status tracks fulfillment only. Payment belief lives in payment.Status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Settlement sources recorded on PaymentDetails.
const (
	SourceGateway = "gateway"
	SourceWebhook = "webhook"
	SourceAdmin   = "admin"
)

type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Items          []cart.Item     `json:"items"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Status         Status          `json:"status"`
	PaymentMethod  string          `json:"paymentMethod"`
	ReferralCode   *string         `json:"referralCode,omitempty"`
	PaymentDetails *PaymentDetails `json:"paymentDetails,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type PaymentDetails struct {
	TransactionID string          `json:"transactionId"`
	Method        string          `json:"method"`
	PaidAt        time.Time       `json:"paidAt"`
	Amount        decimal.Decimal `json:"amount"`
	Source        string          `json:"source"`
	ReceiptNumber string          `json:"receiptNumber,omitempty"`
}

type CreateOrderInput struct {
	CourseIDs     []string `json:"courseIds"`
	PaymentMethod string   `json:"paymentMethod"`
	ReferralCode  string   `json:"referralCode,omitempty"`
}

func (o *Order) CourseIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.CourseID)
	}
	return ids
}

func (o *Order) IsPending() bool {
	return o.Status == StatusPending
}

func (o *Order) OwnedBy(userID string) bool {
	return userID != "" && o.UserID == userID
}
