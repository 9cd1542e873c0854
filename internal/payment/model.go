package payment

import (
	"time"

	"marketingclass-be/internal/order"

	"github.com/shopspring/decimal"
)

const (
	MsgPending      = "Төлбөр хүлээгдэж байна"
	MsgProcessing   = "Төлбөр боловсруулагдаж байна"
	MsgSuccess      = "Төлбөр амжилттай төлөгдлөө"
	MsgFailed       = "Төлбөр амжилтгүй боллоо"
	MsgVerified     = "Төлбөр баталгаажлаа"
	MsgCancelled    = "Захиалга цуцлагдсан"
	MsgAwaitingBank = "Банкны шилжүүлгийг админ шалгаж баталгаажуулна"
	MsgWalletFailed = "Хэтэвчний үлдэгдэл хүрэлцэхгүй байна"
	MsgCardFailed   = "Картын мэдээлэл буруу эсвэл лимит хэтэрсэн байна"
)

// Status is the single mutable payment record of an order.
// Version is bumped on every write and guards concurrent updates.
type Status struct {
	OrderID           string     `json:"orderId"`
	Status            State      `json:"status"`
	Message           string     `json:"message"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	VerificationCount int        `json:"verificationCount"`
	PaidAt            *time.Time `json:"paidAt,omitempty"`
	VerifiedAt        *time.Time `json:"verifiedAt,omitempty"`
	VerifiedBy        *string    `json:"verifiedBy,omitempty"`
	TransactionID     *string    `json:"transactionId,omitempty"`
	Error             *string    `json:"error,omitempty"`
	Version           int64      `json:"version"`
}

// DefaultStatus is what an order without a stored record reports.
// It has a zero UpdatedAt so repeated reads are identical.
func DefaultStatus(orderID string) Status {
	return Status{
		OrderID:           orderID,
		Status:            StatePending,
		Message:           MsgPending,
		VerificationCount: 0,
	}
}

// Verification is one entry of the append-only evidence log.
type Verification struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"orderId"`
	UserID        string          `json:"userId"`
	UserName      *string         `json:"userName,omitempty"`
	IsAdmin       bool            `json:"isAdmin"`
	Method        string          `json:"method"`
	TransactionID *string         `json:"transactionId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	Status        string          `json:"status"`
}

const (
	VerificationSubmitted = "submitted"
	VerificationApproved  = "approved"
)

type VerificationInput struct {
	Method        string          `json:"method"`
	TransactionID string          `json:"transactionId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Notes         string          `json:"notes,omitempty"`
}

type StatusUpdate struct {
	Status        State   `json:"status"`
	Message       string  `json:"message,omitempty"`
	TransactionID *string `json:"transactionId,omitempty"`
	Error         *string `json:"error,omitempty"`
}

// Entitlement records the courses granted by a settled order.
type Entitlement struct {
	UserID    string    `json:"userId"`
	OrderID   string    `json:"orderId"`
	CourseIDs []string  `json:"courseIds"`
	GrantedAt time.Time `json:"grantedAt"`
}

// Settlement is everything ConfirmPayment commits atomically.
type Settlement struct {
	Status          *Status
	ExpectedVersion int64
	Order           *order.Order
	Details         order.PaymentDetails
	GrantedAt       time.Time
	// Verification is appended in the same transaction when set.
	Verification *Verification
}

// WebhookEvent is a raw gateway callback kept for idempotency and audit.
type WebhookEvent struct {
	Provider  string
	EventID   string
	EventType string
	OrderID   string
	Payload   []byte
}
