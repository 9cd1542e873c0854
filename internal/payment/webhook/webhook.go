package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"marketingclass-be/internal/logger"
	"marketingclass-be/internal/metrics"
	"marketingclass-be/internal/order"
	"marketingclass-be/internal/payment"
	"marketingclass-be/internal/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	Provider    = "GATEWAY"
	TokenHeader = "x-callback-token"

	maxBodyBytes = 1 << 20
)

const (
	EventPaid    = "PAID"
	EventFailed  = "FAILED"
	EventExpired = "EXPIRED"
)

// Payload is the JSON the gateway posts for a payment event.
type Payload struct {
	EventID       string          `json:"eventId"`
	OrderID       string          `json:"orderId"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
}

type Settler interface {
	ConfirmPayment(ctx context.Context, orderID string, details order.PaymentDetails) (*payment.Entitlement, error)
	MarkFailed(ctx context.Context, orderID, reason string) (payment.Status, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*order.Order, error)
}

type Handler struct {
	payments Settler
	orders   OrderReader
	store    payment.WebhookStore
	token    string
	metrics  *metrics.PaymentMetrics
}

func NewWebhookHandler(payments Settler, orders OrderReader, store payment.WebhookStore, token string, m *metrics.PaymentMetrics) *Handler {
	if m == nil {
		m = metrics.NewPaymentMetrics()
	}
	return &Handler{
		payments: payments,
		orders:   orders,
		store:    store,
		token:    token,
		metrics:  m,
	}
}

func (h *Handler) verifyToken(r *http.Request) bool {
	got := r.Header.Get(TokenHeader)
	if h.token == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

// PaymentWebhookHandler settles or fails an order from a gateway callback.
// Events are stored first, so a replayed event id succeeds without side effects.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := utils.WithInternalRequest(r.Context())
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "webhook"),
		zap.String("method", "PaymentWebhookHandler"),
	)

	// 1. Verify token
	if !h.verifyToken(r) {
		log.Warn("invalid callback token")
		utils.WriteJSONError(w, "invalid callback token", http.StatusUnauthorized)
		return
	}

	// 2. Parse
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		utils.WriteJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		utils.WriteJSONError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if p.EventID == "" || p.OrderID == "" {
		utils.WriteJSONError(w, "eventId and orderId are required", http.StatusBadRequest)
		return
	}

	log = log.With(
		zap.String("event_id", p.EventID),
		zap.String("order_id", p.OrderID),
		zap.String("event", p.Status),
	)
	h.metrics.WebhooksReceived.Inc()

	// 3. Idempotent persistence
	webhookID, isDuplicate, err := h.store.SaveWebhook(ctx, payment.WebhookEvent{
		Provider:  Provider,
		EventID:   p.EventID,
		EventType: p.Status,
		OrderID:   p.OrderID,
		Payload:   body,
	})
	if err != nil {
		log.Error("failed to save webhook", zap.Error(err))
		utils.WriteJSONError(w, "failed to save webhook", http.StatusInternalServerError)
		return
	}
	if isDuplicate {
		h.metrics.WebhooksDuplicate.Inc()
		log.Info("duplicate webhook ignored")
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	// fail leaves the event unprocessed so a redelivery is applied again.
	fail := func(code int, reason string) {
		h.metrics.WebhooksFailed.Inc()
		if err := h.store.MarkWebhookFailed(ctx, webhookID, reason); err != nil {
			log.Error("failed to mark webhook failed", zap.Error(err))
		}
		utils.WriteJSONError(w, reason, code)
	}

	// 4. Apply
	switch p.Status {
	case EventPaid, EventFailed, EventExpired:
	default:
		log.Info("unhandled event status")
		h.done(ctx, w, webhookID)
		return
	}

	o, err := h.orders.GetOrder(ctx, p.OrderID)
	if errors.Is(err, order.ErrOrderNotFound) {
		fail(http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		log.Error("failed to load order", zap.Error(err))
		fail(http.StatusInternalServerError, "failed to load order")
		return
	}

	if p.Status == EventPaid {
		if !p.Amount.Equal(o.TotalAmount) {
			log.Warn("amount mismatch",
				zap.String("paid", p.Amount.String()),
				zap.String("expected", o.TotalAmount.String()),
			)
			h.metrics.WebhooksFailed.Inc()
			h.settled(ctx, webhookID, payment.ErrAmountMismatch.Error())
			utils.WriteJSONError(w, payment.ErrAmountMismatch.Error(), http.StatusUnprocessableEntity)
			return
		}

		details := order.PaymentDetails{
			TransactionID: p.TransactionID,
			Method:        o.PaymentMethod,
			Amount:        p.Amount,
			Source:        order.SourceWebhook,
		}
		if p.PaidAt != nil {
			details.PaidAt = p.PaidAt.UTC()
		}
		_, err = h.payments.ConfirmPayment(ctx, p.OrderID, details)
	} else {
		_, err = h.payments.MarkFailed(ctx, p.OrderID, "gateway: "+p.Status)
	}

	err = h.settleErr(err)
	if errors.Is(err, errIgnored) {
		log.Info("event does not apply to the current payment state")
		h.settled(ctx, webhookID, errIgnored.Error())
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		log.Error("failed to apply payment event", zap.Error(err))
		if p.Status == EventPaid {
			fail(http.StatusInternalServerError, "failed to confirm payment")
		} else {
			fail(http.StatusInternalServerError, "failed to update payment")
		}
		return
	}

	// 5. Done
	h.done(ctx, w, webhookID)
}

var errIgnored = errors.New("event does not apply to current state")

// settleErr folds state conflicts into errIgnored so the gateway stops retrying.
func (h *Handler) settleErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, payment.ErrIllegalTransition), errors.Is(err, payment.ErrOrderNotPayable):
		return errIgnored
	}
	return err
}

// settled records why the event had no effect and closes it, so a
// redelivery is answered as a duplicate.
func (h *Handler) settled(ctx context.Context, webhookID int64, reason string) {
	log := logger.FromCtx(ctx)
	if err := h.store.MarkWebhookFailed(ctx, webhookID, reason); err != nil {
		log.Error("failed to record webhook outcome", zap.Error(err))
	}
	if err := h.store.MarkWebhookProcessed(ctx, webhookID); err != nil {
		log.Error("failed to mark webhook processed", zap.Error(err))
	}
}

func (h *Handler) done(ctx context.Context, w http.ResponseWriter, webhookID int64) {
	if err := h.store.MarkWebhookProcessed(ctx, webhookID); err != nil {
		logger.FromCtx(ctx).Error("failed to mark webhook processed", zap.Error(err))
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
