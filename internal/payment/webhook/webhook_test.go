package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketingclass-be/internal/metrics"
	"marketingclass-be/internal/order"
	"marketingclass-be/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const validToken = "secret-token"

func newRequest(t *testing.T, token string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/webhook/payment", bytes.NewBuffer(body))
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	return req
}

func paid(amount int64) map[string]any {
	return map[string]any{
		"eventId":       "evt-1",
		"orderId":       "o1",
		"status":        EventPaid,
		"transactionId": "gw-123",
		"amount":        amount,
	}
}

var pendingOrder = &order.Order{
	ID:            "o1",
	UserID:        "uid-1",
	TotalAmount:   decimal.NewFromInt(10000),
	Status:        order.StatusPending,
	PaymentMethod: "khanbank",
}

type mocks struct {
	payments *MockSettler
	orders   *MockOrderReader
	store    *MockWebhookStore
	metrics  *metrics.PaymentMetrics
}

func newHandler() (*Handler, mocks) {
	m := mocks{
		payments: new(MockSettler),
		orders:   new(MockOrderReader),
		store:    new(MockWebhookStore),
		metrics:  metrics.NewPaymentMetrics(),
	}
	return NewWebhookHandler(m.payments, m.orders, m.store, validToken, m.metrics), m
}

func TestHandler_PaymentWebhookHandler(t *testing.T) {
	t.Run("Success_Paid", func(t *testing.T) {
		h, m := newHandler()
		w := httptest.NewRecorder()

		m.store.On("SaveWebhook", mock.Anything, mock.MatchedBy(func(ev payment.WebhookEvent) bool {
			return ev.Provider == Provider && ev.EventID == "evt-1" && ev.OrderID == "o1" && ev.EventType == EventPaid
		})).Return(int64(1), false, nil)
		m.orders.On("GetOrder", mock.Anything, "o1").Return(pendingOrder, nil)
		m.payments.On("ConfirmPayment", mock.Anything, "o1", mock.MatchedBy(func(d order.PaymentDetails) bool {
			return d.TransactionID == "gw-123" && d.Source == order.SourceWebhook && d.Method == "khanbank"
		})).Return(&payment.Entitlement{CourseIDs: []string{"c1"}}, nil)
		m.store.On("MarkWebhookProcessed", mock.Anything, int64(1)).Return(nil)

		h.PaymentWebhookHandler(w, newRequest(t, validToken, paid(10000)))

		assert.Equal(t, http.StatusOK, w.Code)
		m.payments.AssertExpectations(t)
		m.store.AssertExpectations(t)
		assert.Equal(t, uint64(1), m.metrics.WebhooksReceived.Load())
	})

	t.Run("Success_Failed", func(t *testing.T) {
		h, m := newHandler()
		w := httptest.NewRecorder()

		payload := paid(10000)
		payload["status"] = EventExpired

		m.store.On("SaveWebhook", mock.Anything, mock.Anything).Return(int64(2), false, nil)
		m.orders.On("GetOrder", mock.Anything, "o1").Return(pendingOrder, nil)
		m.payments.On("MarkFailed", mock.Anything, "o1", "gateway: EXPIRED").Return(payment.Status{Status: payment.StateFailed}, nil)
		m.store.On("MarkWebhookProcessed", mock.Anything, int64(2)).Return(nil)

		h.PaymentWebhookHandler(w, newRequest(t, validToken, payload))

		assert.Equal(t, http.StatusOK, w.Code)
		m.payments.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything)
		m.store.AssertExpectations(t)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		h, m := newHandler()

		for _, token := range []string{"", "wrong-token"} {
			w := httptest.NewRecorder()
			h.PaymentWebhookHandler(w, newRequest(t, token, paid(10000)))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		}
		m.store.AssertNotCalled(t, "SaveWebhook", mock.Anything, mock.Anything)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		h, _ := newHandler()
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/webhook/payment", bytes.NewBufferString("{not json"))
		req.Header.Set(TokenHeader, validToken)

		h.PaymentWebhookHandler(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("MissingIDs", func(t *testing.T) {
		h, _ := newHandler()
		w := httptest.NewRecorder()

		h.PaymentWebhookHandler(w, newRequest(t, validToken, map[string]any{"status": EventPaid}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Duplicate", func(t *testing.T) {
		h, m := newHandler()
		w := httptest.NewRecorder()

		m.store.On("SaveWebhook", mock.Anything, mock.Anything).Return(int64(0), true, nil)

		h.PaymentWebhookHandler(w, newRequest(t, validToken, paid(10000)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "duplicate")
		m.payments.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, uint64(1), m.metrics.WebhooksDuplicate.Load())
	})

	t.Run("AmountMismatch", func(t *testing.T) {
		h, m := newHandler()
		w := httptest.NewRecorder()

		m.store.On("SaveWebhook", mock.Anything, mock.Anything).Return(int64(3), false, nil)
		m.orders.On("GetOrder", mock.Anything, "o1").Return(pendingOrder, nil)
		m.store.On("MarkWebhookFailed", mock.Anything, int64(3), payment.ErrAmountMismatch.Error()).Return(nil)
		m.store.On("MarkWebhookProcessed", mock.Anything, int64(3)).Return(nil)

		h.PaymentWebhookHandler(w, newRequest(t, validToken, paid(9000)))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		m.payments.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything)
		m.store.AssertExpectations(t)
	})

	t.Run("OrderNotFound", func(t *testing.T) {
		h, m := newHandler()
		w := httptest.NewRecorder()

		m.store.On("SaveWebhook", mock.Anything, mock.Anything).Return(int64(4), false, nil)
		m.orders.On("GetOrder", mock.Anything, "o1").Return(nil, order.ErrOrderNotFound)
		m.store.On("MarkWebhookFailed", mock.Anything, int64(4), mock.Anything).Return(nil)

		h.PaymentWebhookHandler(w, newRequest(t, validToken, paid(10000)))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("AlreadySettledIsIgnored", func(t *testing.T) {
		h, m := newHandler()
		w := httptest.NewRecorder()

		m.store.On("SaveWebhook", mock.Anything, mock.Anything).Return(int64(5), false, nil)
		m.orders.On("GetOrder", mock.Anything, "o1").Return(pendingOrder, nil)
		m.payments.On("ConfirmPayment", mock.Anything, "o1", mock.Anything).Return(nil, payment.ErrIllegalTransition)
		m.store.On("MarkWebhookFailed", mock.Anything, int64(5), errIgnored.Error()).Return(nil)
		m.store.On("MarkWebhookProcessed", mock.Anything, int64(5)).Return(nil)

		h.PaymentWebhookHandler(w, newRequest(t, validToken, paid(10000)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ignored")
		m.store.AssertExpectations(t)
	})

	t.Run("ConfirmError", func(t *testing.T) {
		h, m := newHandler()
		w := httptest.NewRecorder()

		m.store.On("SaveWebhook", mock.Anything, mock.Anything).Return(int64(6), false, nil)
		m.orders.On("GetOrder", mock.Anything, "o1").Return(pendingOrder, nil)
		m.payments.On("ConfirmPayment", mock.Anything, "o1", mock.Anything).Return(nil, errors.New("db down"))
		m.store.On("MarkWebhookFailed", mock.Anything, int64(6), "failed to confirm payment").Return(nil)

		h.PaymentWebhookHandler(w, newRequest(t, validToken, paid(10000)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		m.store.AssertExpectations(t)
		m.store.AssertNotCalled(t, "MarkWebhookProcessed", mock.Anything, mock.Anything)
		assert.Equal(t, uint64(1), m.metrics.WebhooksFailed.Load())
	})

	t.Run("FailedForUnknownOrder", func(t *testing.T) {
		h, m := newHandler()
		w := httptest.NewRecorder()

		payload := paid(10000)
		payload["status"] = EventFailed

		m.store.On("SaveWebhook", mock.Anything, mock.Anything).Return(int64(8), false, nil)
		m.orders.On("GetOrder", mock.Anything, "o1").Return(nil, order.ErrOrderNotFound)
		m.store.On("MarkWebhookFailed", mock.Anything, int64(8), order.ErrOrderNotFound.Error()).Return(nil)

		h.PaymentWebhookHandler(w, newRequest(t, validToken, payload))

		assert.Equal(t, http.StatusNotFound, w.Code)
		m.payments.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
		m.store.AssertNotCalled(t, "MarkWebhookProcessed", mock.Anything, mock.Anything)
	})

	t.Run("SaveError", func(t *testing.T) {
		h, m := newHandler()
		w := httptest.NewRecorder()

		m.store.On("SaveWebhook", mock.Anything, mock.Anything).Return(int64(0), false, errors.New("db down"))

		h.PaymentWebhookHandler(w, newRequest(t, validToken, paid(10000)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		h, m := newHandler()
		w := httptest.NewRecorder()

		payload := paid(10000)
		payload["status"] = "PENDING"

		m.store.On("SaveWebhook", mock.Anything, mock.Anything).Return(int64(7), false, nil)
		m.store.On("MarkWebhookProcessed", mock.Anything, int64(7)).Return(nil)

		h.PaymentWebhookHandler(w, newRequest(t, validToken, payload))

		assert.Equal(t, http.StatusOK, w.Code)
		m.payments.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandler_RedeliveryAfterFailure(t *testing.T) {
	t.Run("RetryConfirms", func(t *testing.T) {
		payments := new(MockSettler)
		orders := new(MockOrderReader)
		store := newMemoryStore()
		h := NewWebhookHandler(payments, orders, store, validToken, nil)

		orders.On("GetOrder", mock.Anything, "o1").Return(pendingOrder, nil)
		payments.On("ConfirmPayment", mock.Anything, "o1", mock.Anything).Return(nil, errors.New("db down")).Once()
		payments.On("ConfirmPayment", mock.Anything, "o1", mock.Anything).Return(&payment.Entitlement{CourseIDs: []string{"c1"}}, nil).Once()

		first := httptest.NewRecorder()
		h.PaymentWebhookHandler(first, newRequest(t, validToken, paid(10000)))
		assert.Equal(t, http.StatusInternalServerError, first.Code)
		assert.Equal(t, "failed to confirm payment", store.rows[Provider+"/evt-1"].failure)

		second := httptest.NewRecorder()
		h.PaymentWebhookHandler(second, newRequest(t, validToken, paid(10000)))
		assert.Equal(t, http.StatusOK, second.Code)
		assert.JSONEq(t, `{"status":"ok"}`, second.Body.String())

		third := httptest.NewRecorder()
		h.PaymentWebhookHandler(third, newRequest(t, validToken, paid(10000)))
		assert.Equal(t, http.StatusOK, third.Code)
		assert.JSONEq(t, `{"status":"duplicate"}`, third.Body.String())

		payments.AssertNumberOfCalls(t, "ConfirmPayment", 2)
	})

	t.Run("IgnoredStaysClosed", func(t *testing.T) {
		payments := new(MockSettler)
		orders := new(MockOrderReader)
		store := newMemoryStore()
		h := NewWebhookHandler(payments, orders, store, validToken, nil)

		orders.On("GetOrder", mock.Anything, "o1").Return(pendingOrder, nil)
		payments.On("ConfirmPayment", mock.Anything, "o1", mock.Anything).Return(nil, payment.ErrOrderNotPayable)

		for _, want := range []string{`{"status":"ignored"}`, `{"status":"duplicate"}`} {
			w := httptest.NewRecorder()
			h.PaymentWebhookHandler(w, newRequest(t, validToken, paid(10000)))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, want, w.Body.String())
		}
		payments.AssertNumberOfCalls(t, "ConfirmPayment", 1)
		assert.Equal(t, errIgnored.Error(), store.rows[Provider+"/evt-1"].failure)
	})
}

// memoryStore keeps one row per event id and, like the SQL upsert, hands an
// unprocessed row back to a redelivery.
type memoryStore struct {
	nextID int64
	rows   map[string]*memoryRow
}

type memoryRow struct {
	id        int64
	processed bool
	failure   string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: make(map[string]*memoryRow)}
}

func (s *memoryStore) SaveWebhook(_ context.Context, ev payment.WebhookEvent) (int64, bool, error) {
	key := ev.Provider + "/" + ev.EventID
	if row, ok := s.rows[key]; ok {
		if row.processed {
			return 0, true, nil
		}
		row.failure = ""
		return row.id, false, nil
	}
	s.nextID++
	s.rows[key] = &memoryRow{id: s.nextID}
	return s.nextID, false, nil
}

func (s *memoryStore) row(id int64) *memoryRow {
	for _, r := range s.rows {
		if r.id == id {
			return r
		}
	}
	return nil
}

func (s *memoryStore) MarkWebhookProcessed(_ context.Context, id int64) error {
	if r := s.row(id); r != nil {
		r.processed = true
	}
	return nil
}

func (s *memoryStore) MarkWebhookFailed(_ context.Context, id int64, reason string) error {
	if r := s.row(id); r != nil {
		r.failure = reason
	}
	return nil
}

// --- Mocks ---

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) ConfirmPayment(ctx context.Context, orderID string, details order.PaymentDetails) (*payment.Entitlement, error) {
	args := m.Called(ctx, orderID, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Entitlement), args.Error(1)
}

func (m *MockSettler) MarkFailed(ctx context.Context, orderID, reason string) (payment.Status, error) {
	args := m.Called(ctx, orderID, reason)
	return args.Get(0).(payment.Status), args.Error(1)
}

type MockOrderReader struct {
	mock.Mock
}

func (m *MockOrderReader) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

type MockWebhookStore struct {
	mock.Mock
}

func (m *MockWebhookStore) SaveWebhook(ctx context.Context, ev payment.WebhookEvent) (int64, bool, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockWebhookStore) MarkWebhookProcessed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockWebhookStore) MarkWebhookFailed(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}
