package transport

import (
	"context"

	"marketingclass-be/internal/order"
	"marketingclass-be/internal/payment"
	"marketingclass-be/internal/user"
	"marketingclass-be/internal/utils"

	"github.com/stretchr/testify/mock"
)

type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) CreateOrder(ctx context.Context, id utils.Identity, input order.CreateOrderInput) (*order.Order, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) GetOrderForUser(ctx context.Context, orderID string, id utils.Identity) (*order.Order, error) {
	args := m.Called(ctx, orderID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) ListUserOrders(ctx context.Context, userID string) ([]*order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) CheckPaymentStatus(ctx context.Context, orderID string) (payment.Status, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(payment.Status), args.Error(1)
}

func (m *MockPayments) WatchPaymentStatus(ctx context.Context, orderID string, fn func(payment.Status)) (func(), error) {
	args := m.Called(ctx, orderID, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

func (m *MockPayments) UpdatePaymentStatus(ctx context.Context, orderID string, upd payment.StatusUpdate, actor utils.Identity) (payment.Status, error) {
	args := m.Called(ctx, orderID, upd, actor)
	return args.Get(0).(payment.Status), args.Error(1)
}

func (m *MockPayments) AddPaymentVerification(ctx context.Context, orderID string, in payment.VerificationInput, actor utils.Identity) (payment.Status, error) {
	args := m.Called(ctx, orderID, in, actor)
	return args.Get(0).(payment.Status), args.Error(1)
}

func (m *MockPayments) GetPaymentVerifications(ctx context.Context, orderID string, actor utils.Identity) ([]payment.Verification, error) {
	args := m.Called(ctx, orderID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment.Verification), args.Error(1)
}

func (m *MockPayments) SimulatePaymentVerification(ctx context.Context, orderID, method string) (payment.Status, error) {
	args := m.Called(ctx, orderID, method)
	return args.Get(0).(payment.Status), args.Error(1)
}

func (m *MockPayments) ConfirmPayment(ctx context.Context, orderID string, details order.PaymentDetails) (*payment.Entitlement, error) {
	args := m.Called(ctx, orderID, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Entitlement), args.Error(1)
}

func (m *MockPayments) CancelOrder(ctx context.Context, orderID string, actor utils.Identity) (payment.Status, error) {
	args := m.Called(ctx, orderID, actor)
	return args.Get(0).(payment.Status), args.Error(1)
}

func (m *MockPayments) MarkFailed(ctx context.Context, orderID, reason string) (payment.Status, error) {
	args := m.Called(ctx, orderID, reason)
	return args.Get(0).(payment.Status), args.Error(1)
}

func (m *MockPayments) GetInstructions(ctx context.Context, orderID string, actor utils.Identity) ([]string, error) {
	args := m.Called(ctx, orderID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) EnsureUser(ctx context.Context, id utils.Identity) (user.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(user.User), args.Error(1)
}

func (m *MockUsers) GetUser(ctx context.Context, userID string) (user.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(user.User), args.Error(1)
}

func (m *MockUsers) PurchasedCourses(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockUsers) HasAccess(ctx context.Context, userID, courseID string) (bool, error) {
	args := m.Called(ctx, userID, courseID)
	return args.Bool(0), args.Error(1)
}
