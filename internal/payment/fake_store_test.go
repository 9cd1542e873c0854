package payment

import (
	"context"
	"sync"

	"marketingclass-be/internal/order"
)

// fakeStore is an in-memory Repository and OrderReader with the same
// version rules as the SQL repository.
type fakeStore struct {
	mu            sync.Mutex
	statuses      map[string]Status
	verifications map[string][]Verification
	orders        map[string]*order.Order
	purchased     map[string][]string

	confirmErr  error
	beforeWrite func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		statuses:      make(map[string]Status),
		verifications: make(map[string][]Verification),
		orders:        make(map[string]*order.Order),
		purchased:     make(map[string][]string),
	}
}

func (f *fakeStore) addOrder(o *order.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = o
}

func (f *fakeStore) orderSnapshot(id string) order.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.orders[id]
}

func (f *fakeStore) courses(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.purchased[userID]...)
}

func (f *fakeStore) hook() {
	if fn := f.beforeWrite; fn != nil {
		f.beforeWrite = nil
		fn()
	}
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) GetStatus(_ context.Context, orderID string) (*Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.statuses[orderID]
	if !ok {
		return nil, ErrStatusNotFound
	}
	return &st, nil
}

func (f *fakeStore) casLocked(st *Status, expected int64) error {
	if f.statuses[st.OrderID].Version != expected {
		return ErrConcurrentUpdate
	}
	return nil
}

func (f *fakeStore) commitLocked(st *Status, expected int64) {
	st.Version = expected + 1
	f.statuses[st.OrderID] = *st
}

func (f *fakeStore) SaveStatus(_ context.Context, st *Status, expected int64) error {
	f.hook()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.casLocked(st, expected); err != nil {
		return err
	}
	f.commitLocked(st, expected)
	return nil
}

func (f *fakeStore) AppendVerification(_ context.Context, v *Verification, st *Status, expected int64) error {
	f.hook()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.casLocked(st, expected); err != nil {
		return err
	}
	f.verifications[v.OrderID] = append(f.verifications[v.OrderID], *v)
	f.commitLocked(st, expected)
	return nil
}

func (f *fakeStore) ListVerifications(_ context.Context, orderID string) ([]Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Verification{}, f.verifications[orderID]...), nil
}

func (f *fakeStore) ConfirmPayment(_ context.Context, s Settlement) (*Entitlement, error) {
	f.hook()
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.casLocked(s.Status, s.ExpectedVersion); err != nil {
		return nil, err
	}
	o := f.orders[s.Order.ID]
	if o == nil || o.Status != order.StatusPending {
		return nil, ErrOrderNotPayable
	}
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}

	f.commitLocked(s.Status, s.ExpectedVersion)
	o.Status = order.StatusCompleted
	details := s.Details
	o.PaymentDetails = &details

	owned := make(map[string]bool)
	for _, c := range f.purchased[o.UserID] {
		owned[c] = true
	}
	for _, c := range o.CourseIDs() {
		if !owned[c] {
			f.purchased[o.UserID] = append(f.purchased[o.UserID], c)
			owned[c] = true
		}
	}
	if s.Verification != nil {
		f.verifications[o.ID] = append(f.verifications[o.ID], *s.Verification)
	}

	return &Entitlement{UserID: o.UserID, OrderID: o.ID, CourseIDs: o.CourseIDs(), GrantedAt: s.GrantedAt}, nil
}

func (f *fakeStore) CancelPayment(_ context.Context, st *Status, expected int64) error {
	f.hook()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.casLocked(st, expected); err != nil {
		return err
	}
	o := f.orders[st.OrderID]
	if o == nil || o.Status != order.StatusPending {
		return order.ErrOrderNotPending
	}
	f.commitLocked(st, expected)
	o.Status = order.StatusCancelled
	return nil
}

func (f *fakeStore) SaveWebhook(context.Context, WebhookEvent) (int64, bool, error) {
	return 1, false, nil
}

func (f *fakeStore) MarkWebhookProcessed(context.Context, int64) error { return nil }

func (f *fakeStore) MarkWebhookFailed(context.Context, int64, string) error { return nil }
