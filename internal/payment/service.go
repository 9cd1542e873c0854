package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"marketingclass-be/internal/events"
	"marketingclass-be/internal/logger"
	"marketingclass-be/internal/metrics"
	"marketingclass-be/internal/order"
	"marketingclass-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	CheckPaymentStatus(ctx context.Context, orderID string) (Status, error)
	WatchPaymentStatus(ctx context.Context, orderID string, fn func(Status)) (func(), error)
	UpdatePaymentStatus(ctx context.Context, orderID string, upd StatusUpdate, actor utils.Identity) (Status, error)
	AddPaymentVerification(ctx context.Context, orderID string, in VerificationInput, actor utils.Identity) (Status, error)
	GetPaymentVerifications(ctx context.Context, orderID string, actor utils.Identity) ([]Verification, error)
	SimulatePaymentVerification(ctx context.Context, orderID, method string) (Status, error)
	ConfirmPayment(ctx context.Context, orderID string, details order.PaymentDetails) (*Entitlement, error)
	CancelOrder(ctx context.Context, orderID string, actor utils.Identity) (Status, error)
	MarkFailed(ctx context.Context, orderID, reason string) (Status, error)
	GetInstructions(ctx context.Context, orderID string, actor utils.Identity) ([]string, error)
}

type OrderReader interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
}

type instructionSource interface {
	GetInstructions(method string) []string
}

type service struct {
	repo    Repository
	orders  OrderReader
	gateway Gateway
	bus     events.Bus[Status]
	metrics *metrics.PaymentMetrics
	now     func() time.Time
}

func NewService(repo Repository, orders OrderReader, gateway Gateway, bus events.Bus[Status], m *metrics.PaymentMetrics) Service {
	if m == nil {
		m = metrics.NewPaymentMetrics()
	}
	return &service{
		repo:    repo,
		orders:  orders,
		gateway: gateway,
		bus:     bus,
		metrics: m,
		now:     time.Now,
	}
}

func (s *service) log(ctx context.Context, method, orderID string) *zap.Logger {
	return logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", method),
		zap.String("order_id", orderID),
		zap.Bool("internal", utils.IsInternalRequest(ctx)),
	)
}

// loadStatus returns the stored record or the unpersisted default.
func (s *service) loadStatus(ctx context.Context, orderID string) (Status, error) {
	st, err := s.repo.GetStatus(ctx, orderID)
	if errors.Is(err, ErrStatusNotFound) {
		return DefaultStatus(orderID), nil
	}
	if err != nil {
		return Status{}, err
	}
	return *st, nil
}

func (s *service) loadOrder(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) publish(st Status) {
	if s.bus != nil {
		s.bus.Publish(st.OrderID, st)
	}
}

func (s *service) observe(err error) {
	switch {
	case errors.Is(err, ErrConcurrentUpdate):
		s.metrics.ConcurrentConflict.Inc()
	case errors.Is(err, ErrIllegalTransition):
		s.metrics.IllegalTransitions.Inc()
	}
}

func (s *service) transition(from, to State) error {
	err := checkTransition(from, to)
	s.observe(err)
	return err
}

// save compare-and-sets next over cur and publishes the result.
func (s *service) save(ctx context.Context, cur Status, next Status) (Status, error) {
	if err := s.repo.SaveStatus(ctx, &next, cur.Version); err != nil {
		s.observe(err)
		return Status{}, err
	}
	s.metrics.StatusUpdates.Inc()
	s.publish(next)
	return next, nil
}

func authorize(o *order.Order, actor utils.Identity) error {
	if !actor.Authenticated() {
		return ErrUnauthorized
	}
	if !actor.IsAdmin() && !o.OwnedBy(actor.UserID) {
		return ErrForbidden
	}
	return nil
}

func (s *service) CheckPaymentStatus(ctx context.Context, orderID string) (Status, error) {
	s.metrics.StatusChecks.Inc()
	return s.loadStatus(ctx, orderID)
}

// WatchPaymentStatus delivers the current value, then every change, to fn.
// Deliveries older than the last one seen are dropped.
func (s *service) WatchPaymentStatus(ctx context.Context, orderID string, fn func(Status)) (func(), error) {
	if s.bus == nil {
		return nil, errors.New("payment status watch is not configured")
	}

	var (
		mu   sync.Mutex
		last int64 = -1
	)
	deliver := func(st Status) {
		mu.Lock()
		defer mu.Unlock()
		if st.Version < last {
			return
		}
		last = st.Version
		fn(st)
	}

	unsubscribe := s.bus.Subscribe(orderID, deliver)

	st, err := s.loadStatus(ctx, orderID)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	deliver(st)

	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}, nil
}

func defaultMessage(st State) string {
	switch st {
	case StateProcessing:
		return MsgProcessing
	case StateSuccess:
		return MsgSuccess
	case StateFailed:
		return MsgFailed
	case StateVerified:
		return MsgVerified
	case StateCancelled:
		return MsgCancelled
	}
	return MsgPending
}

func (s *service) UpdatePaymentStatus(ctx context.Context, orderID string, upd StatusUpdate, actor utils.Identity) (Status, error) {
	log := s.log(ctx, "UpdatePaymentStatus", orderID).With(zap.String("target", string(upd.Status)))

	if !actor.Authenticated() {
		return Status{}, ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return Status{}, ErrForbidden
	}
	if !upd.Status.Valid() {
		return Status{}, fmt.Errorf("%w: %q", ErrInvalidStatus, upd.Status)
	}
	if upd.Status == StateVerified {
		return Status{}, ErrVerificationRequired
	}

	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return Status{}, err
	}
	cur, err := s.loadStatus(ctx, orderID)
	if err != nil {
		return Status{}, err
	}
	if err := s.transition(cur.Status, upd.Status); err != nil {
		log.Warn("transition rejected", zap.String("from", string(cur.Status)))
		return Status{}, err
	}

	switch upd.Status {
	case StateSuccess:
		now := s.now().UTC()
		details := order.PaymentDetails{
			TransactionID: utils.PtrString(upd.TransactionID),
			Method:        o.PaymentMethod,
			PaidAt:        now,
			Amount:        o.TotalAmount,
			Source:        order.SourceAdmin,
		}
		next, _, err := s.settle(ctx, o, cur, details, nil)
		return next, err
	case StateCancelled:
		return s.cancel(ctx, o, cur)
	}

	next := cur
	next.Status = upd.Status
	next.Message = upd.Message
	if next.Message == "" {
		next.Message = defaultMessage(upd.Status)
	}
	if upd.TransactionID != nil {
		next.TransactionID = upd.TransactionID
	}
	next.Error = upd.Error
	next.UpdatedAt = s.now().UTC()

	out, err := s.save(ctx, cur, next)
	if err != nil {
		log.Error("failed to update payment status", zap.Error(err))
		return Status{}, err
	}

	log.Info("payment status updated", zap.String("from", string(cur.Status)))
	return out, nil
}

// settle commits the paid outcome. With v set this is an admin approval and
// the result is verified instead of success.
func (s *service) settle(ctx context.Context, o *order.Order, cur Status, details order.PaymentDetails, v *Verification) (Status, *Entitlement, error) {
	log := s.log(ctx, "settle", o.ID)

	if !o.IsPending() {
		return Status{}, nil, ErrOrderNotPayable
	}

	now := s.now().UTC()
	if details.PaidAt.IsZero() {
		details.PaidAt = now
	}
	if details.Method == "" {
		details.Method = o.PaymentMethod
	}
	if details.Amount.IsZero() {
		details.Amount = o.TotalAmount
	}
	if details.Source == "" {
		details.Source = order.SourceGateway
	}
	if details.ReceiptNumber == "" {
		details.ReceiptNumber = utils.GenerateReceiptNumber(now)
	}

	next := cur
	next.Status = StateSuccess
	next.Message = MsgSuccess
	next.UpdatedAt = now
	next.Error = nil
	paidAt := details.PaidAt
	next.PaidAt = &paidAt
	if details.TransactionID != "" {
		next.TransactionID = utils.StrPtr(details.TransactionID)
	}
	if v != nil {
		next.Status = StateVerified
		next.Message = MsgVerified
		next.VerificationCount++
		next.VerifiedAt = &now
		next.VerifiedBy = utils.StrPtr(v.UserID)
	}

	ent, err := s.repo.ConfirmPayment(ctx, Settlement{
		Status:          &next,
		ExpectedVersion: cur.Version,
		Order:           o,
		Details:         details,
		GrantedAt:       now,
		Verification:    v,
	})
	if err != nil {
		s.observe(err)
		log.Error("failed to confirm payment", zap.Error(err))
		return Status{}, nil, err
	}

	s.metrics.Confirmations.Inc()
	s.metrics.StatusUpdates.Inc()
	s.publish(next)

	log.Info("payment confirmed",
		zap.String("status", string(next.Status)),
		zap.Strings("course_ids", ent.CourseIDs),
		zap.String("source", details.Source),
	)
	return next, ent, nil
}

func (s *service) ConfirmPayment(ctx context.Context, orderID string, details order.PaymentDetails) (*Entitlement, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	cur, err := s.loadStatus(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(cur.Status, StateSuccess); err != nil {
		return nil, err
	}

	_, ent, err := s.settle(ctx, o, cur, details, nil)
	return ent, err
}

func (s *service) AddPaymentVerification(ctx context.Context, orderID string, in VerificationInput, actor utils.Identity) (Status, error) {
	log := s.log(ctx, "AddPaymentVerification", orderID).With(zap.Bool("is_admin", actor.IsAdmin()))

	if !actor.Authenticated() {
		return Status{}, ErrUnauthorized
	}
	if in.Amount.IsNegative() {
		return Status{}, ErrInvalidAmount
	}

	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return Status{}, err
	}
	if err := authorize(o, actor); err != nil {
		return Status{}, err
	}

	cur, err := s.loadStatus(ctx, orderID)
	if err != nil {
		return Status{}, err
	}
	if cur.Status.IsTerminal() {
		s.observe(ErrIllegalTransition)
		return Status{}, fmt.Errorf("%w: %s order takes no verification", ErrIllegalTransition, cur.Status)
	}

	method := strings.ToLower(strings.TrimSpace(in.Method))
	if method == "" {
		method = o.PaymentMethod
	}
	amount := in.Amount
	if amount.IsZero() {
		amount = o.TotalAmount
	}

	now := s.now().UTC()
	v := &Verification{
		ID:            uuid.NewString(),
		OrderID:       orderID,
		UserID:        actor.UserID,
		UserName:      utils.OptionalString(actor.DisplayName),
		IsAdmin:       actor.IsAdmin(),
		Method:        method,
		TransactionID: utils.OptionalString(in.TransactionID),
		Amount:        amount,
		Notes:         utils.OptionalString(in.Notes),
		CreatedAt:     now,
		Status:        VerificationSubmitted,
	}

	if v.IsAdmin {
		v.Status = VerificationApproved
		if err := s.transition(cur.Status, StateVerified); err != nil {
			return Status{}, err
		}

		if o.IsPending() {
			details := order.PaymentDetails{
				TransactionID: utils.PtrString(v.TransactionID),
				Method:        method,
				Amount:        amount,
				Source:        order.SourceAdmin,
			}
			if details.TransactionID == "" {
				details.TransactionID = utils.PtrString(cur.TransactionID)
			}
			next, _, err := s.settle(ctx, o, cur, details, v)
			if err != nil {
				return Status{}, err
			}
			s.metrics.Verifications.Inc()
			return next, nil
		}
	}

	next := cur
	next.VerificationCount++
	next.UpdatedAt = now
	if v.IsAdmin {
		next.Status = StateVerified
		next.Message = MsgVerified
		next.VerifiedAt = &now
		next.VerifiedBy = utils.StrPtr(actor.UserID)
	}

	if err := s.repo.AppendVerification(ctx, v, &next, cur.Version); err != nil {
		s.observe(err)
		log.Error("failed to append verification", zap.Error(err))
		return Status{}, err
	}

	s.metrics.Verifications.Inc()
	s.metrics.StatusUpdates.Inc()
	s.publish(next)

	log.Info("verification recorded",
		zap.String("verification_id", v.ID),
		zap.Int("verification_count", next.VerificationCount),
	)
	return next, nil
}

func (s *service) GetPaymentVerifications(ctx context.Context, orderID string, actor utils.Identity) ([]Verification, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(o, actor); err != nil {
		return nil, err
	}
	return s.repo.ListVerifications(ctx, orderID)
}

func (s *service) SimulatePaymentVerification(ctx context.Context, orderID, method string) (Status, error) {
	log := s.log(ctx, "SimulatePaymentVerification", orderID)
	timer := metrics.StartTimer()

	// 1. Order
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return Status{}, err
	}

	// 2. Current status
	cur, err := s.loadStatus(ctx, orderID)
	if err != nil {
		return Status{}, err
	}

	// 3. Only open payments can be charged
	if !cur.Status.IsOpen() {
		s.observe(ErrIllegalTransition)
		return Status{}, fmt.Errorf("%w: cannot charge a %s payment", ErrIllegalTransition, cur.Status)
	}
	if !o.IsPending() {
		return Status{}, ErrOrderNotPayable
	}

	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = o.PaymentMethod
	}
	if method == "" {
		return Status{}, ErrInvalidMethod
	}
	log = log.With(zap.String("payment_method", method))

	// 4. Charge
	s.metrics.SimulationsTotal.Inc()
	res, err := s.gateway.Charge(ctx, ChargeRequest{OrderID: o.ID, Method: method, Amount: o.TotalAmount})
	if err != nil {
		log.Error("gateway charge failed", zap.Error(err))
		return Status{}, err
	}

	// 5. Persist the outcome
	var next Status
	switch res.Status {
	case StateSuccess:
		s.metrics.SimulationSuccess.Inc()
		next, _, err = s.settle(ctx, o, cur, order.PaymentDetails{
			TransactionID: res.TransactionID,
			Method:        method,
			PaidAt:        res.PaidAt,
			Amount:        o.TotalAmount,
			Source:        order.SourceGateway,
		}, nil)
	case StateFailed:
		s.metrics.SimulationFailed.Inc()
		failed := cur
		failed.Status = StateFailed
		failed.Message = res.Message
		failed.Error = utils.StrPtr(res.Message)
		failed.UpdatedAt = s.now().UTC()
		next, err = s.save(ctx, cur, failed)
	default:
		s.metrics.SimulationPending.Inc()
		waiting := cur
		waiting.Status = res.Status
		waiting.Message = res.Message
		waiting.Error = nil
		waiting.UpdatedAt = s.now().UTC()
		next, err = s.save(ctx, cur, waiting)
	}
	if err != nil {
		log.Error("failed to persist charge outcome", zap.Error(err))
		return Status{}, err
	}

	log.Info("payment simulated",
		zap.String("status", string(next.Status)),
		zap.Float64("duration_ms", timer.Milliseconds()),
	)
	return next, nil
}

func (s *service) cancel(ctx context.Context, o *order.Order, cur Status) (Status, error) {
	if !o.IsPending() {
		return Status{}, order.ErrOrderNotPending
	}
	if err := s.transition(cur.Status, StateCancelled); err != nil {
		return Status{}, err
	}

	next := cur
	next.Status = StateCancelled
	next.Message = MsgCancelled
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.CancelPayment(ctx, &next, cur.Version); err != nil {
		s.observe(err)
		return Status{}, err
	}

	s.metrics.Cancellations.Inc()
	s.metrics.StatusUpdates.Inc()
	s.publish(next)
	return next, nil
}

func (s *service) CancelOrder(ctx context.Context, orderID string, actor utils.Identity) (Status, error) {
	log := s.log(ctx, "CancelOrder", orderID)

	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return Status{}, err
	}
	if err := authorize(o, actor); err != nil {
		return Status{}, err
	}
	cur, err := s.loadStatus(ctx, orderID)
	if err != nil {
		return Status{}, err
	}

	next, err := s.cancel(ctx, o, cur)
	if err != nil {
		log.Warn("cancel rejected", zap.Error(err))
		return Status{}, err
	}

	log.Info("order cancelled")
	return next, nil
}

func (s *service) MarkFailed(ctx context.Context, orderID, reason string) (Status, error) {
	cur, err := s.loadStatus(ctx, orderID)
	if err != nil {
		return Status{}, err
	}
	if err := s.transition(cur.Status, StateFailed); err != nil {
		return Status{}, err
	}

	if reason == "" {
		reason = MsgFailed
	}
	next := cur
	next.Status = StateFailed
	next.Message = reason
	next.Error = utils.StrPtr(reason)
	next.UpdatedAt = s.now().UTC()

	return s.save(ctx, cur, next)
}

func (s *service) GetInstructions(ctx context.Context, orderID string, actor utils.Identity) ([]string, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(o, actor); err != nil {
		return nil, err
	}

	src, ok := s.gateway.(instructionSource)
	if !ok {
		return []string{}, nil
	}
	return InjectVariables(src.GetInstructions(o.PaymentMethod), InstructionVars{
		"order_id": o.ID,
		"amount":   o.TotalAmount.StringFixed(0),
	}), nil
}
