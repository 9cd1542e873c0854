package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketingclass-be/internal/cart"
	"marketingclass-be/internal/course"
	"marketingclass-be/internal/logger"
	"marketingclass-be/internal/user"
	"marketingclass-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	CreateOrder(ctx context.Context, id utils.Identity, input CreateOrderInput) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetOrderForUser(ctx context.Context, orderID string, id utils.Identity) (*Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]*Order, error)
}

// CourseFinder is the slice of the catalog checkout needs.
type CourseFinder interface {
	FindByIDs(ctx context.Context, ids []string) ([]course.Course, error)
}

// UserEnsurer registers the buyer on first order.
type UserEnsurer interface {
	EnsureUser(ctx context.Context, id utils.Identity) (user.User, error)
}

type service struct {
	repo    Repository
	courses CourseFinder
	users   UserEnsurer
	now     func() time.Time
}

func NewService(repo Repository, courses CourseFinder, users UserEnsurer) Service {
	return &service{
		repo:    repo,
		courses: courses,
		users:   users,
		now:     time.Now,
	}
}

func (s *service) CreateOrder(ctx context.Context, id utils.Identity, input CreateOrderInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
		zap.Int("item_count", len(input.CourseIDs)),
	)

	if !id.Authenticated() {
		return nil, ErrUnauthorized
	}

	courseIDs := utils.UniqueStrings(input.CourseIDs)
	if len(courseIDs) == 0 {
		log.Warn("empty cart")
		return nil, ErrEmptyCart
	}

	method := strings.ToLower(strings.TrimSpace(input.PaymentMethod))
	if method == "" {
		return nil, ErrInvalidPaymentMethod
	}

	// 1. Snapshot the catalog
	found, err := s.courses.FindByIDs(ctx, courseIDs)
	if err != nil {
		log.Error("failed to load courses", zap.Error(err))
		return nil, err
	}
	byID := make(map[string]course.Course, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	items := make([]cart.Item, 0, len(courseIDs))
	for _, cid := range courseIDs {
		c, ok := byID[cid]
		if !ok || !c.Published {
			log.Warn("course not available", zap.String("course_id", cid))
			return nil, fmt.Errorf("%w: %s", ErrUnknownCourse, cid)
		}
		items = append(items, c.CartItem())
	}

	// 2. Reject courses already owned
	buyer, err := s.users.EnsureUser(ctx, id)
	if err != nil {
		log.Error("failed to ensure user", zap.Error(err))
		return nil, err
	}
	for _, cid := range courseIDs {
		if buyer.Owns(cid) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyOwned, cid)
		}
	}

	c, err := cart.New(items...)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o := &Order{
		ID:            uuid.NewString(),
		UserID:        id.UserID,
		Items:         c.Items(),
		TotalAmount:   c.Total(),
		Status:        StatusPending,
		PaymentMethod: method,
		ReferralCode:  utils.OptionalString(input.ReferralCode),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	log = log.With(zap.String("order_id", o.ID), zap.String("total", o.TotalAmount.String()))

	if err := s.repo.Create(ctx, o); err != nil {
		log.Error("failed to create order", zap.Error(err))
		return nil, err
	}

	log.Info("order created")
	return o, nil
}

func (s *service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

func (s *service) GetOrderForUser(ctx context.Context, orderID string, id utils.Identity) (*Order, error) {
	if !id.Authenticated() {
		return nil, ErrUnauthorized
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !id.IsAdmin() && !o.OwnedBy(id.UserID) {
		logger.FromCtx(ctx).Warn("order access denied",
			zap.String("order_id", orderID),
			zap.String("owner_id", o.UserID),
		)
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID string) ([]*Order, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.repo.ListByUser(ctx, userID)
}
