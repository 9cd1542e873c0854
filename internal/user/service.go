package user

import (
	"context"
	"errors"

	"marketingclass-be/internal/logger"
	"marketingclass-be/internal/utils"

	"go.uber.org/zap"
)

type Service interface {
	EnsureUser(ctx context.Context, id utils.Identity) (User, error)
	GetUser(ctx context.Context, userID string) (User, error)
	PurchasedCourses(ctx context.Context, userID string) ([]string, error)
	HasAccess(ctx context.Context, userID, courseID string) (bool, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) EnsureUser(ctx context.Context, id utils.Identity) (User, error) {
	if !id.Authenticated() {
		return User{}, ErrUserNotAuthenticated
	}

	u, err := s.repo.Upsert(ctx, User{ID: id.UserID, Email: id.Email, DisplayName: id.DisplayName})
	if err != nil {
		logger.FromCtx(ctx).Error("failed to ensure user",
			zap.String("layer", "service"),
			zap.String("method", "EnsureUser"),
			zap.Error(err),
		)
		return User{}, err
	}
	return u, nil
}

func (s *service) GetUser(ctx context.Context, userID string) (User, error) {
	return s.repo.GetByID(ctx, userID)
}

// PurchasedCourses reports an unknown user as owning nothing.
func (s *service) PurchasedCourses(ctx context.Context, userID string) ([]string, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if u.PurchasedCourses == nil {
		return []string{}, nil
	}
	return u.PurchasedCourses, nil
}

func (s *service) HasAccess(ctx context.Context, userID, courseID string) (bool, error) {
	courses, err := s.PurchasedCourses(ctx, userID)
	if err != nil {
		return false, err
	}
	return User{PurchasedCourses: courses}.Owns(courseID), nil
}
