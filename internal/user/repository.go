package user

import (
	"context"
	"database/sql"
	"errors"
	"marketingclass-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	Upsert(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// Upsert creates the user on first sight and refreshes profile fields.
// purchased_courses is never written here.
func (r *repository) Upsert(ctx context.Context, u User) (User, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Upsert"),
	)

	query := `
		INSERT INTO users (id, email, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), users.display_name),
			updated_at = NOW()
		RETURNING id, email, display_name, purchased_courses, created_at, updated_at
	`

	var out User
	err := r.db.QueryRowContext(ctx, query, u.ID, u.Email, u.DisplayName).Scan(
		&out.ID, &out.Email, &out.DisplayName, pq.Array(&out.PurchasedCourses), &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		log.Error("db: failed to upsert user", zap.String("user_id", u.ID), zap.Error(err))
		return User{}, err
	}
	return out, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (User, error) {
	query := `
		SELECT id, email, display_name, purchased_courses, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var u User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.DisplayName, pq.Array(&u.PurchasedCourses), &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to get user", zap.String("user_id", id), zap.Error(err))
		return User{}, err
	}
	return u, nil
}
