package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"marketingclass-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const selectOrder = `
	SELECT id, user_id, items, total_amount, status, payment_method,
		referral_code, payment_details, created_at, updated_at
	FROM orders
`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*Order, error) {
	var (
		o       Order
		items   []byte
		details []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &items, &o.TotalAmount, &o.Status, &o.PaymentMethod,
		&o.ReferralCode, &details, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if len(details) > 0 {
		var pd PaymentDetails
		if err := json.Unmarshal(details, &pd); err != nil {
			return nil, fmt.Errorf("decode payment details: %w", err)
		}
		o.PaymentDetails = &pd
	}
	return &o, nil
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Create"),
		zap.String("order_id", o.ID),
	)

	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, items, total_amount, status,
			payment_method, referral_code, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		o.ID,
		o.UserID,
		items,
		o.TotalAmount,
		o.Status,
		o.PaymentMethod,
		o.ReferralCode,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		log.Error("db: failed to insert order", zap.Error(err))
		return err
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, selectOrder+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to get order",
			zap.String("order_id", id),
			zap.Error(err),
		)
		return nil, err
	}
	return o, nil
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx, selectOrder+` WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
