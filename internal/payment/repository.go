package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"marketingclass-be/internal/logger"
	"marketingclass-be/internal/order"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// StatusStore reads and compare-and-sets payment status records.
type StatusStore interface {
	// GetStatus returns ErrStatusNotFound when the order has no record yet.
	GetStatus(ctx context.Context, orderID string) (*Status, error)
	// SaveStatus writes st only if the stored version equals expectedVersion
	// (0 for a record that does not exist yet) and sets st.Version on success.
	SaveStatus(ctx context.Context, st *Status, expectedVersion int64) error
}

type VerificationLog interface {
	AppendVerification(ctx context.Context, v *Verification, st *Status, expectedVersion int64) error
	ListVerifications(ctx context.Context, orderID string) ([]Verification, error)
}

type SettlementStore interface {
	ConfirmPayment(ctx context.Context, s Settlement) (*Entitlement, error)
	CancelPayment(ctx context.Context, st *Status, expectedVersion int64) error
}

type WebhookStore interface {
	SaveWebhook(ctx context.Context, ev WebhookEvent) (webhookID int64, isDuplicate bool, err error)
	MarkWebhookProcessed(ctx context.Context, webhookID int64) error
	MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error
}

type Repository interface {
	StatusStore
	VerificationLog
	SettlementStore
	WebhookStore
}

type repository struct {
	db            *sql.DB
	notifyChannel string
}

type Option func(*repository)

// WithNotifyChannel makes every status write NOTIFY channel inside its transaction.
func WithNotifyChannel(channel string) Option {
	return func(r *repository) {
		r.notifyChannel = channel
	}
}

func NewRepository(db *sql.DB, opts ...Option) Repository {
	r := &repository{db: db}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *repository) GetStatus(ctx context.Context, orderID string) (*Status, error) {
	const q = `
	SELECT order_id, status, message, updated_at, verification_count,
		paid_at, verified_at, verified_by, transaction_id, error, version
	FROM payment_status
	WHERE order_id = $1
	`

	var st Status
	err := r.db.QueryRowContext(ctx, q, orderID).Scan(
		&st.OrderID, &st.Status, &st.Message, &st.UpdatedAt, &st.VerificationCount,
		&st.PaidAt, &st.VerifiedAt, &st.VerifiedBy, &st.TransactionID, &st.Error, &st.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment status: %w", err)
	}
	return &st, nil
}

func (r *repository) SaveStatus(ctx context.Context, st *Status, expectedVersion int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := writeStatus(ctx, tx, st, expectedVersion); err != nil {
			return err
		}
		return r.notify(ctx, tx, st)
	})
}

const upsertStatus = `
	INSERT INTO payment_status (
		order_id, status, message, updated_at, verification_count,
		paid_at, verified_at, verified_by, transaction_id, error, version
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	ON CONFLICT (order_id) DO UPDATE SET
		status = EXCLUDED.status,
		message = EXCLUDED.message,
		updated_at = EXCLUDED.updated_at,
		verification_count = EXCLUDED.verification_count,
		paid_at = EXCLUDED.paid_at,
		verified_at = EXCLUDED.verified_at,
		verified_by = EXCLUDED.verified_by,
		transaction_id = EXCLUDED.transaction_id,
		error = EXCLUDED.error,
		version = EXCLUDED.version
	WHERE payment_status.version = $12
`

func writeStatus(ctx context.Context, tx *sql.Tx, st *Status, expectedVersion int64) error {
	next := expectedVersion + 1

	res, err := tx.ExecContext(ctx, upsertStatus,
		st.OrderID, st.Status, st.Message, st.UpdatedAt, st.VerificationCount,
		st.PaidAt, st.VerifiedAt, st.VerifiedBy, st.TransactionID, st.Error,
		next, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("write payment status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConcurrentUpdate
	}

	st.Version = next
	return nil
}

func (r *repository) notify(ctx context.Context, tx *sql.Tx, st *Status) error {
	if r.notifyChannel == "" {
		return nil
	}

	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, r.notifyChannel, string(payload))
	return err
}

const insertVerification = `
	INSERT INTO payment_verifications (
		id, order_id, user_id, user_name, is_admin, method,
		transaction_id, amount, notes, status, created_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`

func writeVerification(ctx context.Context, tx *sql.Tx, v *Verification) error {
	_, err := tx.ExecContext(ctx, insertVerification,
		v.ID, v.OrderID, v.UserID, v.UserName, v.IsAdmin, v.Method,
		v.TransactionID, v.Amount, v.Notes, v.Status, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

// AppendVerification stores v and the status carrying its counter bump in one transaction.
func (r *repository) AppendVerification(ctx context.Context, v *Verification, st *Status, expectedVersion int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := writeVerification(ctx, tx, v); err != nil {
			return err
		}
		if err := writeStatus(ctx, tx, st, expectedVersion); err != nil {
			return err
		}
		return r.notify(ctx, tx, st)
	})
}

func (r *repository) ListVerifications(ctx context.Context, orderID string) ([]Verification, error) {
	const q = `
	SELECT id, order_id, user_id, user_name, is_admin, method,
		transaction_id, amount, notes, status, created_at
	FROM payment_verifications
	WHERE order_id = $1
	ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	out := []Verification{}
	for rows.Next() {
		var v Verification
		if err := rows.Scan(
			&v.ID, &v.OrderID, &v.UserID, &v.UserName, &v.IsAdmin, &v.Method,
			&v.TransactionID, &v.Amount, &v.Notes, &v.Status, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ConfirmPayment settles an order: status CAS, order completion, course grant
// and optional verification entry commit together or not at all.
func (r *repository) ConfirmPayment(ctx context.Context, s Settlement) (*Entitlement, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ConfirmPayment"),
		zap.String("order_id", s.Order.ID),
	)

	courseIDs := s.Order.CourseIDs()

	details, err := json.Marshal(s.Details)
	if err != nil {
		return nil, err
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		// 1. Payment status
		if err := writeStatus(ctx, tx, s.Status, s.ExpectedVersion); err != nil {
			return err
		}

		// 2. Order fulfillment
		res, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $2, payment_details = $3, updated_at = $4
			WHERE id = $1 AND status = $5
		`, s.Order.ID, order.StatusCompleted, details, s.GrantedAt, order.StatusPending)
		if err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrOrderNotPayable
		}

		// 3. Entitlements (set union)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (id, purchased_courses)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET
				purchased_courses = ARRAY(
					SELECT DISTINCT unnest(users.purchased_courses || EXCLUDED.purchased_courses)
					ORDER BY 1
				),
				updated_at = NOW()
		`, s.Order.UserID, pq.Array(courseIDs))
		if err != nil {
			return fmt.Errorf("grant courses: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO course_entitlements (user_id, course_id, order_id, granted_at)
			SELECT $1, unnest($2::text[]), $3, $4
			ON CONFLICT (user_id, course_id) DO NOTHING
		`, s.Order.UserID, pq.Array(courseIDs), s.Order.ID, s.GrantedAt)
		if err != nil {
			return fmt.Errorf("record entitlements: %w", err)
		}

		// 4. Evidence
		if s.Verification != nil {
			if err := writeVerification(ctx, tx, s.Verification); err != nil {
				return err
			}
		}

		return r.notify(ctx, tx, s.Status)
	})
	if err != nil {
		log.Warn("settlement rolled back", zap.Error(err))
		return nil, err
	}

	return &Entitlement{
		UserID:    s.Order.UserID,
		OrderID:   s.Order.ID,
		CourseIDs: courseIDs,
		GrantedAt: s.GrantedAt,
	}, nil
}

func (r *repository) CancelPayment(ctx context.Context, st *Status, expectedVersion int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := writeStatus(ctx, tx, st, expectedVersion); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $2, updated_at = $3
			WHERE id = $1 AND status = $4
		`, st.OrderID, order.StatusCancelled, st.UpdatedAt, order.StatusPending)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return order.ErrOrderNotPending
		}

		return r.notify(ctx, tx, st)
	})
}

// SaveWebhook stores the event and reports duplicate only for an event that
// was already processed. An unprocessed row from an earlier failed delivery is
// handed back so the retry can apply it.
func (r *repository) SaveWebhook(ctx context.Context, ev WebhookEvent) (int64, bool, error) {
	const q = `
	INSERT INTO payment_webhooks (
		provider,
		event_type,
		event_id,
		order_id,
		payload
	)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (provider, event_id)
	DO UPDATE SET
		payload = EXCLUDED.payload,
		process_error = NULL
	WHERE payment_webhooks.processed_at IS NULL
	RETURNING id;
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		q,
		ev.Provider,
		ev.EventType,
		ev.EventID,
		ev.OrderID,
		ev.Payload,
	).Scan(&id)

	if err != nil {
		// Already processed: idempotent success
		if errors.Is(err, sql.ErrNoRows) {
			return 0, true, nil
		}
		return 0, false, err
	}

	return id, false, nil
}

func (r *repository) MarkWebhookProcessed(
	ctx context.Context,
	webhookID int64,
) error {

	const q = `
	UPDATE payment_webhooks
	SET processed_at = now()
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID)
	return err
}

func (r *repository) MarkWebhookFailed(
	ctx context.Context,
	webhookID int64,
	reason string,
) error {

	const q = `
	UPDATE payment_webhooks
	SET process_error = $2
	WHERE id = $1;
	`

	_, err := r.db.ExecContext(ctx, q, webhookID, reason)
	return err
}
