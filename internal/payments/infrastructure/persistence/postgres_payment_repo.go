// Package persistence implements the payment ledger with PostgreSQL. The
// idempotency key carries a unique index; inserting a duplicate surfaces
// domain.ErrDuplicatePayment so settles stay exactly-once.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/Oregand/obai-sub000/internal/payments/domain"
	sharedPersistence "github.com/Oregand/obai-sub000/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolationCode = "23505"

// PostgresPaymentRepository implements domain.Repository with PostgreSQL.
type PostgresPaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPaymentRepository creates a new repository.
func NewPostgresPaymentRepository(pool *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{pool: pool}
}

// Save inserts or updates a payment.
func (r *PostgresPaymentRepository) Save(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (
			id, user_id, amount, currency, payment_type, status,
			token_amount, bonus_tokens, idempotency_key, intent_id,
			failure_reason, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			intent_id = EXCLUDED.intent_id,
			failure_reason = EXCLUDED.failure_reason,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	_, err := execer.Exec(ctx, query,
		payment.ID(),
		payment.UserID(),
		payment.Amount(),
		payment.Currency(),
		string(payment.Type()),
		string(payment.Status()),
		payment.TokenAmount(),
		payment.BonusTokens(),
		payment.IdempotencyKey(),
		nullableString(payment.IntentID()),
		nullableString(payment.FailureReason()),
		payment.CompletedAt(),
		payment.CreatedAt(),
		payment.UpdatedAt(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.ErrDuplicatePayment
		}
		return err
	}
	return nil
}

// FindByID returns the payment, or nil when it does not exist.
func (r *PostgresPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByIntentID returns the payment backing a gateway intent, or nil.
func (r *PostgresPaymentRepository) FindByIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	return r.findOne(ctx, `WHERE intent_id = $1`, intentID)
}

// FindByIdempotencyKey returns the payment with the given key, or nil.
func (r *PostgresPaymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	return r.findOne(ctx, `WHERE idempotency_key = $1`, key)
}

func (r *PostgresPaymentRepository) findOne(ctx context.Context, where string, arg any) (*domain.Payment, error) {
	query := `
		SELECT id, user_id, amount, currency, payment_type, status,
			token_amount, bonus_tokens, idempotency_key, intent_id,
			failure_reason, completed_at, created_at, updated_at
		FROM payments
	` + where

	var (
		paymentID      uuid.UUID
		userID         uuid.UUID
		amount         decimal.Decimal
		currency       string
		paymentType    string
		status         string
		tokenAmount    int64
		bonusTokens    int64
		idempotencyKey string
		intentID       *string
		failureReason  *string
		completedAt    *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)

	execer := sharedPersistence.Executor(ctx, r.pool)
	err := execer.QueryRow(ctx, query, arg).Scan(
		&paymentID, &userID, &amount, &currency, &paymentType, &status,
		&tokenAmount, &bonusTokens, &idempotencyKey, &intentID,
		&failureReason, &completedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return domain.RehydratePayment(
		paymentID, userID, amount, currency,
		domain.PaymentType(paymentType), domain.PaymentStatus(status),
		tokenAmount, bonusTokens, idempotencyKey,
		derefString(intentID), derefString(failureReason),
		completedAt, createdAt, updatedAt,
	), nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
