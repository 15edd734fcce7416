// Package persistence implements subscription persistence with PostgreSQL.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/Oregand/obai-sub000/internal/catalog"
	sharedPersistence "github.com/Oregand/obai-sub000/internal/shared/infrastructure/persistence"
	"github.com/Oregand/obai-sub000/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresSubscriptionRepository implements domain.Repository with PostgreSQL.
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriptionRepository creates a new repository.
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Save inserts or updates a subscription.
func (r *PostgresSubscriptionRepository) Save(ctx context.Context, subscription *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, user_id, tier, price, status, starts_at, ends_at, bonus_tokens, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	_, err := execer.Exec(ctx, query,
		subscription.ID(),
		subscription.UserID(),
		string(subscription.Tier()),
		subscription.Price(),
		string(subscription.Status()),
		subscription.StartsAt(),
		subscription.EndsAt(),
		subscription.BonusTokens(),
		subscription.CreatedAt(),
		subscription.UpdatedAt(),
	)
	return err
}

// FindActiveByUserID returns the user's current active subscription, or nil.
func (r *PostgresSubscriptionRepository) FindActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	query := `
		SELECT id, user_id, tier, price, status, starts_at, ends_at, bonus_tokens, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY ends_at DESC
		LIMIT 1
	`

	var (
		id          uuid.UUID
		owner       uuid.UUID
		tier        string
		price       decimal.Decimal
		status      string
		startsAt    time.Time
		endsAt      time.Time
		bonusTokens int64
		createdAt   time.Time
		updatedAt   time.Time
	)

	execer := sharedPersistence.Executor(ctx, r.pool)
	err := execer.QueryRow(ctx, query, userID).Scan(
		&id, &owner, &tier, &price, &status, &startsAt, &endsAt, &bonusTokens, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return domain.RehydrateSubscription(
		id, owner, catalog.TierID(tier), price, domain.Status(status),
		startsAt, endsAt, bonusTokens, createdAt, updatedAt,
	), nil
}

// ExpireDue flips active subscriptions past their end date to expired.
func (r *PostgresSubscriptionRepository) ExpireDue(ctx context.Context) (int64, error) {
	query := `
		UPDATE subscriptions
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND ends_at < NOW()
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	tag, err := execer.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
