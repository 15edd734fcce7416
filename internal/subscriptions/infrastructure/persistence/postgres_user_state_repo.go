package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/Oregand/obai-sub000/internal/catalog"
	sharedPersistence "github.com/Oregand/obai-sub000/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errUserNotFound = errors.New("user not found")

// PostgresUserStateRepository maintains the denormalized subscription fields
// on the users table.
type PostgresUserStateRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStateRepository creates a new repository.
func NewPostgresUserStateRepository(pool *pgxpool.Pool) *PostgresUserStateRepository {
	return &PostgresUserStateRepository{pool: pool}
}

// UpdateSubscriptionState writes the denormalized tier and expiry.
func (r *PostgresUserStateRepository) UpdateSubscriptionState(ctx context.Context, userID uuid.UUID, tier catalog.TierID, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET subscription_tier = $2, subscription_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	tag, err := execer.Exec(ctx, query, userID, string(tier), expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errUserNotFound
	}
	return nil
}

// SubscriptionState returns the denormalized tier and expiry.
func (r *PostgresUserStateRepository) SubscriptionState(ctx context.Context, userID uuid.UUID) (catalog.TierID, *time.Time, error) {
	query := `SELECT subscription_tier, subscription_expires_at FROM users WHERE id = $1`

	var (
		tier      *string
		expiresAt *time.Time
	)

	execer := sharedPersistence.Executor(ctx, r.pool)
	err := execer.QueryRow(ctx, query, userID).Scan(&tier, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.TierFree, nil, nil
		}
		return catalog.TierFree, nil, err
	}

	if tier == nil {
		return catalog.TierFree, nil, nil
	}
	return catalog.TierID(*tier), expiresAt, nil
}
