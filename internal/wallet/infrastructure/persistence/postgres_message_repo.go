package persistence

import (
	"context"
	"errors"
	"time"

	sharedPersistence "github.com/Oregand/obai-sub000/internal/shared/infrastructure/persistence"
	"github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresMessageRepository implements domain.MessageRepository with PostgreSQL.
type PostgresMessageRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresMessageRepository creates a new repository.
func NewPostgresMessageRepository(pool *pgxpool.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// Create inserts a new message.
func (r *PostgresMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (
			id, chat_id, user_id, role, token_cost, free, lock_price, locked, unlocked_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	_, err := execer.Exec(ctx, query,
		message.ID(),
		message.ChatID(),
		message.UserID(),
		string(message.Role()),
		message.TokenCost(),
		message.IsFree(),
		message.LockPrice(),
		message.IsLocked(),
		message.UnlockedAt(),
		message.CreatedAt(),
		message.UpdatedAt(),
	)
	return err
}

// FindByID returns the message, or nil when it does not exist.
func (r *PostgresMessageRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `
		SELECT id, chat_id, user_id, role, token_cost, free, lock_price, locked, unlocked_at, created_at, updated_at
		FROM messages
		WHERE id = $1
	`

	var (
		messageID  uuid.UUID
		chatID     uuid.UUID
		userID     uuid.UUID
		role       string
		tokenCost  int64
		free       bool
		lockPrice  decimal.Decimal
		locked     bool
		unlockedAt *time.Time
		createdAt  time.Time
		updatedAt  time.Time
	)

	execer := sharedPersistence.Executor(ctx, r.pool)
	err := execer.QueryRow(ctx, query, id).Scan(
		&messageID, &chatID, &userID, &role, &tokenCost, &free,
		&lockPrice, &locked, &unlockedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return domain.RehydrateMessage(
		messageID, chatID, userID, domain.MessageRole(role),
		tokenCost, free, lockPrice, locked, unlockedAt, createdAt, updatedAt,
	), nil
}

// CountFree counts the user's messages charged against the free quota.
func (r *PostgresMessageRepository) CountFree(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE user_id = $1 AND free`

	var count int
	execer := sharedPersistence.Executor(ctx, r.pool)
	if err := execer.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkUnlocked persists the unlock transition.
func (r *PostgresMessageRepository) MarkUnlocked(ctx context.Context, message *domain.Message) error {
	query := `
		UPDATE messages
		SET locked = FALSE, unlocked_at = $2, updated_at = $3
		WHERE id = $1
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	_, err := execer.Exec(ctx, query, message.ID(), message.UnlockedAt(), message.UpdatedAt())
	return err
}
