// Package persistence implements the wallet repositories with PostgreSQL.
// Balance mutations are single atomic statements so concurrent debits can
// never observe or produce a negative balance.
package persistence

import (
	"context"
	"errors"

	sharedPersistence "github.com/Oregand/obai-sub000/internal/shared/infrastructure/persistence"
	"github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresWalletRepository implements domain.WalletRepository with PostgreSQL.
type PostgresWalletRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresWalletRepository creates a new repository.
func NewPostgresWalletRepository(pool *pgxpool.Pool) *PostgresWalletRepository {
	return &PostgresWalletRepository{pool: pool}
}

// Balance returns the user's current token balance.
func (r *PostgresWalletRepository) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT credits FROM users WHERE id = $1`

	var balance decimal.Decimal
	execer := sharedPersistence.Executor(ctx, r.pool)
	if err := execer.QueryRow(ctx, query, userID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrWalletNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
}

// TryDebit deducts amount only when the balance covers it. The guard lives in
// the WHERE clause, so two racing debits serialize on the row and the loser
// sees the post-winner balance.
func (r *PostgresWalletRepository) TryDebit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, decimal.Decimal, error) {
	query := `
		UPDATE users
		SET credits = credits - $2, updated_at = NOW()
		WHERE id = $1 AND credits >= $2
		RETURNING credits
	`

	var balance decimal.Decimal
	execer := sharedPersistence.Executor(ctx, r.pool)
	err := execer.QueryRow(ctx, query, userID, amount).Scan(&balance)
	if err == nil {
		return true, balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, decimal.Zero, err
	}

	// Debit refused: report the untouched balance for the error payload.
	balance, err = r.Balance(ctx, userID)
	if err != nil {
		return false, decimal.Zero, err
	}
	return false, balance, nil
}

// DebitClamped deducts amount, flooring the balance at zero.
func (r *PostgresWalletRepository) DebitClamped(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET credits = GREATEST(credits - $2, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING credits
	`

	var balance decimal.Decimal
	execer := sharedPersistence.Executor(ctx, r.pool)
	if err := execer.QueryRow(ctx, query, userID, amount).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrWalletNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
}

// Credit adds amount to the balance.
func (r *PostgresWalletRepository) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET credits = credits + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING credits
	`

	var balance decimal.Decimal
	execer := sharedPersistence.Executor(ctx, r.pool)
	if err := execer.QueryRow(ctx, query, userID, amount).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrWalletNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
}
