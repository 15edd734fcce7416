// Package persistence implements auto-topup settings persistence with
// PostgreSQL.
package persistence

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/crypto"
	sharedPersistence "github.com/Oregand/obai-sub000/internal/shared/infrastructure/persistence"
	"github.com/Oregand/obai-sub000/internal/topup/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresSettingsRepository implements domain.Repository with PostgreSQL.
// The payment method token is a charge authorization at the provider, so it
// is encrypted at rest when an encrypter is configured.
type PostgresSettingsRepository struct {
	pool      *pgxpool.Pool
	encrypter crypto.Encrypter
}

// NewPostgresSettingsRepository creates a new repository. encrypter may be
// nil; tokens are then stored in the clear.
func NewPostgresSettingsRepository(pool *pgxpool.Pool, encrypter crypto.Encrypter) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{pool: pool, encrypter: encrypter}
}

// Save inserts or replaces the user's settings.
func (r *PostgresSettingsRepository) Save(ctx context.Context, settings *domain.Settings) error {
	query := `
		INSERT INTO auto_topup_settings (
			id, user_id, enabled, threshold, package_id, payment_method_id, last_topup_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			threshold = EXCLUDED.threshold,
			package_id = EXCLUDED.package_id,
			payment_method_id = EXCLUDED.payment_method_id,
			last_topup_at = EXCLUDED.last_topup_at,
			updated_at = EXCLUDED.updated_at
	`

	paymentMethodID, err := r.sealToken(settings.PaymentMethodID())
	if err != nil {
		return err
	}

	execer := sharedPersistence.Executor(ctx, r.pool)
	_, err = execer.Exec(ctx, query,
		settings.ID(),
		settings.UserID(),
		settings.Enabled(),
		settings.Threshold(),
		settings.PackageID(),
		paymentMethodID,
		settings.LastTopupAt(),
		settings.CreatedAt(),
		settings.UpdatedAt(),
	)
	return err
}

// FindByUserID returns the user's settings, or nil when none exist.
func (r *PostgresSettingsRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Settings, error) {
	query := selectSettings + ` WHERE user_id = $1`

	execer := sharedPersistence.Executor(ctx, r.pool)
	settings, err := r.scanSettings(execer.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return settings, nil
}

// ListEnabled returns one page of enabled settings with a payment method
// configured, keyset-paginated by user id.
func (r *PostgresSettingsRepository) ListEnabled(ctx context.Context, afterUserID uuid.UUID, limit int) ([]*domain.Settings, error) {
	query := selectSettings + ` WHERE enabled AND payment_method_id <> '' AND user_id > $1 ORDER BY user_id LIMIT $2`

	execer := sharedPersistence.Executor(ctx, r.pool)
	rows, err := execer.Query(ctx, query, afterUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Settings
	for rows.Next() {
		settings, err := r.scanSettings(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, settings)
	}
	return result, rows.Err()
}

const selectSettings = `
	SELECT id, user_id, enabled, threshold, package_id, payment_method_id, last_topup_at, created_at, updated_at
	FROM auto_topup_settings
`

func (r *PostgresSettingsRepository) scanSettings(row pgx.Row) (*domain.Settings, error) {
	var (
		id              uuid.UUID
		userID          uuid.UUID
		enabled         bool
		threshold       decimal.Decimal
		packageID       string
		paymentMethodID string
		lastTopupAt     *time.Time
		createdAt       time.Time
		updatedAt       time.Time
	)

	err := row.Scan(&id, &userID, &enabled, &threshold, &packageID, &paymentMethodID, &lastTopupAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	paymentMethodID, err = r.openToken(paymentMethodID)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateSettings(id, userID, enabled, threshold, packageID, paymentMethodID, lastTopupAt, createdAt, updatedAt), nil
}

// encryptedPrefix marks encrypted tokens so plaintext rows written before a
// key was configured still read back.
const encryptedPrefix = "enc:"

func (r *PostgresSettingsRepository) sealToken(token string) (string, error) {
	if r.encrypter == nil || token == "" {
		return token, nil
	}
	sealed, err := r.encrypter.Encrypt([]byte(token))
	if err != nil {
		return "", fmt.Errorf("encrypting payment method token: %w", err)
	}
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (r *PostgresSettingsRepository) openToken(stored string) (string, error) {
	if len(stored) < len(encryptedPrefix) || stored[:len(encryptedPrefix)] != encryptedPrefix {
		return stored, nil
	}
	if r.encrypter == nil {
		return "", errors.New("payment method token is encrypted but no key is configured")
	}
	sealed, err := base64.StdEncoding.DecodeString(stored[len(encryptedPrefix):])
	if err != nil {
		return "", fmt.Errorf("decoding payment method token: %w", err)
	}
	token, err := r.encrypter.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("decrypting payment method token: %w", err)
	}
	return string(token), nil
}
