package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/Oregand/obai-sub000/internal/personas/domain"
	sharedPersistence "github.com/Oregand/obai-sub000/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresPersonaRepository implements domain.Repository with PostgreSQL.
type PostgresPersonaRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPersonaRepository creates a new repository.
func NewPostgresPersonaRepository(pool *pgxpool.Pool) *PostgresPersonaRepository {
	return &PostgresPersonaRepository{pool: pool}
}

// Save inserts or updates a persona.
func (r *PostgresPersonaRepository) Save(ctx context.Context, persona *domain.Persona) error {
	query := `
		INSERT INTO personas (
			id, name, dominance_level, exclusivity_multiplier, exclusive, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			dominance_level = EXCLUDED.dominance_level,
			exclusivity_multiplier = EXCLUDED.exclusivity_multiplier,
			exclusive = EXCLUDED.exclusive,
			updated_at = NOW()
	`
	execer := sharedPersistence.Executor(ctx, r.pool)
	_, err := execer.Exec(ctx, query,
		persona.ID(),
		persona.Name(),
		persona.DominanceLevel(),
		persona.ExclusivityMultiplier(),
		persona.IsExclusive(),
		persona.CreatedAt(),
		persona.UpdatedAt(),
	)
	return err
}

// FindByID returns the persona, or nil when it does not exist.
func (r *PostgresPersonaRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Persona, error) {
	query := `
		SELECT id, name, dominance_level, exclusivity_multiplier, exclusive, created_at, updated_at
		FROM personas
		WHERE id = $1
	`

	var (
		personaID  uuid.UUID
		name       string
		dominance  int
		multiplier decimal.Decimal
		exclusive  bool
		createdAt  time.Time
		updatedAt  time.Time
	)

	execer := sharedPersistence.Executor(ctx, r.pool)
	err := execer.QueryRow(ctx, query, id).Scan(
		&personaID, &name, &dominance, &multiplier, &exclusive, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return domain.RehydratePersona(personaID, name, dominance, multiplier, exclusive, createdAt, updatedAt), nil
}
