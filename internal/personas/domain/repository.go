package domain

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persona persistence.
type Repository interface {
	Save(ctx context.Context, persona *Persona) error
	// FindByID returns the persona, or nil when it does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Persona, error)
}
