package domain

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines auto-topup settings persistence. One row per user.
type Repository interface {
	Save(ctx context.Context, settings *Settings) error
	// FindByUserID returns the user's settings, or nil when none exist.
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Settings, error)
	// ListEnabled returns up to limit settings that are enabled and have a
	// payment method configured, in user-id order, starting after
	// afterUserID. Pass uuid.Nil for the first page.
	ListEnabled(ctx context.Context, afterUserID uuid.UUID, limit int) ([]*Settings, error)
}
