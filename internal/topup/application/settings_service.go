package application

import (
	"context"

	"github.com/Oregand/obai-sub000/internal/catalog"
	sharedApplication "github.com/Oregand/obai-sub000/internal/shared/application"
	"github.com/Oregand/obai-sub000/internal/topup/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpdateSettingsCommand replaces a user's auto-topup configuration.
type UpdateSettingsCommand struct {
	UserID          uuid.UUID
	Enabled         bool
	Threshold       decimal.Decimal
	PackageID       string
	PaymentMethodID string
}

// SettingsService reads and writes auto-topup settings.
type SettingsService struct {
	settingsRepo domain.Repository
	uow          sharedApplication.UnitOfWork
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(settingsRepo domain.Repository, uow sharedApplication.UnitOfWork) *SettingsService {
	return &SettingsService{settingsRepo: settingsRepo, uow: uow}
}

// Update validates and persists the configuration. The package must exist in
// the catalog when auto-topup is enabled.
func (s *SettingsService) Update(ctx context.Context, cmd UpdateSettingsCommand) (*domain.Settings, error) {
	if cmd.Enabled {
		if _, err := catalog.FindPackage(cmd.PackageID); err != nil {
			return nil, err
		}
	}

	var settings *domain.Settings
	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		// Reconfigure the stored settings rather than replacing them:
		// lastTopupAt must survive or the derived idempotency key would
		// fall back to its initial value and every later topup would be
		// rejected as a duplicate.
		existing, err := s.settingsRepo.FindByUserID(txCtx, cmd.UserID)
		if err != nil {
			return err
		}

		if existing != nil {
			if err := existing.Reconfigure(cmd.Enabled, cmd.Threshold, cmd.PackageID, cmd.PaymentMethodID); err != nil {
				return err
			}
			settings = existing
		} else {
			settings, err = domain.NewSettings(cmd.UserID, cmd.Enabled, cmd.Threshold, cmd.PackageID, cmd.PaymentMethodID)
			if err != nil {
				return err
			}
		}

		return s.settingsRepo.Save(txCtx, settings)
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// Get returns the user's settings, or disabled defaults when none exist.
func (s *SettingsService) Get(ctx context.Context, userID uuid.UUID) (*domain.Settings, error) {
	settings, err := s.settingsRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return domain.NewSettings(userID, false, decimal.Zero, "", "")
	}
	return settings, nil
}
