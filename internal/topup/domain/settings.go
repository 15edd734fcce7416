// Package domain models per-user auto-topup settings: when the balance drops
// below the threshold, the worker buys the configured package automatically.
package domain

import (
	"errors"
	"strconv"
	"time"

	sharedDomain "github.com/Oregand/obai-sub000/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrSettingsNotFound     = errors.New("auto-topup settings not found")
	ErrInvalidThreshold     = errors.New("threshold must be positive")
	ErrMissingPackage       = errors.New("a token package is required when auto-topup is enabled")
	ErrMissingPaymentMethod = errors.New("a payment method is required when auto-topup is enabled")
)

// Settings is one user's auto-topup configuration.
type Settings struct {
	sharedDomain.BaseEntity
	userID          uuid.UUID
	enabled         bool
	threshold       decimal.Decimal
	packageID       string
	paymentMethodID string
	lastTopupAt     *time.Time
}

// NewSettings creates settings after validating the enabled configuration.
func NewSettings(userID uuid.UUID, enabled bool, threshold decimal.Decimal, packageID, paymentMethodID string) (*Settings, error) {
	if err := validateConfiguration(enabled, threshold, packageID, paymentMethodID); err != nil {
		return nil, err
	}

	return &Settings{
		BaseEntity:      sharedDomain.NewBaseEntity(),
		userID:          userID,
		enabled:         enabled,
		threshold:       threshold,
		packageID:       packageID,
		paymentMethodID: paymentMethodID,
	}, nil
}

// RehydrateSettings recreates settings from persisted state.
func RehydrateSettings(
	id uuid.UUID,
	userID uuid.UUID,
	enabled bool,
	threshold decimal.Decimal,
	packageID string,
	paymentMethodID string,
	lastTopupAt *time.Time,
	createdAt time.Time,
	updatedAt time.Time,
) *Settings {
	return &Settings{
		BaseEntity:      sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		userID:          userID,
		enabled:         enabled,
		threshold:       threshold,
		packageID:       packageID,
		paymentMethodID: paymentMethodID,
		lastTopupAt:     lastTopupAt,
	}
}

// Reconfigure replaces the configuration in place. lastTopupAt survives so
// the derived idempotency key keeps advancing across settings changes.
func (s *Settings) Reconfigure(enabled bool, threshold decimal.Decimal, packageID, paymentMethodID string) error {
	if err := validateConfiguration(enabled, threshold, packageID, paymentMethodID); err != nil {
		return err
	}

	s.enabled = enabled
	s.threshold = threshold
	s.packageID = packageID
	s.paymentMethodID = paymentMethodID
	s.Touch()
	return nil
}

func validateConfiguration(enabled bool, threshold decimal.Decimal, packageID, paymentMethodID string) error {
	if !enabled {
		return nil
	}
	if !threshold.IsPositive() {
		return ErrInvalidThreshold
	}
	if packageID == "" {
		return ErrMissingPackage
	}
	if paymentMethodID == "" {
		return ErrMissingPaymentMethod
	}
	return nil
}

func (s *Settings) UserID() uuid.UUID          { return s.userID }
func (s *Settings) Enabled() bool              { return s.enabled }
func (s *Settings) Threshold() decimal.Decimal { return s.threshold }
func (s *Settings) PackageID() string          { return s.packageID }
func (s *Settings) PaymentMethodID() string    { return s.paymentMethodID }
func (s *Settings) LastTopupAt() *time.Time    { return s.lastTopupAt }

// IdempotencyKey derives the ledger key for the next topup. It only changes
// when a topup lands, so two overlapping runs produce the same key and the
// ledger's unique index rejects the second.
func (s *Settings) IdempotencyKey() string {
	last := int64(0)
	if s.lastTopupAt != nil {
		last = s.lastTopupAt.Unix()
	}
	return "topup:" + s.userID.String() + ":" + strconv.FormatInt(last, 10)
}

// RecordTopup stamps the last successful topup.
func (s *Settings) RecordTopup(at time.Time) {
	at = at.UTC()
	s.lastTopupAt = &at
	s.Touch()
}
