// Package domain models chat personas as the wallet context sees them: the
// attributes that drive message pricing.
package domain

import (
	"errors"
	"strings"
	"time"

	sharedDomain "github.com/Oregand/obai-sub000/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPersonaEmptyName         = errors.New("persona name cannot be empty")
	ErrPersonaInvalidDominance  = errors.New("dominance level must be between 1 and 5")
	ErrPersonaInvalidMultiplier = errors.New("exclusivity multiplier must be at least 1")
)

const (
	MinDominanceLevel = 1
	MaxDominanceLevel = 5
)

// Persona is a chat persona. Dominance level scales the base message cost;
// the exclusivity multiplier prices access to exclusive personas.
type Persona struct {
	sharedDomain.BaseEntity
	name                  string
	dominanceLevel        int
	exclusivityMultiplier decimal.Decimal
	exclusive             bool
}

// NewPersona creates a persona after validating its pricing attributes.
func NewPersona(name string, dominanceLevel int, exclusivityMultiplier decimal.Decimal, exclusive bool) (*Persona, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrPersonaEmptyName
	}
	if dominanceLevel < MinDominanceLevel || dominanceLevel > MaxDominanceLevel {
		return nil, ErrPersonaInvalidDominance
	}
	if exclusivityMultiplier.LessThan(decimal.NewFromInt(1)) {
		return nil, ErrPersonaInvalidMultiplier
	}

	return &Persona{
		BaseEntity:            sharedDomain.NewBaseEntity(),
		name:                  name,
		dominanceLevel:        dominanceLevel,
		exclusivityMultiplier: exclusivityMultiplier,
		exclusive:             exclusive,
	}, nil
}

// RehydratePersona recreates a persona from persisted state.
func RehydratePersona(
	id uuid.UUID,
	name string,
	dominanceLevel int,
	exclusivityMultiplier decimal.Decimal,
	exclusive bool,
	createdAt time.Time,
	updatedAt time.Time,
) *Persona {
	return &Persona{
		BaseEntity:            sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		name:                  name,
		dominanceLevel:        dominanceLevel,
		exclusivityMultiplier: exclusivityMultiplier,
		exclusive:             exclusive,
	}
}

func (p *Persona) Name() string                           { return p.name }
func (p *Persona) DominanceLevel() int                    { return p.dominanceLevel }
func (p *Persona) ExclusivityMultiplier() decimal.Decimal { return p.exclusivityMultiplier }
func (p *Persona) IsExclusive() bool                      { return p.exclusive }
