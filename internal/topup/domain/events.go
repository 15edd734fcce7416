package domain

import (
	sharedDomain "github.com/Oregand/obai-sub000/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AutoTopupTriggeredRoutingKey routes auto-topup events.
const AutoTopupTriggeredRoutingKey = "topup.triggered"

// AutoTopupTriggered is raised when the worker tops up a balance.
type AutoTopupTriggered struct {
	sharedDomain.BaseEvent
	UserID    uuid.UUID       `json:"user_id"`
	PackageID string          `json:"package_id"`
	Tokens    int64           `json:"tokens"`
	Balance   decimal.Decimal `json:"balance"`
}

func NewAutoTopupTriggered(userID uuid.UUID, packageID string, tokens int64, balance decimal.Decimal) *AutoTopupTriggered {
	return &AutoTopupTriggered{
		BaseEvent: sharedDomain.NewBaseEvent(userID, "topup", AutoTopupTriggeredRoutingKey),
		UserID:    userID,
		PackageID: packageID,
		Tokens:    tokens,
		Balance:   balance,
	}
}
