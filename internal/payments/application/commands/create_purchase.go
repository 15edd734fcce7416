// Package commands contains the payment write operations: opening purchases
// at the gateway and settling them into token credits.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/Oregand/obai-sub000/internal/catalog"
	"github.com/Oregand/obai-sub000/internal/payments/domain"
	"github.com/Oregand/obai-sub000/internal/payments/gateway"
	sharedApplication "github.com/Oregand/obai-sub000/internal/shared/application"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotPaymentOwner = errors.New("user does not own this payment")
	ErrNothingToBuy    = errors.New("either a package or a custom token amount is required")
)

// CreatePurchaseCommand opens a token purchase. Exactly one of PackageID and
// CustomTokens must be set.
type CreatePurchaseCommand struct {
	UserID       uuid.UUID
	PackageID    string
	CustomTokens int64
}

// CreatePurchaseResult contains the pending payment and checkout details.
type CreatePurchaseResult struct {
	PaymentID   uuid.UUID
	IntentID    string
	Address     string
	CheckoutURL string
	QRCode      string
	Amount      decimal.Decimal
	Tokens      int64
	Bonus       int64
}

// CreatePurchaseHandler handles the CreatePurchaseCommand.
type CreatePurchaseHandler struct {
	paymentRepo domain.Repository
	gw          gateway.Gateway
	uow         sharedApplication.UnitOfWork
}

// NewCreatePurchaseHandler creates a new CreatePurchaseHandler.
func NewCreatePurchaseHandler(paymentRepo domain.Repository, gw gateway.Gateway, uow sharedApplication.UnitOfWork) *CreatePurchaseHandler {
	return &CreatePurchaseHandler{paymentRepo: paymentRepo, gw: gw, uow: uow}
}

// Handle executes the CreatePurchaseCommand. The gateway intent is created
// before the ledger row; a crash in between leaves an orphan intent at the
// provider, which expires on its own, never an unpaid credit.
func (h *CreatePurchaseHandler) Handle(ctx context.Context, cmd CreatePurchaseCommand) (*CreatePurchaseResult, error) {
	var (
		tokens int64
		bonus  int64
		price  decimal.Decimal
	)

	switch {
	case cmd.PackageID != "":
		pkg, err := catalog.FindPackage(cmd.PackageID)
		if err != nil {
			return nil, err
		}
		tokens, bonus, price = pkg.Tokens, pkg.Bonus, pkg.Price
	case cmd.CustomTokens > 0:
		quote, err := catalog.PriceCustomAmount(cmd.CustomTokens)
		if err != nil {
			return nil, err
		}
		tokens, bonus, price = quote.Tokens, quote.Bonus, quote.Price
	default:
		return nil, ErrNothingToBuy
	}

	idempotencyKey := fmt.Sprintf("purchase:%s:%s", cmd.UserID, uuid.NewString())

	payment, err := domain.NewPayment(cmd.UserID, price, "USD", domain.TypeTokenPurchase, tokens, bonus, idempotencyKey)
	if err != nil {
		return nil, err
	}

	intent, err := h.gw.CreateIntent(ctx, gateway.CreateIntentRequest{
		Amount:    price,
		Currency:  "USD",
		Reference: idempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating payment intent: %w", err)
	}
	payment.AttachIntent(intent.ID)

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		return h.paymentRepo.Save(txCtx, payment)
	})
	if err != nil {
		return nil, err
	}

	return &CreatePurchaseResult{
		PaymentID:   payment.ID(),
		IntentID:    intent.ID,
		Address:     intent.Address,
		CheckoutURL: intent.CheckoutURL,
		QRCode:      intent.QRCode,
		Amount:      price,
		Tokens:      tokens,
		Bonus:       bonus,
	}, nil
}
