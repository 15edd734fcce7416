package commands

import (
	"context"

	"github.com/Oregand/obai-sub000/internal/payments/domain"
	sharedApplication "github.com/Oregand/obai-sub000/internal/shared/application"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/outbox"
	walletDomain "github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/shopspring/decimal"
)

// settlePayment transitions a pending payment and, on success, credits the
// purchased tokens. Runs inside the caller's transaction; the payment must
// have been re-read there so a concurrent settle is observed, not repeated.
func settlePayment(
	txCtx context.Context,
	paymentRepo domain.Repository,
	walletRepo walletDomain.WalletRepository,
	outboxRepo outbox.Repository,
	payment *domain.Payment,
	succeeded bool,
	reason string,
) (decimal.Decimal, error) {
	balance := decimal.Zero

	if succeeded {
		if err := payment.Complete(); err != nil {
			return balance, err
		}
	} else {
		if err := payment.Fail(reason); err != nil {
			return balance, err
		}
	}

	if err := paymentRepo.Save(txCtx, payment); err != nil {
		return balance, err
	}

	events := payment.DomainEvents()

	if succeeded {
		credit := decimal.NewFromInt(payment.TotalTokens())
		newBalance, err := walletRepo.Credit(txCtx, payment.UserID(), credit)
		if err != nil {
			return balance, err
		}
		balance = newBalance
		events = append(events, walletDomain.NewTokensCredited(payment.UserID(), credit, balance, string(payment.Type())))
	}

	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(payment.UserID()))

	msgs, err := outbox.FromEvents(events)
	if err != nil {
		return balance, err
	}
	if err := outboxRepo.SaveBatch(txCtx, msgs); err != nil {
		return balance, err
	}
	return balance, nil
}
