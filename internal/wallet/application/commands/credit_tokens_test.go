package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreditTokensHandler_Handle(t *testing.T) {
	userID := uuid.New()

	t.Run("credits tokens and reports the new balance", func(t *testing.T) {
		walletRepo := new(mockWalletRepo)
		outboxRepo := new(mockWalletOutboxRepo)
		uow := new(mockWalletUnitOfWork)
		handler := NewCreditTokensHandler(walletRepo, outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		amount := decimal.NewFromInt(108)

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		walletRepo.On("Credit", txCtx, userID, amount).Return(decimal.NewFromInt(116), nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, CreditTokensCommand{UserID: userID, Tokens: amount, Reason: "topup"})

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, decimal.NewFromInt(116).Equal(result.Balance))

		walletRepo.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("rejects a non-positive amount", func(t *testing.T) {
		walletRepo := new(mockWalletRepo)
		outboxRepo := new(mockWalletOutboxRepo)
		uow := new(mockWalletUnitOfWork)
		handler := NewCreditTokensHandler(walletRepo, outboxRepo, uow)

		result, err := handler.Handle(context.Background(), CreditTokensCommand{UserID: userID, Tokens: decimal.Zero, Reason: "topup"})

		assert.ErrorIs(t, err, ErrInvalidCreditAmount)
		assert.Nil(t, result)

		walletRepo.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rolls back when the credit fails", func(t *testing.T) {
		walletRepo := new(mockWalletRepo)
		outboxRepo := new(mockWalletOutboxRepo)
		uow := new(mockWalletUnitOfWork)
		handler := NewCreditTokensHandler(walletRepo, outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		amount := decimal.NewFromInt(50)

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		walletRepo.On("Credit", txCtx, userID, amount).Return(decimal.Zero, errors.New("database error"))

		result, err := handler.Handle(ctx, CreditTokensCommand{UserID: userID, Tokens: amount, Reason: "tip"})

		assert.Error(t, err)
		assert.Nil(t, result)

		uow.AssertExpectations(t)
	})
}
