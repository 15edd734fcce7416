package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/Oregand/obai-sub000/internal/catalog"
	"github.com/Oregand/obai-sub000/internal/payments/domain"
	"github.com/Oregand/obai-sub000/internal/payments/gateway"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreatePurchaseHandler_Handle(t *testing.T) {
	userID := uuid.New()

	t.Run("opens a purchase for a fixed package", func(t *testing.T) {
		paymentRepo := new(mockPaymentRepo)
		gw := new(mockGateway)
		uow := new(mockPaymentUnitOfWork)
		handler := NewCreatePurchaseHandler(paymentRepo, gw, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		intent := &gateway.Intent{
			ID:          "intent_abc",
			Status:      gateway.IntentPending,
			Address:     "bc1qexample",
			CheckoutURL: "https://pay.example/checkout/intent_abc",
		}
		gw.On("CreateIntent", ctx, mock.AnythingOfType("gateway.CreateIntentRequest")).Return(intent, nil)
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		paymentRepo.On("Save", txCtx, mock.AnythingOfType("*domain.Payment")).Return(nil)

		result, err := handler.Handle(ctx, CreatePurchaseCommand{UserID: userID, PackageID: "basic"})

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "intent_abc", result.IntentID)
		assert.Equal(t, int64(100), result.Tokens)
		assert.Equal(t, int64(0), result.Bonus)
		assert.True(t, decimal.NewFromFloat(4.99).Equal(result.Amount))

		saved := paymentRepo.Calls[0].Arguments.Get(1).(*domain.Payment)
		assert.Equal(t, domain.StatusPending, saved.Status())
		assert.Equal(t, "intent_abc", saved.IntentID())
		assert.Equal(t, domain.TypeTokenPurchase, saved.Type())

		gw.AssertExpectations(t)
		paymentRepo.AssertExpectations(t)
	})

	t.Run("quotes a custom amount from the band table", func(t *testing.T) {
		paymentRepo := new(mockPaymentRepo)
		gw := new(mockGateway)
		uow := new(mockPaymentUnitOfWork)
		handler := NewCreatePurchaseHandler(paymentRepo, gw, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		gw.On("CreateIntent", ctx, mock.AnythingOfType("gateway.CreateIntentRequest")).
			Return(&gateway.Intent{ID: "intent_custom", Status: gateway.IntentPending}, nil)
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		paymentRepo.On("Save", txCtx, mock.AnythingOfType("*domain.Payment")).Return(nil)

		result, err := handler.Handle(ctx, CreatePurchaseCommand{UserID: userID, CustomTokens: 200})

		require.NoError(t, err)
		assert.Equal(t, int64(200), result.Tokens)
		assert.Equal(t, int64(10), result.Bonus)
		assert.True(t, decimal.RequireFromString("9.00").Equal(result.Amount))
	})

	t.Run("rejects a custom amount below the minimum", func(t *testing.T) {
		handler := NewCreatePurchaseHandler(new(mockPaymentRepo), new(mockGateway), new(mockPaymentUnitOfWork))

		result, err := handler.Handle(context.Background(), CreatePurchaseCommand{UserID: userID, CustomTokens: 10})

		assert.ErrorIs(t, err, catalog.ErrAmountBelowMinimum)
		assert.Nil(t, result)
	})

	t.Run("rejects an unknown package", func(t *testing.T) {
		handler := NewCreatePurchaseHandler(new(mockPaymentRepo), new(mockGateway), new(mockPaymentUnitOfWork))

		result, err := handler.Handle(context.Background(), CreatePurchaseCommand{UserID: userID, PackageID: "mega"})

		assert.ErrorIs(t, err, catalog.ErrPackageNotFound)
		assert.Nil(t, result)
	})

	t.Run("rejects an empty command", func(t *testing.T) {
		handler := NewCreatePurchaseHandler(new(mockPaymentRepo), new(mockGateway), new(mockPaymentUnitOfWork))

		result, err := handler.Handle(context.Background(), CreatePurchaseCommand{UserID: userID})

		assert.ErrorIs(t, err, ErrNothingToBuy)
		assert.Nil(t, result)
	})

	t.Run("fails when the gateway is unavailable", func(t *testing.T) {
		paymentRepo := new(mockPaymentRepo)
		gw := new(mockGateway)
		uow := new(mockPaymentUnitOfWork)
		handler := NewCreatePurchaseHandler(paymentRepo, gw, uow)

		ctx := context.Background()
		gw.On("CreateIntent", ctx, mock.AnythingOfType("gateway.CreateIntentRequest")).
			Return(nil, gateway.ErrGatewayUnavailable)

		result, err := handler.Handle(ctx, CreatePurchaseCommand{UserID: userID, PackageID: "basic"})

		assert.ErrorIs(t, err, gateway.ErrGatewayUnavailable)
		assert.Nil(t, result)

		paymentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestSettleIntentHandler_Handle(t *testing.T) {
	userID := uuid.New()

	t.Run("settles a succeeded webhook and credits tokens", func(t *testing.T) {
		paymentRepo := new(mockPaymentRepo)
		walletRepo := new(mockWalletRepo)
		outboxRepo := new(mockPaymentOutboxRepo)
		uow := new(mockPaymentUnitOfWork)
		handler := NewSettleIntentHandler(paymentRepo, walletRepo, outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		payment := newPendingPayment(t, userID, 250, 25)

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		paymentRepo.On("FindByIntentID", txCtx, "intent_123").Return(payment, nil)
		paymentRepo.On("Save", txCtx, payment).Return(nil)
		walletRepo.On("Credit", txCtx, userID, decimal.NewFromInt(275)).Return(decimal.NewFromInt(275), nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, SettleIntentCommand{IntentID: "intent_123", Succeeded: true})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, result.Status)

		walletRepo.AssertExpectations(t)
	})

	t.Run("redelivered webhook is a no-op", func(t *testing.T) {
		paymentRepo := new(mockPaymentRepo)
		walletRepo := new(mockWalletRepo)
		outboxRepo := new(mockPaymentOutboxRepo)
		uow := new(mockPaymentUnitOfWork)
		handler := NewSettleIntentHandler(paymentRepo, walletRepo, outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		payment := newPendingPayment(t, userID, 250, 25)
		require.NoError(t, payment.Complete())

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		paymentRepo.On("FindByIntentID", txCtx, "intent_123").Return(payment, nil)

		result, err := handler.Handle(ctx, SettleIntentCommand{IntentID: "intent_123", Succeeded: true})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, result.Status)

		walletRepo.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
		paymentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("fails a payment on an unsuccessful webhook", func(t *testing.T) {
		paymentRepo := new(mockPaymentRepo)
		walletRepo := new(mockWalletRepo)
		outboxRepo := new(mockPaymentOutboxRepo)
		uow := new(mockPaymentUnitOfWork)
		handler := NewSettleIntentHandler(paymentRepo, walletRepo, outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		payment := newPendingPayment(t, userID, 250, 25)

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		paymentRepo.On("FindByIntentID", txCtx, "intent_123").Return(payment, nil)
		paymentRepo.On("Save", txCtx, payment).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, SettleIntentCommand{IntentID: "intent_123", Succeeded: false, Reason: "underpaid"})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, result.Status)
		assert.Equal(t, "underpaid", payment.FailureReason())
	})

	t.Run("returns ErrPaymentNotFound for an unknown intent", func(t *testing.T) {
		paymentRepo := new(mockPaymentRepo)
		uow := new(mockPaymentUnitOfWork)
		handler := NewSettleIntentHandler(paymentRepo, new(mockWalletRepo), new(mockPaymentOutboxRepo), uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		paymentRepo.On("FindByIntentID", txCtx, "intent_missing").Return(nil, nil)

		result, err := handler.Handle(ctx, SettleIntentCommand{IntentID: "intent_missing", Succeeded: true})

		assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
		assert.Nil(t, result)
	})

	t.Run("rolls back when saving the payment fails", func(t *testing.T) {
		paymentRepo := new(mockPaymentRepo)
		walletRepo := new(mockWalletRepo)
		outboxRepo := new(mockPaymentOutboxRepo)
		uow := new(mockPaymentUnitOfWork)
		handler := NewSettleIntentHandler(paymentRepo, walletRepo, outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		payment := newPendingPayment(t, userID, 250, 25)

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		paymentRepo.On("FindByIntentID", txCtx, "intent_123").Return(payment, nil)
		paymentRepo.On("Save", txCtx, payment).Return(errors.New("database error"))

		result, err := handler.Handle(ctx, SettleIntentCommand{IntentID: "intent_123", Succeeded: true})

		assert.Error(t, err)
		assert.Nil(t, result)

		uow.AssertExpectations(t)
	})
}
