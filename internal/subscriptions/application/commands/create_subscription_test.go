package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Oregand/obai-sub000/internal/catalog"
	paymentsDomain "github.com/Oregand/obai-sub000/internal/payments/domain"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/outbox"
	"github.com/Oregand/obai-sub000/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockSubscriptionRepo is a mock implementation of domain.Repository.
type mockSubscriptionRepo struct {
	mock.Mock
}

func (m *mockSubscriptionRepo) Save(ctx context.Context, subscription *domain.Subscription) error {
	args := m.Called(ctx, subscription)
	return args.Error(0)
}

func (m *mockSubscriptionRepo) FindActiveByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) ExpireDue(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// mockUserStateRepo is a mock implementation of domain.UserStateRepository.
type mockUserStateRepo struct {
	mock.Mock
}

func (m *mockUserStateRepo) UpdateSubscriptionState(ctx context.Context, userID uuid.UUID, tier catalog.TierID, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tier, expiresAt)
	return args.Error(0)
}

func (m *mockUserStateRepo) SubscriptionState(ctx context.Context, userID uuid.UUID) (catalog.TierID, *time.Time, error) {
	args := m.Called(ctx, userID)
	if args.Get(1) == nil {
		return args.Get(0).(catalog.TierID), nil, args.Error(2)
	}
	return args.Get(0).(catalog.TierID), args.Get(1).(*time.Time), args.Error(2)
}

// mockLedgerRepo is a mock implementation of paymentsDomain.Repository.
type mockLedgerRepo struct {
	mock.Mock
}

func (m *mockLedgerRepo) Save(ctx context.Context, payment *paymentsDomain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *mockLedgerRepo) FindByID(ctx context.Context, id uuid.UUID) (*paymentsDomain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentsDomain.Payment), args.Error(1)
}

func (m *mockLedgerRepo) FindByIntentID(ctx context.Context, intentID string) (*paymentsDomain.Payment, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentsDomain.Payment), args.Error(1)
}

func (m *mockLedgerRepo) FindByIdempotencyKey(ctx context.Context, key string) (*paymentsDomain.Payment, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentsDomain.Payment), args.Error(1)
}

// mockWalletRepo is a mock implementation of walletDomain.WalletRepository.
type mockWalletRepo struct {
	mock.Mock
}

func (m *mockWalletRepo) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockWalletRepo) TryDebit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, decimal.Decimal, error) {
	args := m.Called(ctx, userID, amount)
	return args.Bool(0), args.Get(1).(decimal.Decimal), args.Error(2)
}

func (m *mockWalletRepo) DebitClamped(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockWalletRepo) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// mockSubOutboxRepo is a mock implementation of outbox.Repository.
type mockSubOutboxRepo struct {
	mock.Mock
}

func (m *mockSubOutboxRepo) Save(ctx context.Context, msg *outbox.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockSubOutboxRepo) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockSubOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *mockSubOutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSubOutboxRepo) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	args := m.Called(ctx, id, errMsg, nextRetryAt)
	return args.Error(0)
}

func (m *mockSubOutboxRepo) MarkDead(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockSubOutboxRepo) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}

// mockSubUnitOfWork is a mock implementation of UnitOfWork.
type mockSubUnitOfWork struct {
	mock.Mock
}

func (m *mockSubUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockSubUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockSubUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestCreateSubscriptionHandler_Handle(t *testing.T) {
	userID := uuid.New()

	newHandler := func(subRepo *mockSubscriptionRepo, userState *mockUserStateRepo, ledger *mockLedgerRepo, wallet *mockWalletRepo, outboxRepo *mockSubOutboxRepo, uow *mockSubUnitOfWork) *CreateSubscriptionHandler {
		return NewCreateSubscriptionHandler(subRepo, userState, ledger, wallet, outboxRepo, uow)
	}

	t.Run("bills premium and credits 1000 bonus tokens in one transaction", func(t *testing.T) {
		subRepo := new(mockSubscriptionRepo)
		userState := new(mockUserStateRepo)
		ledger := new(mockLedgerRepo)
		wallet := new(mockWalletRepo)
		outboxRepo := new(mockSubOutboxRepo)
		uow := new(mockSubUnitOfWork)
		handler := newHandler(subRepo, userState, ledger, wallet, outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		ledger.On("Save", txCtx, mock.AnythingOfType("*domain.Payment")).Return(nil)
		subRepo.On("Save", txCtx, mock.AnythingOfType("*domain.Subscription")).Return(nil)
		userState.On("UpdateSubscriptionState", txCtx, userID, catalog.TierPremium, mock.AnythingOfType("time.Time")).Return(nil)
		wallet.On("Credit", txCtx, userID, decimal.NewFromInt(1000)).Return(decimal.NewFromInt(1000), nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, CreateSubscriptionCommand{UserID: userID, Tier: catalog.TierPremium})

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, catalog.TierPremium, result.Tier)
		assert.Equal(t, int64(1000), result.BonusCredited)
		assert.True(t, decimal.NewFromInt(1000).Equal(result.Balance))
		assert.WithinDuration(t, time.Now().UTC().Add(domain.BillingPeriod), result.ExpiresAt, 5*time.Second)

		savedPayment := ledger.Calls[0].Arguments.Get(1).(*paymentsDomain.Payment)
		assert.Equal(t, paymentsDomain.StatusCompleted, savedPayment.Status())
		assert.Equal(t, paymentsDomain.TypeSubscription, savedPayment.Type())
		assert.True(t, decimal.NewFromFloat(19.99).Equal(savedPayment.Amount()))

		subRepo.AssertExpectations(t)
		userState.AssertExpectations(t)
		wallet.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("rejects the free tier", func(t *testing.T) {
		handler := newHandler(new(mockSubscriptionRepo), new(mockUserStateRepo), new(mockLedgerRepo), new(mockWalletRepo), new(mockSubOutboxRepo), new(mockSubUnitOfWork))

		result, err := handler.Handle(context.Background(), CreateSubscriptionCommand{UserID: userID, Tier: catalog.TierFree})

		assert.ErrorIs(t, err, domain.ErrFreeTierNotBillable)
		assert.Nil(t, result)
	})

	t.Run("rejects an unknown tier", func(t *testing.T) {
		handler := newHandler(new(mockSubscriptionRepo), new(mockUserStateRepo), new(mockLedgerRepo), new(mockWalletRepo), new(mockSubOutboxRepo), new(mockSubUnitOfWork))

		result, err := handler.Handle(context.Background(), CreateSubscriptionCommand{UserID: userID, Tier: catalog.TierID("platinum")})

		assert.ErrorIs(t, err, catalog.ErrTierNotFound)
		assert.Nil(t, result)
	})

	t.Run("rolls back everything when the bonus credit fails", func(t *testing.T) {
		subRepo := new(mockSubscriptionRepo)
		userState := new(mockUserStateRepo)
		ledger := new(mockLedgerRepo)
		wallet := new(mockWalletRepo)
		outboxRepo := new(mockSubOutboxRepo)
		uow := new(mockSubUnitOfWork)
		handler := newHandler(subRepo, userState, ledger, wallet, outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		ledger.On("Save", txCtx, mock.AnythingOfType("*domain.Payment")).Return(nil)
		subRepo.On("Save", txCtx, mock.AnythingOfType("*domain.Subscription")).Return(nil)
		userState.On("UpdateSubscriptionState", txCtx, userID, catalog.TierVIP, mock.AnythingOfType("time.Time")).Return(nil)
		wallet.On("Credit", txCtx, userID, decimal.NewFromInt(3000)).Return(decimal.Zero, errors.New("database error"))

		result, err := handler.Handle(ctx, CreateSubscriptionCommand{UserID: userID, Tier: catalog.TierVIP})

		assert.Error(t, err)
		assert.Nil(t, result)

		uow.AssertExpectations(t)
		outboxRepo.AssertNotCalled(t, "SaveBatch", mock.Anything, mock.Anything)
	})

	t.Run("rolls back when the subscription row cannot be saved", func(t *testing.T) {
		subRepo := new(mockSubscriptionRepo)
		userState := new(mockUserStateRepo)
		ledger := new(mockLedgerRepo)
		wallet := new(mockWalletRepo)
		outboxRepo := new(mockSubOutboxRepo)
		uow := new(mockSubUnitOfWork)
		handler := newHandler(subRepo, userState, ledger, wallet, outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		ledger.On("Save", txCtx, mock.AnythingOfType("*domain.Payment")).Return(nil)
		subRepo.On("Save", txCtx, mock.AnythingOfType("*domain.Subscription")).Return(errors.New("database error"))

		result, err := handler.Handle(ctx, CreateSubscriptionCommand{UserID: userID, Tier: catalog.TierBasic})

		assert.Error(t, err)
		assert.Nil(t, result)

		wallet.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
		uow.AssertExpectations(t)
	})
}
