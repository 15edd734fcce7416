package application

import (
	"context"
	"errors"
	"testing"
	"time"

	paymentsDomain "github.com/Oregand/obai-sub000/internal/payments/domain"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/outbox"
	"github.com/Oregand/obai-sub000/internal/topup/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockSettingsRepo is a mock implementation of domain.Repository.
type mockSettingsRepo struct {
	mock.Mock
}

func (m *mockSettingsRepo) Save(ctx context.Context, settings *domain.Settings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func (m *mockSettingsRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Settings, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Settings), args.Error(1)
}

func (m *mockSettingsRepo) ListEnabled(ctx context.Context, afterUserID uuid.UUID, limit int) ([]*domain.Settings, error) {
	args := m.Called(ctx, afterUserID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Settings), args.Error(1)
}

// mockTopupWalletRepo is a mock implementation of walletDomain.WalletRepository.
type mockTopupWalletRepo struct {
	mock.Mock
}

func (m *mockTopupWalletRepo) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockTopupWalletRepo) TryDebit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, decimal.Decimal, error) {
	args := m.Called(ctx, userID, amount)
	return args.Bool(0), args.Get(1).(decimal.Decimal), args.Error(2)
}

func (m *mockTopupWalletRepo) DebitClamped(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *mockTopupWalletRepo) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// mockTopupLedgerRepo is a mock implementation of paymentsDomain.Repository.
type mockTopupLedgerRepo struct {
	mock.Mock
}

func (m *mockTopupLedgerRepo) Save(ctx context.Context, payment *paymentsDomain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *mockTopupLedgerRepo) FindByID(ctx context.Context, id uuid.UUID) (*paymentsDomain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentsDomain.Payment), args.Error(1)
}

func (m *mockTopupLedgerRepo) FindByIntentID(ctx context.Context, intentID string) (*paymentsDomain.Payment, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentsDomain.Payment), args.Error(1)
}

func (m *mockTopupLedgerRepo) FindByIdempotencyKey(ctx context.Context, key string) (*paymentsDomain.Payment, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentsDomain.Payment), args.Error(1)
}

// mockTopupOutboxRepo is a mock implementation of outbox.Repository.
type mockTopupOutboxRepo struct {
	mock.Mock
}

func (m *mockTopupOutboxRepo) Save(ctx context.Context, msg *outbox.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockTopupOutboxRepo) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockTopupOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *mockTopupOutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockTopupOutboxRepo) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	args := m.Called(ctx, id, errMsg, nextRetryAt)
	return args.Error(0)
}

func (m *mockTopupOutboxRepo) MarkDead(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockTopupOutboxRepo) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}

// mockTopupUnitOfWork is a mock implementation of UnitOfWork.
type mockTopupUnitOfWork struct {
	mock.Mock
}

func (m *mockTopupUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockTopupUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockTopupUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// mockLease is a mock implementation of Lease.
type mockLease struct {
	mock.Mock
}

func (m *mockLease) Acquire(ctx context.Context, userID uuid.UUID, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, userID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockLease) Release(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func enabledSettings(t *testing.T, userID uuid.UUID, threshold int64, packageID string) *domain.Settings {
	t.Helper()
	settings, err := domain.NewSettings(userID, true, decimal.NewFromInt(threshold), packageID, "pm_123")
	require.NoError(t, err)
	return settings
}

func TestProcessor_ProcessOnce(t *testing.T) {
	userID := uuid.New()

	type fixtures struct {
		settingsRepo *mockSettingsRepo
		wallet       *mockTopupWalletRepo
		ledger       *mockTopupLedgerRepo
		outboxRepo   *mockTopupOutboxRepo
		uow          *mockTopupUnitOfWork
		lease        *mockLease
		processor    *Processor
	}

	newFixtures := func() fixtures {
		f := fixtures{
			settingsRepo: new(mockSettingsRepo),
			wallet:       new(mockTopupWalletRepo),
			ledger:       new(mockTopupLedgerRepo),
			outboxRepo:   new(mockTopupOutboxRepo),
			uow:          new(mockTopupUnitOfWork),
			lease:        new(mockLease),
		}
		f.processor = NewProcessor(
			f.settingsRepo, f.wallet, f.ledger, f.outboxRepo, f.uow, f.lease,
			DefaultProcessorConfig(), nil, nil,
		)
		return f
	}

	t.Run("tops up a balance below the threshold with the configured package", func(t *testing.T) {
		f := newFixtures()

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")
		settings := enabledSettings(t, userID, 10, "basic")

		f.settingsRepo.On("ListEnabled", ctx, uuid.Nil, 100).Return([]*domain.Settings{settings}, nil)
		f.lease.On("Acquire", ctx, userID, 2*time.Minute).Return(true, nil)
		f.wallet.On("Balance", ctx, userID).Return(decimal.NewFromInt(8), nil)
		f.uow.On("Begin", ctx).Return(txCtx, nil)
		f.uow.On("Commit", txCtx).Return(nil)
		f.ledger.On("Save", txCtx, mock.AnythingOfType("*domain.Payment")).Return(nil)
		f.wallet.On("Credit", txCtx, userID, decimal.NewFromInt(100)).Return(decimal.NewFromInt(108), nil)
		f.settingsRepo.On("Save", txCtx, settings).Return(nil)
		f.outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		stats, err := f.processor.ProcessOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, RunStats{Processed: 1, ToppedUp: 1}, stats)

		savedPayment := f.ledger.Calls[0].Arguments.Get(1).(*paymentsDomain.Payment)
		assert.Equal(t, paymentsDomain.StatusCompleted, savedPayment.Status())
		assert.Equal(t, paymentsDomain.TypeAutoTopup, savedPayment.Type())
		assert.Equal(t, "topup:"+userID.String()+":0", savedPayment.IdempotencyKey())
		assert.Equal(t, int64(100), savedPayment.TotalTokens())
		assert.NotNil(t, settings.LastTopupAt())

		f.wallet.AssertExpectations(t)
		f.uow.AssertExpectations(t)
		f.outboxRepo.AssertExpectations(t)
	})

	t.Run("skips a balance at or above the threshold", func(t *testing.T) {
		f := newFixtures()

		ctx := context.Background()
		settings := enabledSettings(t, userID, 10, "basic")

		f.settingsRepo.On("ListEnabled", ctx, uuid.Nil, 100).Return([]*domain.Settings{settings}, nil)
		f.lease.On("Acquire", ctx, userID, 2*time.Minute).Return(true, nil)
		f.wallet.On("Balance", ctx, userID).Return(decimal.NewFromInt(10), nil)
		f.lease.On("Release", ctx, userID).Return(nil)

		stats, err := f.processor.ProcessOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, RunStats{Processed: 1, Skipped: 1}, stats)
		f.uow.AssertNotCalled(t, "Begin", mock.Anything)
		f.wallet.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
		f.lease.AssertExpectations(t)
	})

	t.Run("skips a user whose lease is held by another run", func(t *testing.T) {
		f := newFixtures()

		ctx := context.Background()
		settings := enabledSettings(t, userID, 10, "basic")

		f.settingsRepo.On("ListEnabled", ctx, uuid.Nil, 100).Return([]*domain.Settings{settings}, nil)
		f.lease.On("Acquire", ctx, userID, 2*time.Minute).Return(false, nil)

		stats, err := f.processor.ProcessOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, RunStats{Processed: 1, Skipped: 1}, stats)
		f.wallet.AssertNotCalled(t, "Balance", mock.Anything, mock.Anything)
	})

	t.Run("aborts the batch when the lease store fails", func(t *testing.T) {
		f := newFixtures()

		ctx := context.Background()
		settings := enabledSettings(t, userID, 10, "basic")

		f.settingsRepo.On("ListEnabled", ctx, uuid.Nil, 100).Return([]*domain.Settings{settings}, nil)
		f.lease.On("Acquire", ctx, userID, 2*time.Minute).Return(false, errors.New("redis down"))

		_, err := f.processor.ProcessOnce(ctx)

		assert.Error(t, err)
		f.wallet.AssertNotCalled(t, "Balance", mock.Anything, mock.Anything)
		f.uow.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("treats a duplicate ledger key as an already-handled trigger", func(t *testing.T) {
		f := newFixtures()

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")
		settings := enabledSettings(t, userID, 10, "basic")

		f.settingsRepo.On("ListEnabled", ctx, uuid.Nil, 100).Return([]*domain.Settings{settings}, nil)
		f.lease.On("Acquire", ctx, userID, 2*time.Minute).Return(true, nil)
		f.wallet.On("Balance", ctx, userID).Return(decimal.NewFromInt(8), nil)
		f.uow.On("Begin", ctx).Return(txCtx, nil)
		f.uow.On("Rollback", txCtx).Return(nil)
		f.ledger.On("Save", txCtx, mock.AnythingOfType("*domain.Payment")).Return(paymentsDomain.ErrDuplicatePayment)
		f.lease.On("Release", ctx, userID).Return(nil)

		stats, err := f.processor.ProcessOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, RunStats{Processed: 1, Skipped: 1}, stats)
		f.wallet.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a failing user does not stop the rest of the batch", func(t *testing.T) {
		f := newFixtures()

		ctx := context.Background()
		txCtx := context.WithValue(ctx, "tx", "transaction")
		brokenUser := uuid.New()
		broken := enabledSettings(t, brokenUser, 10, "basic")
		healthy := enabledSettings(t, userID, 10, "starter")

		f.settingsRepo.On("ListEnabled", ctx, uuid.Nil, 100).Return([]*domain.Settings{broken, healthy}, nil)
		f.lease.On("Acquire", ctx, brokenUser, 2*time.Minute).Return(true, nil)
		f.lease.On("Acquire", ctx, userID, 2*time.Minute).Return(true, nil)
		f.wallet.On("Balance", ctx, brokenUser).Return(decimal.Zero, errors.New("database error"))
		f.wallet.On("Balance", ctx, userID).Return(decimal.NewFromInt(3), nil)
		f.uow.On("Begin", ctx).Return(txCtx, nil)
		f.uow.On("Commit", txCtx).Return(nil)
		f.ledger.On("Save", txCtx, mock.AnythingOfType("*domain.Payment")).Return(nil)
		f.wallet.On("Credit", txCtx, userID, decimal.NewFromInt(50)).Return(decimal.NewFromInt(53), nil)
		f.settingsRepo.On("Save", txCtx, healthy).Return(nil)
		f.outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		stats, err := f.processor.ProcessOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, RunStats{Processed: 2, ToppedUp: 1, Failed: 1}, stats)
	})

	t.Run("pages through enabled settings using the batch size", func(t *testing.T) {
		f := newFixtures()
		f.processor = NewProcessor(
			f.settingsRepo, f.wallet, f.ledger, f.outboxRepo, f.uow, f.lease,
			ProcessorConfig{Interval: time.Minute, LeaseTTL: 2 * time.Minute, BatchSize: 1}, nil, nil,
		)

		ctx := context.Background()
		firstUser := uuid.New()
		secondUser := uuid.New()
		first := enabledSettings(t, firstUser, 10, "basic")
		second := enabledSettings(t, secondUser, 10, "basic")

		f.settingsRepo.On("ListEnabled", ctx, uuid.Nil, 1).Return([]*domain.Settings{first}, nil)
		f.settingsRepo.On("ListEnabled", ctx, firstUser, 1).Return([]*domain.Settings{second}, nil)
		f.settingsRepo.On("ListEnabled", ctx, secondUser, 1).Return([]*domain.Settings{}, nil)
		f.lease.On("Acquire", ctx, mock.Anything, 2*time.Minute).Return(true, nil)
		f.wallet.On("Balance", ctx, firstUser).Return(decimal.NewFromInt(50), nil)
		f.wallet.On("Balance", ctx, secondUser).Return(decimal.NewFromInt(50), nil)
		f.lease.On("Release", ctx, mock.Anything).Return(nil)

		stats, err := f.processor.ProcessOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, RunStats{Processed: 2, Skipped: 2}, stats)
		f.settingsRepo.AssertExpectations(t)
	})

	t.Run("aborts when the settings listing fails", func(t *testing.T) {
		f := newFixtures()

		ctx := context.Background()
		f.settingsRepo.On("ListEnabled", ctx, uuid.Nil, 100).Return(nil, errors.New("database error"))

		_, err := f.processor.ProcessOnce(ctx)

		assert.Error(t, err)
	})
}
