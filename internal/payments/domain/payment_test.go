package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPayment(t *testing.T) *Payment {
	t.Helper()
	payment, err := NewPayment(
		uuid.New(),
		decimal.RequireFromString("4.99"),
		"USD",
		TypeTokenPurchase,
		100,
		0,
		"purchase:test:"+uuid.NewString(),
	)
	require.NoError(t, err)
	return payment
}

func TestNewPayment(t *testing.T) {
	t.Run("creates a pending payment", func(t *testing.T) {
		payment := newTestPayment(t)

		assert.Equal(t, StatusPending, payment.Status())
		assert.True(t, payment.IsPending())
		assert.Nil(t, payment.CompletedAt())
		assert.Equal(t, "USD", payment.Currency())
	})

	t.Run("defaults the currency", func(t *testing.T) {
		payment, err := NewPayment(uuid.New(), decimal.NewFromInt(5), "", TypeTip, 0, 0, "tip:1")

		require.NoError(t, err)
		assert.Equal(t, "USD", payment.Currency())
	})

	t.Run("rejects a non-positive amount", func(t *testing.T) {
		_, err := NewPayment(uuid.New(), decimal.Zero, "USD", TypeTokenPurchase, 100, 0, "k")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("rejects an empty idempotency key", func(t *testing.T) {
		_, err := NewPayment(uuid.New(), decimal.NewFromInt(5), "USD", TypeTokenPurchase, 100, 0, "  ")
		assert.ErrorIs(t, err, ErrEmptyIdempotencyKey)
	})
}

func TestPayment_Complete(t *testing.T) {
	t.Run("completes a pending payment and raises an event", func(t *testing.T) {
		payment := newTestPayment(t)

		require.NoError(t, payment.Complete())

		assert.Equal(t, StatusCompleted, payment.Status())
		assert.NotNil(t, payment.CompletedAt())

		events := payment.DomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, PaymentCompletedRoutingKey, events[0].RoutingKey())
	})

	t.Run("cannot complete twice", func(t *testing.T) {
		payment := newTestPayment(t)
		require.NoError(t, payment.Complete())

		assert.ErrorIs(t, payment.Complete(), ErrPaymentNotPending)
	})

	t.Run("cannot complete a failed payment", func(t *testing.T) {
		payment := newTestPayment(t)
		require.NoError(t, payment.Fail("expired"))

		assert.ErrorIs(t, payment.Complete(), ErrPaymentNotPending)
	})
}

func TestPayment_Fail(t *testing.T) {
	t.Run("fails a pending payment with a reason", func(t *testing.T) {
		payment := newTestPayment(t)

		require.NoError(t, payment.Fail("underpaid"))

		assert.Equal(t, StatusFailed, payment.Status())
		assert.Equal(t, "underpaid", payment.FailureReason())

		events := payment.DomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, PaymentFailedRoutingKey, events[0].RoutingKey())
	})

	t.Run("cannot fail a completed payment", func(t *testing.T) {
		payment := newTestPayment(t)
		require.NoError(t, payment.Complete())

		assert.ErrorIs(t, payment.Fail("late webhook"), ErrPaymentNotPending)
	})
}

func TestPayment_TotalTokens(t *testing.T) {
	payment, err := NewPayment(uuid.New(), decimal.NewFromInt(10), "USD", TypeTokenPurchase, 200, 10, "k")
	require.NoError(t, err)

	assert.Equal(t, int64(210), payment.TotalTokens())
}
