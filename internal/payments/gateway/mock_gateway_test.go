package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGateway(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending intent with checkout details", func(t *testing.T) {
		gw := NewMockGateway(1, 0, "secret")

		intent, err := gw.CreateIntent(ctx, CreateIntentRequest{
			Amount:   decimal.NewFromFloat(4.99),
			Currency: "USD",
		})

		require.NoError(t, err)
		assert.Equal(t, IntentPending, intent.Status)
		assert.NotEmpty(t, intent.Address)
		assert.NotEmpty(t, intent.CheckoutURL)
	})

	t.Run("advances pending through processing to succeeded", func(t *testing.T) {
		gw := NewMockGateway(1, 0, "secret")

		intent, err := gw.CreateIntent(ctx, CreateIntentRequest{Amount: decimal.NewFromInt(5)})
		require.NoError(t, err)

		status, err := gw.GetIntentStatus(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, IntentProcessing, status)

		status, err = gw.GetIntentStatus(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, IntentSucceeded, status)

		// Terminal status is sticky.
		status, err = gw.GetIntentStatus(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, IntentSucceeded, status)
	})

	t.Run("fails every intent at failure rate 1", func(t *testing.T) {
		gw := NewMockGateway(1, 1, "secret")

		intent, err := gw.CreateIntent(ctx, CreateIntentRequest{Amount: decimal.NewFromInt(5)})
		require.NoError(t, err)

		_, err = gw.GetIntentStatus(ctx, intent.ID)
		require.NoError(t, err)

		status, err := gw.GetIntentStatus(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, IntentFailed, status)
	})

	t.Run("returns ErrIntentNotFound for an unknown intent", func(t *testing.T) {
		gw := NewMockGateway(1, 0, "secret")

		_, err := gw.GetIntentStatus(ctx, "missing")
		assert.ErrorIs(t, err, ErrIntentNotFound)
	})
}

func TestMockGateway_VerifyWebhook(t *testing.T) {
	gw := NewMockGateway(1, 0, "secret")
	payload := []byte(`{"intent_id":"intent_123","status":"succeeded"}`)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	t.Run("accepts a valid signature", func(t *testing.T) {
		assert.NoError(t, gw.VerifyWebhook(payload, signature))
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		err := gw.VerifyWebhook([]byte(`{"intent_id":"other"}`), signature)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rejects a wrong signature", func(t *testing.T) {
		err := gw.VerifyWebhook(payload, "deadbeef")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}
