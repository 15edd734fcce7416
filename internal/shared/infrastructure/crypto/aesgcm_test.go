package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewAESGCMFromBase64Key(t *testing.T) {
	t.Run("accepts a 32-byte key", func(t *testing.T) {
		encrypter, err := NewAESGCMFromBase64Key(testKey(t))

		require.NoError(t, err)
		assert.NotNil(t, encrypter)
	})

	t.Run("rejects an empty key", func(t *testing.T) {
		_, err := NewAESGCMFromBase64Key("")
		assert.Error(t, err)
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		_, err := NewAESGCMFromBase64Key("not-valid-base64!!!")
		assert.Error(t, err)
	})

	t.Run("rejects a wrong-sized key", func(t *testing.T) {
		_, err := NewAESGCMFromBase64Key(base64.StdEncoding.EncodeToString([]byte("short")))
		assert.Error(t, err)
	})
}

func TestAESEncrypter_RoundTrip(t *testing.T) {
	encrypter, err := NewAESGCMFromBase64Key(testKey(t))
	require.NoError(t, err)

	t.Run("round-trips a payment method token", func(t *testing.T) {
		token := []byte("pm_1NXWPnLkdIwHu7ixQAbT3lPF")

		sealed, err := encrypter.Encrypt(token)
		require.NoError(t, err)
		assert.NotEqual(t, token, sealed)

		opened, err := encrypter.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, token, opened)
	})

	t.Run("random nonce makes ciphertexts differ", func(t *testing.T) {
		first, err := encrypter.Encrypt([]byte("pm_123"))
		require.NoError(t, err)
		second, err := encrypter.Encrypt([]byte("pm_123"))
		require.NoError(t, err)

		assert.NotEqual(t, first, second)
	})

	t.Run("rejects tampered ciphertext", func(t *testing.T) {
		sealed, err := encrypter.Encrypt([]byte("pm_123"))
		require.NoError(t, err)
		sealed[len(sealed)-1] ^= 0xFF

		_, err = encrypter.Decrypt(sealed)
		assert.Error(t, err)
	})

	t.Run("rejects ciphertext shorter than the nonce", func(t *testing.T) {
		_, err := encrypter.Decrypt([]byte("short"))
		assert.Error(t, err)
	})

	t.Run("rejects a different key", func(t *testing.T) {
		otherKeyBytes := make([]byte, 32)
		for i := range otherKeyBytes {
			otherKeyBytes[i] = byte(i + 100)
		}
		other, err := NewAESGCMFromBase64Key(base64.StdEncoding.EncodeToString(otherKeyBytes))
		require.NoError(t, err)

		sealed, err := encrypter.Encrypt([]byte("pm_123"))
		require.NoError(t, err)

		_, err = other.Decrypt(sealed)
		assert.Error(t, err)
	})
}
