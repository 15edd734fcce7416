package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// MockGateway simulates the provider for local development and tests.
// Intents advance pending -> processing -> succeeded/failed on each status
// poll; the failure rate and seed are fixed at construction so tests can be
// deterministic.
type MockGateway struct {
	mu            sync.Mutex
	rng           *rand.Rand
	intents       map[string]*Intent
	failureRate   float64
	webhookSecret string
}

// NewMockGateway creates a mock with the given seed and failure rate.
func NewMockGateway(seed int64, failureRate float64, webhookSecret string) *MockGateway {
	return &MockGateway{
		rng:           rand.New(rand.NewSource(seed)),
		intents:       make(map[string]*Intent),
		failureRate:   failureRate,
		webhookSecret: webhookSecret,
	}
}

// CreateIntent opens a simulated payment intent.
func (g *MockGateway) CreateIntent(_ context.Context, req CreateIntentRequest) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := "mock_" + uuid.NewString()
	intent := &Intent{
		ID:          id,
		Status:      IntentPending,
		Address:     fmt.Sprintf("bc1q%x", g.rng.Uint64()),
		CheckoutURL: "https://pay.mock.local/checkout/" + id,
		QRCode:      "data:image/png;base64,mock-" + id,
	}
	g.intents[id] = intent
	return cloneIntent(intent), nil
}

// GetIntentStatus advances the intent one step and returns the new status.
func (g *MockGateway) GetIntentStatus(_ context.Context, intentID string) (IntentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[intentID]
	if !ok {
		return "", ErrIntentNotFound
	}

	switch intent.Status {
	case IntentPending:
		intent.Status = IntentProcessing
	case IntentProcessing:
		if g.rng.Float64() < g.failureRate {
			intent.Status = IntentFailed
		} else {
			intent.Status = IntentSucceeded
		}
	}
	return intent.Status, nil
}

// VerifyWebhook checks an HMAC-SHA256 signature, same scheme as the real
// provider.
func (g *MockGateway) VerifyWebhook(payload []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Settle forces an intent into a terminal status. Test helper.
func (g *MockGateway) Settle(intentID string, status IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if intent, ok := g.intents[intentID]; ok {
		intent.Status = status
	}
}

func cloneIntent(intent *Intent) *Intent {
	copied := *intent
	return &copied
}
