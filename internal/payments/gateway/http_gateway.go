package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config configures the HTTP gateway client.
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
}

// HTTPGateway talks JSON over HTTP to the crypto payment provider. All
// provider calls run through a circuit breaker so a degraded provider sheds
// load fast instead of tying up request handlers.
type HTTPGateway struct {
	config  Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*Intent]
}

// NewHTTPGateway creates a new gateway client.
func NewHTTPGateway(config Config) *HTTPGateway {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &HTTPGateway{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*Intent](settings),
	}
}

// CreateIntent opens a payment intent at the provider.
func (g *HTTPGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	intent, err := g.breaker.Execute(func() (*Intent, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		return g.doIntentRequest(ctx, http.MethodPost, "/v1/intents", bytes.NewReader(body))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrGatewayUnavailable
		}
		return nil, err
	}
	return intent, nil
}

// GetIntentStatus polls the provider for the intent's current status.
func (g *HTTPGateway) GetIntentStatus(ctx context.Context, intentID string) (IntentStatus, error) {
	intent, err := g.breaker.Execute(func() (*Intent, error) {
		return g.doIntentRequest(ctx, http.MethodGet, "/v1/intents/"+intentID, nil)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", ErrGatewayUnavailable
		}
		return "", err
	}
	return intent.Status, nil
}

// VerifyWebhook checks the provider's HMAC-SHA256 signature over the payload.
func (g *HTTPGateway) VerifyWebhook(payload []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(g.config.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func (g *HTTPGateway) doIntentRequest(ctx context.Context, method, path string, body io.Reader) (*Intent, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, g.config.BaseURL+path, body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrIntentNotFound
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("decoding gateway response: %w", err)
	}
	return &intent, nil
}
