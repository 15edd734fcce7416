// Package api provides the HTTP API for the token economy: balances, message
// charging, purchases, subscriptions and auto-topup settings.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Oregand/obai-sub000/pkg/observability"
)

// Server is the HTTP API server.
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	handler *EconomyHandler
	health  *observability.HealthRegistry
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server. health may be nil; readiness then
// reports ready unconditionally.
func NewServer(cfg ServerConfig, handler *EconomyHandler, health *observability.HealthRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		logger:  logger,
		handler: handler,
		health:  health,
	}

	// Register routes
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.withRequestContext(s.mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	// Health checks
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)

	// Wallet
	s.mux.HandleFunc("GET /api/v1/users/{userID}/balance", s.handler.GetBalance)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/free-messages", s.handler.GetFreeMessages)
	s.mux.HandleFunc("POST /api/v1/users/{userID}/messages/charge", s.handler.ChargeMessage)
	s.mux.HandleFunc("POST /api/v1/messages/{messageID}/unlock", s.handler.UnlockMessage)

	// Purchases
	s.mux.HandleFunc("POST /api/v1/purchases", s.handler.CreatePurchase)
	s.mux.HandleFunc("POST /api/v1/purchases/{paymentID}/complete", s.handler.CompletePurchase)
	s.mux.HandleFunc("POST /api/v1/webhooks/payment", s.handler.PaymentWebhook)

	// Subscriptions
	s.mux.HandleFunc("POST /api/v1/subscriptions", s.handler.CreateSubscription)
	s.mux.HandleFunc("GET /api/v1/users/{userID}/subscription", s.handler.GetSubscription)

	// Auto-topup settings
	s.mux.HandleFunc("GET /api/v1/users/{userID}/topup-settings", s.handler.GetTopupSettings)
	s.mux.HandleFunc("PUT /api/v1/users/{userID}/topup-settings", s.handler.UpdateTopupSettings)

	// Catalog
	s.mux.HandleFunc("GET /api/v1/catalog/packages", s.handler.ListPackages)
	s.mux.HandleFunc("GET /api/v1/catalog/tiers", s.handler.ListTiers)
	s.mux.HandleFunc("GET /api/v1/catalog/custom-quote", s.handler.CustomQuote)
}

// withRequestContext assigns each request a fresh request ID and propagates
// the caller's correlation ID (or mints one) so both show up in every log
// record downstream.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.NewRequestContext(r.Context(), r.Header.Get("X-Correlation-ID"))
		w.Header().Set("X-Correlation-ID", observability.CorrelationIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleHealth handles liveness requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles readiness requests. Unhealthy dependencies take the
// server out of rotation; degraded ones do not.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	overall := s.health.GetOverallHealth(r.Context())
	status := http.StatusOK
	if overall.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, overall)
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		"addr", s.server.Addr,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Log error but can't do much at this point
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
