package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Oregand/obai-sub000/internal/catalog"
	paymentCommands "github.com/Oregand/obai-sub000/internal/payments/application/commands"
	paymentsDomain "github.com/Oregand/obai-sub000/internal/payments/domain"
	"github.com/Oregand/obai-sub000/internal/payments/gateway"
	subCommands "github.com/Oregand/obai-sub000/internal/subscriptions/application/commands"
	subQueries "github.com/Oregand/obai-sub000/internal/subscriptions/application/queries"
	subDomain "github.com/Oregand/obai-sub000/internal/subscriptions/domain"
	topupApplication "github.com/Oregand/obai-sub000/internal/topup/application"
	topupDomain "github.com/Oregand/obai-sub000/internal/topup/domain"
	walletCommands "github.com/Oregand/obai-sub000/internal/wallet/application/commands"
	walletQueries "github.com/Oregand/obai-sub000/internal/wallet/application/queries"
	walletDomain "github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EconomyHandler handles token economy API requests.
type EconomyHandler struct {
	chargeMessage      *walletCommands.ChargeMessageHandler
	unlockMessage      *walletCommands.UnlockMessageHandler
	getBalance         *walletQueries.GetBalanceHandler
	freeMessages       *walletQueries.FreeMessagesHandler
	createPurchase     *paymentCommands.CreatePurchaseHandler
	completePurchase   *paymentCommands.CompletePurchaseHandler
	settleIntent       *paymentCommands.SettleIntentHandler
	gw                 gateway.Gateway
	createSubscription *subCommands.CreateSubscriptionHandler
	getSubscription    *subQueries.GetSubscriptionHandler
	topupSettings      *topupApplication.SettingsService
	logger             *slog.Logger
}

// EconomyHandlerConfig holds dependencies for the economy handler.
type EconomyHandlerConfig struct {
	ChargeMessage      *walletCommands.ChargeMessageHandler
	UnlockMessage      *walletCommands.UnlockMessageHandler
	GetBalance         *walletQueries.GetBalanceHandler
	FreeMessages       *walletQueries.FreeMessagesHandler
	CreatePurchase     *paymentCommands.CreatePurchaseHandler
	CompletePurchase   *paymentCommands.CompletePurchaseHandler
	SettleIntent       *paymentCommands.SettleIntentHandler
	Gateway            gateway.Gateway
	CreateSubscription *subCommands.CreateSubscriptionHandler
	GetSubscription    *subQueries.GetSubscriptionHandler
	TopupSettings      *topupApplication.SettingsService
	Logger             *slog.Logger
}

// NewEconomyHandler creates a new economy handler.
func NewEconomyHandler(cfg EconomyHandlerConfig) *EconomyHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &EconomyHandler{
		chargeMessage:      cfg.ChargeMessage,
		unlockMessage:      cfg.UnlockMessage,
		getBalance:         cfg.GetBalance,
		freeMessages:       cfg.FreeMessages,
		createPurchase:     cfg.CreatePurchase,
		completePurchase:   cfg.CompletePurchase,
		settleIntent:       cfg.SettleIntent,
		gw:                 cfg.Gateway,
		createSubscription: cfg.CreateSubscription,
		getSubscription:    cfg.GetSubscription,
		topupSettings:      cfg.TopupSettings,
		logger:             cfg.Logger,
	}
}

// GetBalance handles GET /api/v1/users/{userID}/balance
func (h *EconomyHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	result, err := h.getBalance.Handle(r.Context(), walletQueries.GetBalanceQuery{UserID: userID})
	if err != nil {
		h.logger.Error("failed to get balance", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get balance")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": result.UserID,
		"balance": result.Balance,
	})
}

// GetFreeMessages handles GET /api/v1/users/{userID}/free-messages
func (h *EconomyHandler) GetFreeMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	status, err := h.freeMessages.Handle(r.Context(), walletQueries.FreeMessagesQuery{UserID: userID})
	if err != nil {
		h.logger.Error("failed to get free message quota", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get free message quota")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"has_free_messages": status.HasFreeMessages,
		"used":              status.Used,
		"remaining":         status.Remaining,
		"limit":             status.Limit,
	})
}

// ChargeMessage handles POST /api/v1/users/{userID}/messages/charge
func (h *EconomyHandler) ChargeMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	var req struct {
		ChatID    uuid.UUID `json:"chat_id"`
		PersonaID uuid.UUID `json:"persona_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ChatID == uuid.Nil || req.PersonaID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "chat_id and persona_id are required")
		return
	}

	result, err := h.chargeMessage.Handle(r.Context(), walletCommands.ChargeMessageCommand{
		UserID:    userID,
		ChatID:    req.ChatID,
		PersonaID: req.PersonaID,
	})
	if err != nil {
		h.writeDomainError(w, err, "failed to charge message")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message_id":     result.MessageID,
		"cost":           result.Cost,
		"free_message":   result.FreeMessage,
		"free_remaining": result.FreeRemaining,
		"balance":        result.Balance,
	})
}

// UnlockMessage handles POST /api/v1/messages/{messageID}/unlock
func (h *EconomyHandler) UnlockMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathUUID(w, r, "messageID")
	if !ok {
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := h.unlockMessage.Handle(r.Context(), walletCommands.UnlockMessageCommand{
		MessageID: messageID,
		UserID:    req.UserID,
	})
	if err != nil {
		h.writeDomainError(w, err, "failed to unlock message")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message_id": result.MessageID,
		"price":      result.Price,
		"balance":    result.Balance,
	})
}

// CreatePurchase handles POST /api/v1/purchases
func (h *EconomyHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       uuid.UUID `json:"user_id"`
		PackageID    string    `json:"package_id"`
		CustomTokens int64     `json:"custom_tokens"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := h.createPurchase.Handle(r.Context(), paymentCommands.CreatePurchaseCommand{
		UserID:       req.UserID,
		PackageID:    req.PackageID,
		CustomTokens: req.CustomTokens,
	})
	if err != nil {
		h.writeDomainError(w, err, "failed to create purchase")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"payment_id":   result.PaymentID,
		"intent_id":    result.IntentID,
		"address":      result.Address,
		"checkout_url": result.CheckoutURL,
		"qr_code":      result.QRCode,
		"amount":       result.Amount,
		"tokens":       result.Tokens,
		"bonus":        result.Bonus,
	})
}

// CompletePurchase handles POST /api/v1/purchases/{paymentID}/complete
func (h *EconomyHandler) CompletePurchase(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathUUID(w, r, "paymentID")
	if !ok {
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := h.completePurchase.Handle(r.Context(), paymentCommands.CompletePurchaseCommand{
		PaymentID: paymentID,
		UserID:    req.UserID,
	})
	if err != nil {
		h.writeDomainError(w, err, "failed to complete purchase")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payment_id":      result.PaymentID,
		"status":          result.Status,
		"tokens_credited": result.TokensCredited,
		"balance":         result.Balance,
	})
}

// PaymentWebhook handles POST /api/v1/webhooks/payment. The payload is only
// trusted after its HMAC signature verifies against the shared secret.
func (h *EconomyHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := h.gw.VerifyWebhook(payload, r.Header.Get("X-Gateway-Signature")); err != nil {
		h.logger.Warn("rejected webhook with bad signature", "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid webhook signature")
		return
	}

	var event struct {
		IntentID string `json:"intent_id"`
		Status   string `json:"status"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}
	if event.IntentID == "" {
		writeError(w, http.StatusBadRequest, "intent_id is required")
		return
	}

	status := gateway.IntentStatus(event.Status)
	if !status.Terminal() {
		// Non-terminal notifications carry nothing to settle.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	result, err := h.settleIntent.Handle(r.Context(), paymentCommands.SettleIntentCommand{
		IntentID:  event.IntentID,
		Succeeded: status == gateway.IntentSucceeded,
		Reason:    event.Reason,
	})
	if err != nil {
		h.writeDomainError(w, err, "failed to settle webhook")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payment_id": result.PaymentID,
		"status":     result.Status,
	})
}

// CreateSubscription handles POST /api/v1/subscriptions
func (h *EconomyHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uuid.UUID `json:"user_id"`
		Tier   string    `json:"tier"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil || req.Tier == "" {
		writeError(w, http.StatusBadRequest, "user_id and tier are required")
		return
	}

	result, err := h.createSubscription.Handle(r.Context(), subCommands.CreateSubscriptionCommand{
		UserID: req.UserID,
		Tier:   catalog.TierID(req.Tier),
	})
	if err != nil {
		h.writeDomainError(w, err, "failed to create subscription")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"subscription_id": result.SubscriptionID,
		"payment_id":      result.PaymentID,
		"tier":            result.Tier,
		"expires_at":      result.ExpiresAt.Format(time.RFC3339),
		"bonus_credited":  result.BonusCredited,
		"balance":         result.Balance,
	})
}

// GetSubscription handles GET /api/v1/users/{userID}/subscription
func (h *EconomyHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	view, err := h.getSubscription.Handle(r.Context(), subQueries.GetSubscriptionQuery{UserID: userID})
	if err != nil {
		h.logger.Error("failed to get subscription", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get subscription")
		return
	}

	writeJSON(w, http.StatusOK, subscriptionDTO(view))
}

// GetTopupSettings handles GET /api/v1/users/{userID}/topup-settings
func (h *EconomyHandler) GetTopupSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	settings, err := h.topupSettings.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get topup settings", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get topup settings")
		return
	}

	writeJSON(w, http.StatusOK, topupSettingsDTO(settings))
}

// UpdateTopupSettings handles PUT /api/v1/users/{userID}/topup-settings
func (h *EconomyHandler) UpdateTopupSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}

	var req struct {
		Enabled         bool            `json:"enabled"`
		Threshold       decimal.Decimal `json:"threshold"`
		PackageID       string          `json:"package_id"`
		PaymentMethodID string          `json:"payment_method_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	settings, err := h.topupSettings.Update(r.Context(), topupApplication.UpdateSettingsCommand{
		UserID:          userID,
		Enabled:         req.Enabled,
		Threshold:       req.Threshold,
		PackageID:       req.PackageID,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		h.writeDomainError(w, err, "failed to update topup settings")
		return
	}

	writeJSON(w, http.StatusOK, topupSettingsDTO(settings))
}

// ListPackages handles GET /api/v1/catalog/packages
func (h *EconomyHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	packages := catalog.Packages()
	dtos := make([]map[string]any, len(packages))
	for i, pkg := range packages {
		dtos[i] = map[string]any{
			"id":     pkg.ID,
			"tokens": pkg.Tokens,
			"bonus":  pkg.Bonus,
			"price":  pkg.Price,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": dtos})
}

// ListTiers handles GET /api/v1/catalog/tiers
func (h *EconomyHandler) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers := catalog.Tiers()
	dtos := make([]map[string]any, len(tiers))
	for i, tier := range tiers {
		dtos[i] = map[string]any{
			"id":                  tier.ID,
			"price":               tier.Price,
			"bonus_tokens":        tier.BonusTokens,
			"discount_multiplier": tier.DiscountMultiplier,
			"chat_limit":          tier.ChatLimit,
			"exclusive_personas":  tier.ExclusivePersonas,
			"features":            tier.Features,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tiers": dtos})
}

// CustomQuote handles GET /api/v1/catalog/custom-quote?tokens=N
func (h *EconomyHandler) CustomQuote(w http.ResponseWriter, r *http.Request) {
	tokens, err := strconv.ParseInt(r.URL.Query().Get("tokens"), 10, 64)
	if err != nil || tokens <= 0 {
		writeError(w, http.StatusBadRequest, "Query parameter 'tokens' must be a positive integer")
		return
	}

	quote, err := catalog.PriceCustomAmount(tokens)
	if err != nil {
		h.writeDomainError(w, err, "failed to quote custom amount")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tokens": quote.Tokens,
		"bonus":  quote.Bonus,
		"price":  quote.Price,
	})
}

// writeDomainError maps domain errors to HTTP status codes.
func (h *EconomyHandler) writeDomainError(w http.ResponseWriter, err error, logMsg string) {
	var insufficient *walletDomain.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":     "insufficient_balance",
			"message":   insufficient.Error(),
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
		return
	}

	switch {
	case errors.Is(err, walletDomain.ErrMessageNotFound),
		errors.Is(err, walletDomain.ErrWalletNotFound),
		errors.Is(err, walletCommands.ErrPersonaNotFound),
		errors.Is(err, paymentsDomain.ErrPaymentNotFound),
		errors.Is(err, catalog.ErrPackageNotFound),
		errors.Is(err, catalog.ErrTierNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, walletDomain.ErrNotOwner),
		errors.Is(err, walletCommands.ErrExclusivePersona),
		errors.Is(err, paymentCommands.ErrNotPaymentOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, walletDomain.ErrMessageAlreadyUnlocked),
		errors.Is(err, walletDomain.ErrMessageNotLocked),
		errors.Is(err, paymentsDomain.ErrDuplicatePayment):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, paymentCommands.ErrNothingToBuy),
		errors.Is(err, catalog.ErrAmountBelowMinimum),
		errors.Is(err, subDomain.ErrFreeTierNotBillable),
		errors.Is(err, topupDomain.ErrInvalidThreshold),
		errors.Is(err, topupDomain.ErrMissingPackage),
		errors.Is(err, topupDomain.ErrMissingPaymentMethod):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error(logMsg, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func subscriptionDTO(view *subQueries.SubscriptionView) map[string]any {
	dto := map[string]any{
		"tier":                view.Tier,
		"active":              view.Active,
		"bonus_tokens":        view.BonusTokens,
		"discount_multiplier": view.DiscountMultiplier,
		"chat_limit":          view.ChatLimit,
		"exclusive_personas":  view.ExclusivePersonas,
		"features":            view.Features,
	}
	if view.ExpiresAt != nil {
		dto["expires_at"] = view.ExpiresAt.Format(time.RFC3339)
	}
	return dto
}

func topupSettingsDTO(settings *topupDomain.Settings) map[string]any {
	dto := map[string]any{
		"enabled":           settings.Enabled(),
		"threshold":         settings.Threshold(),
		"package_id":        settings.PackageID(),
		"payment_method_id": settings.PaymentMethodID(),
	}
	if last := settings.LastTopupAt(); last != nil {
		dto["last_topup_at"] = last.Format(time.RFC3339)
	}
	return dto
}

// Helper functions

func pathUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(key))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+key)
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
