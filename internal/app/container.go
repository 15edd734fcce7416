// Package app wires the application together: connections, repositories,
// command and query handlers, and the background processors.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	paymentCommands "github.com/Oregand/obai-sub000/internal/payments/application/commands"
	"github.com/Oregand/obai-sub000/internal/payments/gateway"
	paymentPersistence "github.com/Oregand/obai-sub000/internal/payments/infrastructure/persistence"
	personaPersistence "github.com/Oregand/obai-sub000/internal/personas/infrastructure/persistence"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/crypto"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/database/postgres"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/eventbus"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/migrations"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/Oregand/obai-sub000/internal/shared/infrastructure/persistence"
	subCommands "github.com/Oregand/obai-sub000/internal/subscriptions/application/commands"
	subQueries "github.com/Oregand/obai-sub000/internal/subscriptions/application/queries"
	subDomain "github.com/Oregand/obai-sub000/internal/subscriptions/domain"
	subPersistence "github.com/Oregand/obai-sub000/internal/subscriptions/infrastructure/persistence"
	topupApplication "github.com/Oregand/obai-sub000/internal/topup/application"
	topupLease "github.com/Oregand/obai-sub000/internal/topup/infrastructure/lease"
	topupPersistence "github.com/Oregand/obai-sub000/internal/topup/infrastructure/persistence"
	walletCommands "github.com/Oregand/obai-sub000/internal/wallet/application/commands"
	walletQueries "github.com/Oregand/obai-sub000/internal/wallet/application/queries"
	walletPersistence "github.com/Oregand/obai-sub000/internal/wallet/infrastructure/persistence"
	"github.com/Oregand/obai-sub000/internal/wallet/infrastructure/quota"
	"github.com/Oregand/obai-sub000/pkg/config"
	"github.com/Oregand/obai-sub000/pkg/observability"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const quotaCacheTTL = 5 * time.Minute

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Health  *observability.HealthRegistry
	Metrics observability.Metrics

	Gateway         gateway.Gateway
	Publisher       eventbus.Publisher
	OutboxRepo      outbox.Repository
	OutboxProcessor *outbox.Processor

	// Wallet
	ChargeMessageHandler *walletCommands.ChargeMessageHandler
	UnlockMessageHandler *walletCommands.UnlockMessageHandler
	CreditTokensHandler  *walletCommands.CreditTokensHandler
	GetBalanceHandler    *walletQueries.GetBalanceHandler
	FreeMessagesHandler  *walletQueries.FreeMessagesHandler

	// Payments
	CreatePurchaseHandler   *paymentCommands.CreatePurchaseHandler
	CompletePurchaseHandler *paymentCommands.CompletePurchaseHandler
	SettleIntentHandler     *paymentCommands.SettleIntentHandler

	// Subscriptions
	CreateSubscriptionHandler *subCommands.CreateSubscriptionHandler
	GetSubscriptionHandler    *subQueries.GetSubscriptionHandler
	SubscriptionRepo          subDomain.Repository

	// Auto-topup
	TopupSettingsService *topupApplication.SettingsService
	TopupProcessor       *topupApplication.Processor

	rabbitPublisher *eventbus.RabbitMQPublisher
}

// NewContainer creates and wires all application dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Health:  observability.NewHealthRegistry(),
		Metrics: observability.NewInMemoryMetrics(),
	}

	pool, err := postgres.Connect(ctx, postgres.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	c.Pool = pool
	c.Health.Register("database", observability.DatabaseHealthChecker(pool.Ping))

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("database migrations applied")

	// Redis backs the quota cache and the topup lease. In development the
	// service runs without it; in production it is required.
	redisClient, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		if cfg.IsProduction() {
			pool.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		logger.Warn("redis not available, quota cache and topup disabled", "error", err)
	} else {
		c.Redis = redisClient
		c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	}

	// Event publisher with the same development fallback.
	rabbitPublisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		if cfg.IsProduction() {
			c.Close()
			return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
		}
		logger.Warn("rabbitmq not available, using noop publisher", "error", err)
		c.Publisher = eventbus.NewNoopPublisher(logger)
	} else {
		c.rabbitPublisher = rabbitPublisher
		c.Publisher = rabbitPublisher
		c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(func(context.Context) error {
			return rabbitPublisher.Check()
		}))
	}

	if cfg.GatewayUseMock {
		c.Gateway = gateway.NewMockGateway(time.Now().UnixNano(), 0.1, cfg.GatewayWebhookSecret)
		logger.Info("using mock payment gateway")
	} else {
		c.Gateway = gateway.NewHTTPGateway(gateway.Config{
			BaseURL:       cfg.GatewayBaseURL,
			APIKey:        cfg.GatewayAPIKey,
			WebhookSecret: cfg.GatewayWebhookSecret,
			Timeout:       cfg.GatewayTimeout,
		})
	}

	uow := sharedPersistence.NewPostgresUnitOfWork(pool)
	outboxRepo := outbox.NewPostgresRepository(pool)
	c.OutboxRepo = outboxRepo

	walletRepo := walletPersistence.NewPostgresWalletRepository(pool)
	messageRepo := walletPersistence.NewPostgresMessageRepository(pool)
	personaRepo := personaPersistence.NewPostgresPersonaRepository(pool)
	paymentRepo := paymentPersistence.NewPostgresPaymentRepository(pool)
	subRepo := subPersistence.NewPostgresSubscriptionRepository(pool)
	userStateRepo := subPersistence.NewPostgresUserStateRepository(pool)

	var encrypter crypto.Encrypter
	if cfg.EncryptionKey != "" {
		encrypter, err = crypto.NewAESGCMFromBase64Key(cfg.EncryptionKey)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("loading encryption key: %w", err)
		}
	} else if cfg.IsProduction() {
		c.Close()
		return nil, fmt.Errorf("ENCRYPTION_KEY is required in production")
	} else {
		logger.Warn("no encryption key configured, payment method tokens stored in the clear")
	}
	settingsRepo := topupPersistence.NewPostgresSettingsRepository(pool, encrypter)

	var quotaCache *quota.RedisQuotaCache
	if c.Redis != nil {
		quotaCache = quota.NewRedisQuotaCache(c.Redis, quotaCacheTTL)
	}

	c.GetSubscriptionHandler = subQueries.NewGetSubscriptionHandler(subRepo, userStateRepo, cfg.FailOpenReads)
	c.SubscriptionRepo = subRepo

	// quotaCache is a typed nil when Redis is absent; pass untyped nils so
	// the handlers' nil checks hold.
	var chargeQuota walletCommands.QuotaCache
	var readQuota walletQueries.QuotaCache
	if quotaCache != nil {
		chargeQuota = quotaCache
		readQuota = quotaCache
	}

	c.ChargeMessageHandler = walletCommands.NewChargeMessageHandler(
		walletRepo, messageRepo, personaRepo, c.GetSubscriptionHandler,
		outboxRepo, uow, chargeQuota, cfg.FailOpenReads,
	)
	c.UnlockMessageHandler = walletCommands.NewUnlockMessageHandler(walletRepo, messageRepo, outboxRepo, uow)
	c.CreditTokensHandler = walletCommands.NewCreditTokensHandler(walletRepo, outboxRepo, uow)
	c.GetBalanceHandler = walletQueries.NewGetBalanceHandler(walletRepo, cfg.FailOpenReads)
	c.FreeMessagesHandler = walletQueries.NewFreeMessagesHandler(messageRepo, readQuota, cfg.FailOpenReads)

	c.CreatePurchaseHandler = paymentCommands.NewCreatePurchaseHandler(paymentRepo, c.Gateway, uow)
	c.CompletePurchaseHandler = paymentCommands.NewCompletePurchaseHandler(paymentRepo, walletRepo, c.Gateway, outboxRepo, uow)
	c.SettleIntentHandler = paymentCommands.NewSettleIntentHandler(paymentRepo, walletRepo, outboxRepo, uow)

	c.CreateSubscriptionHandler = subCommands.NewCreateSubscriptionHandler(
		subRepo, userStateRepo, paymentRepo, walletRepo, outboxRepo, uow,
	)

	c.TopupSettingsService = topupApplication.NewSettingsService(settingsRepo, uow)
	if c.Redis != nil {
		c.TopupProcessor = topupApplication.NewProcessor(
			settingsRepo, walletRepo, paymentRepo, outboxRepo, uow,
			topupLease.NewRedisLease(c.Redis),
			topupApplication.ProcessorConfig{
				Interval:  cfg.TopupInterval,
				LeaseTTL:  cfg.TopupLeaseTTL,
				BatchSize: cfg.TopupBatchSize,
			},
			logger, c.Metrics,
		)
	}

	c.OutboxProcessor = outbox.NewProcessor(outboxRepo, c.Publisher, outbox.ProcessorConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxRetries:   cfg.OutboxMaxRetries,
	}, logger)

	return c, nil
}

// Close releases all connections.
func (c *Container) Close() {
	if c.rabbitPublisher != nil {
		c.rabbitPublisher.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
