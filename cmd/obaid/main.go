// obaid is the token economy service. `obaid serve` runs the HTTP API;
// `obaid worker` runs the outbox relay, the auto-topup sweep and the
// subscription expiry sweep.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Oregand/obai-sub000/adapter/api"
	"github.com/Oregand/obai-sub000/internal/app"
	"github.com/Oregand/obai-sub000/pkg/config"
	"github.com/Oregand/obai-sub000/pkg/observability"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "obaid",
	Short: "obai token economy service",
	Long: `obaid runs the token economy: message accounting, token purchases,
subscriptions and automatic balance topups.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(cmd.Context())
	},
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*config.Config, *app.Container, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logCfg := observability.DefaultLogConfig()
	logCfg.Level = observability.LogLevel(cfg.LogLevel)
	if cfg.IsProduction() {
		logCfg = observability.ProductionLogConfig()
	}
	logger := observability.NewLogger(logCfg)
	slog.SetDefault(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing container: %w", err)
	}

	return cfg, container, logger, nil
}

func runServe(ctx context.Context) error {
	cfg, container, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	defer container.Close()

	handler := api.NewEconomyHandler(api.EconomyHandlerConfig{
		ChargeMessage:      container.ChargeMessageHandler,
		UnlockMessage:      container.UnlockMessageHandler,
		GetBalance:         container.GetBalanceHandler,
		FreeMessages:       container.FreeMessagesHandler,
		CreatePurchase:     container.CreatePurchaseHandler,
		CompletePurchase:   container.CompletePurchaseHandler,
		SettleIntent:       container.SettleIntentHandler,
		Gateway:            container.Gateway,
		CreateSubscription: container.CreateSubscriptionHandler,
		GetSubscription:    container.GetSubscriptionHandler,
		TopupSettings:      container.TopupSettingsService,
		Logger:             logger,
	})

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = cfg.APIAddr
	server := api.NewServer(serverCfg, handler, container.Health, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runWorker(ctx context.Context) error {
	cfg, container, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	defer container.Close()

	logger.Info("starting worker")

	if err := container.OutboxProcessor.Start(ctx); err != nil {
		return fmt.Errorf("starting outbox processor: %w", err)
	}
	defer container.OutboxProcessor.Stop()

	if container.TopupProcessor != nil {
		if err := container.TopupProcessor.Start(ctx); err != nil {
			return fmt.Errorf("starting topup processor: %w", err)
		}
		defer container.TopupProcessor.Stop()
	} else {
		logger.Warn("topup processor disabled, redis not available")
	}

	// Outbox retention cleanup.
	cleanupTicker := time.NewTicker(cfg.OutboxCleanupInterval)
	defer cleanupTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-cleanupTicker.C:
				deleted, err := container.OutboxRepo.DeleteOld(ctx, cfg.OutboxRetentionDays)
				if err != nil {
					logger.Error("outbox cleanup failed", "error", err)
					continue
				}
				if deleted > 0 {
					logger.Info("outbox cleanup completed", "deleted", deleted, "retention_days", cfg.OutboxRetentionDays)
				}
			}
		}
	}()

	// Subscription expiry sweep.
	expiryTicker := time.NewTicker(cfg.ExpirySweepInterval)
	defer expiryTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-expiryTicker.C:
				expired, err := container.SubscriptionRepo.ExpireDue(ctx)
				if err != nil {
					logger.Error("subscription expiry sweep failed", "error", err)
					continue
				}
				if expired > 0 {
					logger.Info("subscriptions expired", "count", expired)
				}
			}
		}
	}()

	if cfg.WorkerHealthAddr != "" {
		startHealthServer(ctx, cfg.WorkerHealthAddr, container, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down worker")
	return nil
}

func startHealthServer(ctx context.Context, addr string, container *app.Container, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		outboxStats := container.OutboxProcessor.GetStats()
		response := map[string]any{
			"status":           "ok",
			"outbox_running":   outboxStats.IsRunning,
			"outbox_published": outboxStats.PublishedCount,
			"outbox_failed":    outboxStats.FailedCount,
			"outbox_dead":      outboxStats.DeadCount,
		}
		if container.TopupProcessor != nil {
			topupStats := container.TopupProcessor.GetStats()
			response["topup_running"] = topupStats.IsRunning
			response["topup_runs"] = topupStats.RunCount
			response["topups_triggered"] = topupStats.ToppedUp
			response["topups_failed"] = topupStats.Failed
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := container.Pool.Ping(checkCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ready"})
	})

	healthSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("health server starting", "addr", addr)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()
}
