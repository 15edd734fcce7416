// Package application runs the auto-topup batch: a periodic sweep over all
// enabled settings that refills balances below their threshold.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Oregand/obai-sub000/internal/catalog"
	paymentsDomain "github.com/Oregand/obai-sub000/internal/payments/domain"
	sharedApplication "github.com/Oregand/obai-sub000/internal/shared/application"
	"github.com/Oregand/obai-sub000/internal/shared/infrastructure/outbox"
	"github.com/Oregand/obai-sub000/internal/topup/domain"
	walletDomain "github.com/Oregand/obai-sub000/internal/wallet/domain"
	"github.com/Oregand/obai-sub000/pkg/observability"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lease serializes topup processing per user across overlapping runs.
type Lease interface {
	// Acquire takes the user's lease, or reports false when it is held.
	Acquire(ctx context.Context, userID uuid.UUID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, userID uuid.UUID) error
}

// ProcessorConfig holds configuration for the topup processor.
type ProcessorConfig struct {
	Interval  time.Duration
	LeaseTTL  time.Duration
	BatchSize int
}

// DefaultProcessorConfig returns sensible defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Interval:  5 * time.Minute,
		LeaseTTL:  2 * time.Minute,
		BatchSize: 100,
	}
}

// RunStats summarizes one batch run.
type RunStats struct {
	Processed int
	ToppedUp  int
	Skipped   int
	Failed    int
}

// Stats summarizes processor activity since start.
type Stats struct {
	IsRunning   bool
	RunCount    uint64
	ToppedUp    uint64
	Skipped     uint64
	Failed      uint64
	LastError   string
	LastErrorAt *time.Time
	LastRunAt   *time.Time
}

// Processor periodically refills balances that fell below their threshold.
type Processor struct {
	settingsRepo domain.Repository
	walletRepo   walletDomain.WalletRepository
	paymentRepo  paymentsDomain.Repository
	outboxRepo   outbox.Repository
	uow          sharedApplication.UnitOfWork
	lease        Lease
	config       ProcessorConfig
	logger       *slog.Logger
	metrics      observability.Metrics

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
	mu       sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// NewProcessor creates a new topup processor.
func NewProcessor(
	settingsRepo domain.Repository,
	walletRepo walletDomain.WalletRepository,
	paymentRepo paymentsDomain.Repository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	lease Lease,
	config ProcessorConfig,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Processor{
		settingsRepo: settingsRepo,
		walletRepo:   walletRepo,
		paymentRepo:  paymentRepo,
		outboxRepo:   outboxRepo,
		uow:          uow,
		lease:        lease,
		config:       config,
		logger:       logger,
		metrics:      metrics,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the periodic sweep in a goroutine.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopChan = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("topup processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("topup processor stopped")
}

// IsRunning reports whether the processor is running.
func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// GetStats returns a snapshot of processor statistics.
func (p *Processor) GetStats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	stats := p.stats
	stats.IsRunning = p.IsRunning()
	return stats
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil {
				p.logger.Error("topup batch failed", "error", err)
			}
		}
	}
}

// ProcessOnce runs a single batch synchronously. A lease-store failure aborts
// the batch: without the lease there is no duplicate protection across runs,
// and skipping a cycle is cheaper than risking a double charge.
func (p *Processor) ProcessOnce(ctx context.Context) (RunStats, error) {
	var stats RunStats

	batchSize := p.config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultProcessorConfig().BatchSize
	}

	var afterUser uuid.UUID
	for {
		batch, err := p.settingsRepo.ListEnabled(ctx, afterUser, batchSize)
		if err != nil {
			p.recordRun(stats, err)
			return stats, fmt.Errorf("listing enabled topup settings: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, settings := range batch {
			afterUser = settings.UserID()
			stats.Processed++

			acquired, err := p.lease.Acquire(ctx, settings.UserID(), p.config.LeaseTTL)
			if err != nil {
				p.recordRun(stats, err)
				return stats, fmt.Errorf("acquiring topup lease: %w", err)
			}
			if !acquired {
				stats.Skipped++
				p.metrics.Counter(observability.MetricTopupsSkipped, 1, observability.T("reason", "lease_held"))
				continue
			}

			toppedUp, err := p.processUser(ctx, settings)
			switch {
			case err != nil:
				// The lease stays held until its TTL so a rapid retry
				// cannot hammer a failing user.
				stats.Failed++
				p.metrics.Counter(observability.MetricTopupsFailed, 1)
				p.logger.Error("topup failed for user",
					"user_id", settings.UserID(),
					"package_id", settings.PackageID(),
					"error", err,
				)
			case toppedUp:
				stats.ToppedUp++
				p.metrics.Counter(observability.MetricTopupsTriggered, 1)
			default:
				stats.Skipped++
				p.metrics.Counter(observability.MetricTopupsSkipped, 1, observability.T("reason", "above_threshold"))
				// Nothing was credited; free the lease instead of
				// waiting out the TTL.
				if err := p.lease.Release(ctx, settings.UserID()); err != nil {
					p.logger.Warn("releasing topup lease", "user_id", settings.UserID(), "error", err)
				}
			}
		}

		if len(batch) < batchSize {
			break
		}
	}

	p.recordRun(stats, nil)
	return stats, nil
}

func (p *Processor) processUser(ctx context.Context, settings *domain.Settings) (bool, error) {
	balance, err := p.walletRepo.Balance(ctx, settings.UserID())
	if err != nil {
		return false, fmt.Errorf("reading balance: %w", err)
	}
	if balance.GreaterThanOrEqual(settings.Threshold()) {
		return false, nil
	}

	pkg, err := catalog.FindPackage(settings.PackageID())
	if err != nil {
		return false, fmt.Errorf("resolving package %q: %w", settings.PackageID(), err)
	}

	err = sharedApplication.WithUnitOfWork(ctx, p.uow, func(txCtx context.Context) error {
		payment, err := paymentsDomain.NewPayment(
			settings.UserID(), pkg.Price, "USD", paymentsDomain.TypeAutoTopup,
			pkg.Tokens, pkg.Bonus, settings.IdempotencyKey(),
		)
		if err != nil {
			return err
		}
		if err := payment.Complete(); err != nil {
			return err
		}
		if err := p.paymentRepo.Save(txCtx, payment); err != nil {
			return err
		}

		credit := decimal.NewFromInt(payment.TotalTokens())
		newBalance, err := p.walletRepo.Credit(txCtx, settings.UserID(), credit)
		if err != nil {
			return err
		}

		settings.RecordTopup(time.Now().UTC())
		if err := p.settingsRepo.Save(txCtx, settings); err != nil {
			return err
		}

		events := payment.DomainEvents()
		events = append(events,
			walletDomain.NewTokensCredited(settings.UserID(), credit, newBalance, "auto_topup"),
			domain.NewAutoTopupTriggered(settings.UserID(), pkg.ID, payment.TotalTokens(), newBalance),
		)
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(settings.UserID()))

		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}
		return p.outboxRepo.SaveBatch(txCtx, msgs)
	})
	if err != nil {
		// A duplicate ledger key means a concurrent run already topped
		// up this trigger.
		if errors.Is(err, paymentsDomain.ErrDuplicatePayment) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (p *Processor) recordRun(run RunStats, err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	now := time.Now()
	p.stats.RunCount++
	p.stats.ToppedUp += uint64(run.ToppedUp)
	p.stats.Skipped += uint64(run.Skipped)
	p.stats.Failed += uint64(run.Failed)
	p.stats.LastRunAt = &now
	if err != nil {
		p.stats.LastError = err.Error()
		p.stats.LastErrorAt = &now
	}
}
