// internal/trader/trader.go
package trader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/blockchain"
	"github.com/rovshanmuradov/memetrader/internal/events"
	"github.com/rovshanmuradov/memetrader/internal/lock"
	"github.com/rovshanmuradov/memetrader/internal/logger"
	"github.com/rovshanmuradov/memetrader/internal/market"
	"github.com/rovshanmuradov/memetrader/internal/notify"
	"github.com/rovshanmuradov/memetrader/internal/storage"
	"github.com/rovshanmuradov/memetrader/internal/swap"
)

const releaseTimeout = 5 * time.Second

var hundred = decimal.NewFromInt(100)

// Skip reasons reported in CycleReport.
const (
	SkipLockHeld            = "lock_held"
	SkipInsufficientBalance = "insufficient_balance"
)

// RetryPolicy bounds skim transfer attempts.
type RetryPolicy struct {
	MaxAttempts uint
	Delay       time.Duration
}

// Config is the controller configuration in domain units.
type Config struct {
	Chain         string
	WalletAddress string
	BaseAsset     string
	BaseDecimals  uint8

	TradeAmount  decimal.Decimal // base currency, whole units
	PriorityFee  decimal.Decimal
	SlippageBps  int
	SafetyMargin decimal.Decimal
	Query        market.Query
	Filter       Filter

	Exit           ExitPolicy
	MinPositionUSD float64

	SkimRecipient string
	SkimPct       decimal.Decimal
	Skim          RetryPolicy

	CycleLockTTL   time.Duration
	AssetLeaseTTL  time.Duration
	PendingTimeout time.Duration // 0 disables
	Retention      time.Duration

	// LinkBaseURL prefixes chart and wallet links in notifications.
	LinkBaseURL string
}

// EventPublisher receives lifecycle events. Optional.
type EventPublisher interface {
	Publish(event events.Event) error
}

// Deps are the controller collaborators.
type Deps struct {
	Locks     lock.Service
	Store     storage.Storage
	Market    market.Provider
	Executor  swap.Executor
	Oracle    swap.Oracle
	Balances  blockchain.BalanceReader
	Transfers blockchain.Transferer
	Notifier  notify.Notifier
	Events    EventPublisher
}

// CycleReport summarizes one cycle run.
type CycleReport struct {
	Cycle      string
	Skipped    bool
	SkipReason string

	Evaluated int
	Excluded  int
	Known     int
	Submitted int
	Completed int
	Failed    int
	Unchanged int
	Errors    int

	DeletedAssets int64
	DeletedTrades int64
}

// Controller runs the trade lifecycle cycles. All methods are safe for
// concurrent use; overlapping runs of the same cycle are rejected by the
// cycle lock.
type Controller struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
	skims  sync.WaitGroup
}

// New validates deps and returns a controller.
func New(cfg Config, deps Deps, log *zap.Logger) (*Controller, error) {
	switch {
	case deps.Locks == nil:
		return nil, errors.New("lock service is required")
	case deps.Store == nil:
		return nil, errors.New("store is required")
	case deps.Market == nil:
		return nil, errors.New("market provider is required")
	case deps.Executor == nil:
		return nil, errors.New("swap executor is required")
	case deps.Oracle == nil:
		return nil, errors.New("status oracle is required")
	case deps.Balances == nil:
		return nil, errors.New("balance reader is required")
	case deps.Transfers == nil:
		return nil, errors.New("transferer is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if cfg.Exit == nil {
		cfg.Exit = FullExit{ThresholdPct: 30}
	}
	if cfg.Skim.MaxAttempts == 0 {
		cfg.Skim.MaxAttempts = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 48 * time.Hour
	}
	if cfg.LinkBaseURL == "" {
		cfg.LinkBaseURL = "https://gmgn.ai"
	}
	return &Controller{
		cfg:    cfg,
		deps:   deps,
		logger: log.Named("trader"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Wait blocks until in-flight skim transfers finish or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.skims.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cycleFunc func(ctx context.Context, log *zap.Logger, r *CycleReport) error

// withCycleLock runs fn under the cycle lock. A held lock is a skipped tick,
// not an error. The lock is released even when fn panics.
func (c *Controller) withCycleLock(ctx context.Context, key string, fn cycleFunc) (*CycleReport, error) {
	log := logger.WithCycle(c.logger, key)
	report := &CycleReport{Cycle: key}

	ok, err := c.deps.Locks.Acquire(ctx, key, c.cfg.CycleLockTTL)
	if err != nil {
		return report, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		report.Skipped = true
		report.SkipReason = SkipLockHeld
		log.Debug("Cycle lock held, skipping tick")
		return report, nil
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := c.deps.Locks.Release(rctx, key); err != nil {
			log.Warn("Failed to release cycle lock", zap.Error(err))
		}
	}()

	if err := fn(ctx, log, report); err != nil {
		return report, err
	}
	return report, nil
}

func (c *Controller) notify(ctx context.Context, log *zap.Logger, n notify.Notification) {
	if err := c.deps.Notifier.Notify(ctx, n); err != nil {
		log.Warn("Notification failed", zap.Error(err))
	}
}

func (c *Controller) publish(e events.Event) {
	if c.deps.Events == nil {
		return
	}
	if err := c.deps.Events.Publish(e); err != nil {
		c.logger.Debug("Event not published", zap.String("event_type", string(e.Type())), zap.Error(err))
	}
}

func (c *Controller) assetLinks(asset string) []notify.Link {
	return []notify.Link{
		{Text: "Chart", URL: fmt.Sprintf("%s/%s/token/%s", c.cfg.LinkBaseURL, c.cfg.Chain, asset)},
		{Text: "Wallet", URL: fmt.Sprintf("%s/%s/address/%s", c.cfg.LinkBaseURL, c.cfg.Chain, c.cfg.WalletAddress)},
	}
}

// releaseLease drops the per-asset lease with a context that survives
// cancellation of the cycle.
func (c *Controller) releaseLease(ctx context.Context, log *zap.Logger, asset string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := c.deps.Locks.Release(rctx, lock.AssetLease(asset)); err != nil {
		log.Warn("Failed to release asset lease", zap.String("asset", asset), zap.Error(err))
	}
}

// toSmallest converts whole units to smallest units, truncating.
func toSmallest(amount decimal.Decimal, decimals uint8) uint64 {
	v := amount.Shift(int32(decimals)).Truncate(0)
	if v.Sign() <= 0 {
		return 0
	}
	return v.BigInt().Uint64()
}
