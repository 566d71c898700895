// internal/bot/service.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/blockchain/solbc"
	"github.com/rovshanmuradov/memetrader/internal/config"
	"github.com/rovshanmuradov/memetrader/internal/events"
	"github.com/rovshanmuradov/memetrader/internal/gmgn"
	"github.com/rovshanmuradov/memetrader/internal/lock"
	"github.com/rovshanmuradov/memetrader/internal/lock/memlock"
	"github.com/rovshanmuradov/memetrader/internal/lock/pglock"
	"github.com/rovshanmuradov/memetrader/internal/lock/redislock"
	gmgnmarket "github.com/rovshanmuradov/memetrader/internal/market/gmgn"
	"github.com/rovshanmuradov/memetrader/internal/metrics"
	"github.com/rovshanmuradov/memetrader/internal/notify"
	"github.com/rovshanmuradov/memetrader/internal/storage"
	"github.com/rovshanmuradov/memetrader/internal/storage/postgres"
	"github.com/rovshanmuradov/memetrader/internal/swap"
	gmgnswap "github.com/rovshanmuradov/memetrader/internal/swap/gmgn"
	"github.com/rovshanmuradov/memetrader/internal/trader"
	"github.com/rovshanmuradov/memetrader/internal/wallet"
)

const (
	eventBufferSize = 256
	redisKeyPrefix  = "memetrader:"
)

// Service owns every collaborator of the controller and tears them down in
// order.
type Service struct {
	Controller *trader.Controller
	Store      storage.Storage
	Metrics    *metrics.Metrics

	cfg      *config.Config
	bus      *events.Bus
	shutdown *ShutdownHandler
	logger   *zap.Logger
}

// NewStore opens the postgres position store.
func NewStore(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.PostgresURL == "" {
		return nil, errors.New("postgres_url is required")
	}
	return postgres.NewStorage(cfg.PostgresURL, logger)
}

// NewLockService connects the configured lock backend.
func NewLockService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (lock.Service, io.Closer, error) {
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		l, err := redislock.New(redislock.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   redisKeyPrefix,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return l, l, nil
	case config.LockBackendPostgres:
		l, err := pglock.New(ctx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return l, l, nil
	case config.LockBackendMemory:
		logger.Warn("In-memory locks only serialize this process")
		l := memlock.New()
		return l, l, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}

// NewService builds the controller and its collaborators from cfg and runs
// schema migrations. reg may be nil to skip metrics.
func NewService(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (_ *Service, err error) {
	log := logger.Named("service")
	sh := NewShutdownHandler(logger, 0)
	defer func() {
		if err != nil {
			_ = sh.Shutdown(context.Background())
		}
	}()

	w, err := wallet.NewWallet(cfg.WalletPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	log.Info("Wallet loaded", zap.String("address", w.String()))

	locks, lockCloser, err := NewLockService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init lock service: %w", err)
	}
	sh.Add("locks", lockCloser)

	store, err := NewStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	sh.Add("store", store)
	if err := store.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	chain := solbc.NewChain(solbc.NewClient(cfg.RPCURL, logger), w, solbc.ChainOptions{
		PriorityFeeSol: cfg.SkimPriorityFee,
		ComputeUnits:   cfg.SkimComputeUnits,
	}, logger)

	api := gmgn.NewClient(cfg.GMGNAPIURL, cfg.GMGNRateLimit, logger)
	executor := gmgnswap.NewExecutor(api, w, logger)

	var oracle swap.Oracle = executor
	if cfg.StatusOracle == config.OracleRPC {
		oracle = chain
	}

	bus := events.NewBus(logger, eventBufferSize)
	channels := []notify.Channel{notify.NewLog(logger)}
	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.ChatIDs) > 0 {
		channels = append(channels, notify.NewTelegram(cfg.Telegram.APIURL, cfg.Telegram.BotToken, cfg.Telegram.ChatIDs, logger))
	}
	if cfg.NSQ.Addr != "" {
		producer, err := notify.NewNSQ(cfg.NSQ.Addr, cfg.NSQ.Topic, logger)
		if err != nil {
			_ = bus.Shutdown(context.Background())
			return nil, err
		}
		sh.Add("nsq", producer)
		channels = append(channels, producer)
	}
	hub := notify.NewHub(bus, locks, logger, channels...)
	sh.Add("notify", hub)

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
		m.Subscribe(bus)
	}

	ctrl, err := trader.New(trader.FromConfig(cfg, w.String()), trader.Deps{
		Locks:     locks,
		Store:     store,
		Market:    gmgnmarket.NewProvider(api, logger),
		Executor:  executor,
		Oracle:    oracle,
		Balances:  chain,
		Transfers: chain,
		Notifier:  hub,
		Events:    bus,
	}, logger)
	if err != nil {
		_ = bus.Shutdown(context.Background())
		return nil, fmt.Errorf("init controller: %w", err)
	}

	log.Info("Service initialized",
		zap.String("lock_backend", cfg.LockBackend),
		zap.String("status_oracle", cfg.StatusOracle),
		zap.Int("notification_channels", len(channels)))

	return &Service{
		Controller: ctrl,
		Store:      store,
		Metrics:    m,
		cfg:        cfg,
		bus:        bus,
		shutdown:   sh,
		logger:     log,
	}, nil
}

// Cycles returns the four controller cycles with their configured periods.
func (s *Service) Cycles() []Cycle {
	return []Cycle{
		{Name: lock.CycleBuy, Interval: s.cfg.BuyInterval, Run: s.Controller.RunBuyCycle},
		{Name: lock.CycleSell, Interval: s.cfg.SellInterval, Run: s.Controller.RunSellCycle},
		{Name: lock.CycleReconcile, Interval: s.cfg.ReconcileInterval, Run: s.Controller.RunReconcileCycle},
		{Name: lock.CycleCleanup, Interval: s.cfg.CleanupInterval, Run: s.Controller.RunCleanupCycle},
	}
}

// OnClose registers an extra closer that runs before the built-in ones.
func (s *Service) OnClose(name string, c io.Closer) {
	s.shutdown.Add(name, c)
}

// Close waits for background skim transfers, flushes queued notifications
// and closes every collaborator.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if err := s.Controller.Wait(ctx); err != nil {
		s.logger.Warn("Skim transfers still running at shutdown", zap.Error(err))
		errs = append(errs, err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.bus.Shutdown(flushCtx); err != nil {
		errs = append(errs, fmt.Errorf("event bus: %w", err))
	}

	if err := s.shutdown.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
