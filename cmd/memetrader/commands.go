// cmd/memetrader/commands.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/bot"
	"github.com/rovshanmuradov/memetrader/internal/metrics"
	"github.com/rovshanmuradov/memetrader/internal/trader"
)

const shutdownTimeout = 30 * time.Second

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run buy, sell, reconcile and cleanup cycles until interrupted",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			svc, err := bot.NewService(c.Context, cfg, log.Logger, prometheus.DefaultRegisterer)
			if err != nil {
				log.Error("Failed to initialize service", zap.Error(err))
				return err
			}

			if cfg.MetricsAddr != "" {
				srv := metrics.NewServer(cfg.MetricsAddr, prometheus.DefaultGatherer, log.Logger)
				srv.Start()
				svc.OnClose("metrics", srv)
			}

			log.Info("Starting memetrader", zap.String("config", c.String("config")))
			runErr := bot.NewRunner(log.Logger, svc.Metrics, svc.Cycles()...).Run(c.Context)

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := svc.Close(ctx); err != nil {
				log.Warn("Shutdown finished with errors", zap.Error(err))
			}
			return runErr
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create or update the position store schema",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := bot.NewStore(cfg, log.Logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.RunMigrations(c.Context); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			log.Info("Migrations applied")
			return nil
		},
	}
}

func cleanupCommand() *cli.Command {
	return oneShotCommand("cleanup", "run one retention cleanup pass",
		func(ctl *trader.Controller) bot.CycleFunc { return ctl.RunCleanupCycle })
}

func reconcileCommand() *cli.Command {
	return oneShotCommand("reconcile", "run one reconciliation pass over pending trades",
		func(ctl *trader.Controller) bot.CycleFunc { return ctl.RunReconcileCycle })
}

// oneShotCommand runs a single cycle under the same locks the daemon uses, so
// it is safe to invoke next to a running instance.
func oneShotCommand(name, usage string, pick func(*trader.Controller) bot.CycleFunc) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			defer log.Sync()

			svc, err := bot.NewService(c.Context, cfg, log.Logger, nil)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				_ = svc.Close(ctx)
			}()

			report, err := pick(svc.Controller)(c.Context)
			if err != nil {
				return err
			}
			if report.Skipped {
				log.Info("Cycle skipped", zap.String("cycle", report.Cycle), zap.String("reason", report.SkipReason))
				return nil
			}
			log.Info("Cycle finished",
				zap.String("cycle", report.Cycle),
				zap.Int("evaluated", report.Evaluated),
				zap.Int("completed", report.Completed),
				zap.Int("failed", report.Failed),
				zap.Int("unchanged", report.Unchanged),
				zap.Int("errors", report.Errors),
				zap.Int64("deleted_assets", report.DeletedAssets),
				zap.Int64("deleted_trades", report.DeletedTrades))
			return nil
		},
	}
}
