// internal/trader/reconcile.go
package trader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/events"
	"github.com/rovshanmuradov/memetrader/internal/lock"
	"github.com/rovshanmuradov/memetrader/internal/logger"
	"github.com/rovshanmuradov/memetrader/internal/storage/models"
	"github.com/rovshanmuradov/memetrader/internal/swap"
)

// RunReconcileCycle resolves PENDING trades against the status oracle.
func (c *Controller) RunReconcileCycle(ctx context.Context) (*CycleReport, error) {
	return c.withCycleLock(ctx, lock.CycleReconcile, c.reconcile)
}

func (c *Controller) reconcile(ctx context.Context, log *zap.Logger, r *CycleReport) error {
	pending, err := c.deps.Store.ListPendingTrades(ctx)
	if err != nil {
		return fmt.Errorf("list pending trades: %w", err)
	}

	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Evaluated++
		tlog := logger.WithTrade(log, t.SettlementHandle).With(
			zap.Uint("trade_id", t.ID),
			zap.String("side", string(t.Side)))

		status, err := c.deps.Oracle.GetSettlementStatus(ctx, t.SettlementHandle, t.ExpiryMarker)
		if err != nil {
			r.Errors++
			tlog.Warn("Status query failed", zap.Error(err))
			continue
		}

		var target models.Status
		switch status {
		case swap.StatusSuccess:
			target = models.StatusCompleted
		case swap.StatusFailed:
			target = models.StatusFailed
		default:
			if c.cfg.PendingTimeout > 0 && c.now().Sub(t.CreatedAt) > c.cfg.PendingTimeout {
				tlog.Warn("Pending timeout exceeded, marking failed",
					zap.Duration("age", c.now().Sub(t.CreatedAt)))
				target = models.StatusFailed
				break
			}
			r.Unchanged++
			continue
		}

		changed, err := c.deps.Store.UpdateTradeStatus(ctx, t.ID, target)
		if err != nil {
			r.Errors++
			tlog.Error("Status update failed", zap.String("status", string(target)), zap.Error(err))
			continue
		}
		if !changed {
			r.Unchanged++
			tlog.Debug("Trade already settled")
			continue
		}

		c.publish(events.TradeSettledEvent{
			BaseEvent: events.NewBase(events.TradeSettled),
			TradeID:   t.ID,
			Side:      string(t.Side),
			Asset:     t.TradedAsset(),
			Handle:    t.SettlementHandle,
			Status:    string(target),
		})

		if target == models.StatusCompleted {
			r.Completed++
			tlog.Info("Trade completed")
			if t.Side == models.SideBuy {
				c.triggerSkim(ctx, t.OutAsset)
			}
			continue
		}

		r.Failed++
		tlog.Info("Trade failed")
		if t.Side == models.SideBuy {
			c.releaseLease(ctx, tlog, t.OutAsset)
		}
	}
	return nil
}
