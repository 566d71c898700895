// internal/trader/cleanup.go
package trader

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/lock"
)

// RunCleanupCycle deletes registry rows older than the retention window
// together with their trades. Assets with a PENDING trade survive.
func (c *Controller) RunCleanupCycle(ctx context.Context) (*CycleReport, error) {
	return c.withCycleLock(ctx, lock.CycleCleanup, c.cleanup)
}

func (c *Controller) cleanup(ctx context.Context, log *zap.Logger, r *CycleReport) error {
	cutoff := c.now().Add(-c.cfg.Retention)
	assets, trades, err := c.deps.Store.DeleteStaleAssets(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete stale assets: %w", err)
	}
	r.DeletedAssets, r.DeletedTrades = assets, trades
	if assets > 0 {
		log.Info("Stale assets removed", zap.Int64("assets", assets), zap.Int64("trades", trades), zap.Time("cutoff", cutoff))
	}
	return nil
}
