// internal/trader/sell.go
package trader

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/events"
	"github.com/rovshanmuradov/memetrader/internal/lock"
	"github.com/rovshanmuradov/memetrader/internal/logger"
	"github.com/rovshanmuradov/memetrader/internal/market"
	"github.com/rovshanmuradov/memetrader/internal/notify"
	"github.com/rovshanmuradov/memetrader/internal/storage"
	"github.com/rovshanmuradov/memetrader/internal/storage/models"
	"github.com/rovshanmuradov/memetrader/internal/swap"
)

// RunSellCycle applies the exit policy to every liquid holding.
func (c *Controller) RunSellCycle(ctx context.Context) (*CycleReport, error) {
	return c.withCycleLock(ctx, lock.CycleSell, c.sell)
}

func (c *Controller) sell(ctx context.Context, log *zap.Logger, r *CycleReport) error {
	holdings, err := c.deps.Market.FetchHoldings(ctx, c.cfg.WalletAddress)
	if err != nil {
		return fmt.Errorf("fetch holdings: %w", err)
	}

	for _, h := range holdings {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Evaluated++
		hlog := log.With(zap.String("asset", h.Address), zap.String("symbol", h.Symbol))

		if h.Illiquid {
			r.Excluded++
			hlog.Info("Insufficient liquidity, skipping")
			continue
		}

		amount := c.cfg.Exit.SellAmount(h)
		hlog.Debug("Position", zap.Float64("pnl_pct", h.UnrealizedPnL*100), zap.String("sell_amount", amount.String()))
		if amount.Sign() <= 0 || h.USDValue < c.cfg.MinPositionUSD {
			continue
		}

		c.sellHolding(ctx, hlog, r, h, amount)
	}
	return nil
}

func (c *Controller) sellHolding(ctx context.Context, log *zap.Logger, r *CycleReport, h market.Holding, amount decimal.Decimal) {
	onChain, err := c.deps.Balances.GetBalance(ctx, c.cfg.WalletAddress, h.Address)
	if err != nil {
		r.Errors++
		log.Error("Balance check failed", zap.Error(err))
		return
	}
	if onChain.Raw == 0 {
		log.Info("No on-chain balance, not selling")
		return
	}

	asset, err := c.deps.Store.GetAsset(ctx, c.cfg.Chain, h.Address)
	if errors.Is(err, storage.ErrNotFound) {
		// Held but never bought through us: register now, sell next tick.
		if _, err := c.deps.Store.GetOrCreateAsset(ctx, c.cfg.Chain, h.Address, h.Symbol); err != nil {
			r.Errors++
			log.Error("Failed to register held asset", zap.Error(err))
			return
		}
		log.Info("Registered held asset")
		return
	}
	if err != nil {
		r.Errors++
		log.Error("Registry lookup failed", zap.Error(err))
		return
	}

	pending, err := c.deps.Store.HasPendingTrade(ctx, asset.ID)
	if err != nil {
		r.Errors++
		log.Error("Pending check failed", zap.Error(err))
		return
	}
	if pending {
		log.Info("Pending trade exists, skipping")
		return
	}

	decimals := h.Decimals
	if decimals == 0 {
		decimals = onChain.Decimals
	}
	raw := toSmallest(amount, decimals)
	if raw == 0 {
		return
	}

	res, err := c.deps.Executor.ExecuteSwap(ctx, swap.Request{
		Mode:        swap.ExactOut,
		InputAsset:  h.Address,
		OutputAsset: c.cfg.BaseAsset,
		Amount:      raw,
		SlippageBps: c.cfg.SlippageBps,
		PriorityFee: c.cfg.PriorityFee,
	})
	if err == nil && (res == nil || res.Handle == "") {
		err = swap.ErrMissingHandle
	}
	if err != nil {
		r.Errors++
		log.Warn("Sell failed", zap.Error(err))
		return
	}

	tlog := logger.WithTrade(log, res.Handle)
	tlog.Info("Sell submitted", zap.Uint64("amount", raw))
	r.Submitted++

	trade := &models.TradeRecord{
		AssetID:          asset.ID,
		SettlementHandle: res.Handle,
		ExpiryMarker:     res.ExpiryMarker,
		WalletAddress:    c.cfg.WalletAddress,
		Side:             models.SideSell,
		InAsset:          h.Address,
		OutAsset:         c.cfg.BaseAsset,
		InDecimals:       decimals,
		OutDecimals:      c.cfg.BaseDecimals,
		InAmount:         decimal.NewFromUint64(raw),
		OutAmount:        decimal.Zero,
		Status:           models.StatusPending,
		PriorityFee:      c.cfg.PriorityFee,
	}
	if err := c.deps.Store.CreateTrade(ctx, trade); err != nil {
		c.reportGap(ctx, tlog, trade, err)
		return
	}
	c.publish(events.TradeSubmittedEvent{
		BaseEvent: events.NewBase(events.TradeSubmitted),
		Side:      string(models.SideSell),
		Asset:     h.Address,
		Symbol:    h.Symbol,
		Handle:    res.Handle,
		Amount:    raw,
	})

	c.notify(ctx, tlog, notify.Notification{
		Audience: notify.AudienceTrade,
		Message: fmt.Sprintf("<b>SELL</b> %s\nToken: <code>%s</code>\nPnL: %.2f%%\nAmount: %s\nTx: <code>%s</code>",
			h.Symbol, h.Address, h.UnrealizedPnL*100, amount.String(), res.Handle),
		Links: c.assetLinks(h.Address),
	})
}
