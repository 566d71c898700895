// internal/trader/buy.go
package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const lowBalanceNotifyTTL = time.Hour

// RunBuyCycle evaluates ranked candidates and opens positions in those that
// pass the filter and are not yet registered.
func (c *Controller) RunBuyCycle(ctx context.Context) (*CycleReport, error) {
	return c.withCycleLock(ctx, lock.CycleBuy, c.buy)
}

func (c *Controller) buy(ctx context.Context, log *zap.Logger, r *CycleReport) error {
	balance, err := c.deps.Balances.GetBalance(ctx, c.cfg.WalletAddress, c.cfg.BaseAsset)
	if err != nil {
		return fmt.Errorf("read base balance: %w", err)
	}
	required := c.cfg.TradeAmount.Add(c.cfg.PriorityFee).Mul(c.cfg.SafetyMargin)
	if balance.UI().LessThan(required) {
		r.Skipped = true
		r.SkipReason = SkipInsufficientBalance
		log.Info("Insufficient base balance",
			zap.String("balance", balance.UI().String()),
			zap.String("required", required.String()))
		c.notify(ctx, log, notify.Notification{
			Audience: notify.AudienceError,
			Message:  fmt.Sprintf("Insufficient balance: %s, required %s", balance.UI().String(), required.String()),
			LockKey:  "low_balance",
			TTL:      lowBalanceNotifyTTL,
		})
		return nil
	}

	candidates, err := c.deps.Market.FetchCandidates(ctx, c.cfg.Query)
	if err != nil {
		return fmt.Errorf("fetch candidates: %w", err)
	}

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.Evaluated++
		clog := log.With(zap.String("asset", cand.Address), zap.String("symbol", cand.Symbol))

		if reason := c.cfg.Filter.Exclude(cand); reason != "" {
			r.Excluded++
			clog.Debug("Candidate excluded", zap.String("reason", reason))
			continue
		}

		// The registry is keyed by the configured chain on every path; the
		// sell cycle looks holdings up the same way.
		chain := c.cfg.Chain
		_, err := c.deps.Store.GetAsset(ctx, chain, cand.Address)
		if err == nil {
			r.Known++
			clog.Debug("Asset already registered")
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			r.Errors++
			clog.Error("Registry lookup failed", zap.Error(err))
			continue
		}

		c.buyCandidate(ctx, clog, r, chain, cand)
	}
	return nil
}

func (c *Controller) buyCandidate(ctx context.Context, log *zap.Logger, r *CycleReport, chain string, cand market.Candidate) {
	leaseKey := lock.AssetLease(cand.Address)
	ok, err := c.deps.Locks.Acquire(ctx, leaseKey, c.cfg.AssetLeaseTTL)
	if err != nil {
		r.Errors++
		log.Error("Lease acquisition failed", zap.Error(err))
		return
	}
	if !ok {
		log.Info("Asset lease held, skipping")
		return
	}

	amount := toSmallest(c.cfg.TradeAmount, c.cfg.BaseDecimals)
	req := swap.Request{
		Mode:        swap.ExactIn,
		InputAsset:  c.cfg.BaseAsset,
		OutputAsset: cand.Address,
		Amount:      amount,
		SlippageBps: c.cfg.SlippageBps,
		PriorityFee: c.cfg.PriorityFee,
	}
	res, err := c.deps.Executor.ExecuteSwap(ctx, req)
	if err == nil && (res == nil || res.Handle == "") {
		err = swap.ErrMissingHandle
	}
	if err != nil {
		r.Errors++
		log.Warn("Buy failed", zap.Error(err))
		c.releaseLease(ctx, log, cand.Address)
		return
	}

	tlog := logger.WithTrade(log, res.Handle)
	tlog.Info("Buy submitted", zap.Uint64("amount", amount))
	r.Submitted++

	decimals := cand.Decimals
	if decimals == 0 {
		decimals = c.cfg.BaseDecimals
	}
	trade := &models.TradeRecord{
		SettlementHandle: res.Handle,
		ExpiryMarker:     res.ExpiryMarker,
		WalletAddress:    c.cfg.WalletAddress,
		Side:             models.SideBuy,
		InAsset:          c.cfg.BaseAsset,
		OutAsset:         cand.Address,
		InDecimals:       c.cfg.BaseDecimals,
		OutDecimals:      decimals,
		InAmount:         decimal.NewFromUint64(amount),
		OutAmount:        decimal.Zero,
		Status:           models.StatusPending,
		PriorityFee:      c.cfg.PriorityFee,
	}
	// Lease stays held on persistence failure so the asset is not bought twice.
	if err := c.persistTrade(ctx, chain, cand.Symbol, trade); err != nil {
		c.reportGap(ctx, tlog, trade, err)
	} else {
		c.publish(events.TradeSubmittedEvent{
			BaseEvent: events.NewBase(events.TradeSubmitted),
			Side:      string(models.SideBuy),
			Asset:     cand.Address,
			Symbol:    cand.Symbol,
			Handle:    res.Handle,
			Amount:    amount,
		})
	}

	c.notify(ctx, tlog, notify.Notification{
		Audience: notify.AudienceTrade,
		Message: fmt.Sprintf("<b>BUY</b> %s\nToken: <code>%s</code>\nAmount: %s\nTx: <code>%s</code>",
			cand.Symbol, cand.Address, c.cfg.TradeAmount.String(), res.Handle),
		Links: c.assetLinks(cand.Address),
	})
}

// persistTrade registers the asset and records the trade.
func (c *Controller) persistTrade(ctx context.Context, chain, symbol string, trade *models.TradeRecord) error {
	asset, err := c.deps.Store.GetOrCreateAsset(ctx, chain, trade.TradedAsset(), symbol)
	if err != nil {
		return fmt.Errorf("register asset: %w", err)
	}
	trade.AssetID = asset.ID
	if err := c.deps.Store.CreateTrade(ctx, trade); err != nil {
		return fmt.Errorf("create trade record: %w", err)
	}
	return nil
}

// reportGap handles a swap that went out but could not be recorded.
func (c *Controller) reportGap(ctx context.Context, log *zap.Logger, trade *models.TradeRecord, err error) {
	log.Error("Trade submitted but not persisted",
		zap.String("side", string(trade.Side)),
		zap.String("asset", trade.TradedAsset()),
		zap.Error(err))
	c.notify(ctx, log, notify.Notification{
		Audience: notify.AudienceError,
		Message: fmt.Sprintf("Consistency gap: %s %s submitted as <code>%s</code> but not recorded, manual reconciliation required",
			trade.Side, trade.TradedAsset(), trade.SettlementHandle),
	})
}
