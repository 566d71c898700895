// internal/trader/config.go
package trader

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/memetrader/internal/config"
	"github.com/rovshanmuradov/memetrader/internal/market"
)

// FromConfig builds controller settings from the application config.
func FromConfig(cfg *config.Config, walletAddress string) Config {
	var exit ExitPolicy = FullExit{ThresholdPct: cfg.ProfitTakeThresholdPct}
	if cfg.ExitPolicy == config.ExitPolicyStaged {
		exit = StagedExit{ThresholdsPct: cfg.StagedThresholdsPct}
	}

	return Config{
		Chain:         cfg.Chain,
		WalletAddress: walletAddress,
		BaseAsset:     cfg.BaseAsset,
		BaseDecimals:  cfg.BaseDecimals,

		TradeAmount:  decimal.NewFromFloat(cfg.TradeAmount),
		PriorityFee:  decimal.NewFromFloat(cfg.PriorityFee),
		SlippageBps:  cfg.SlippageBps,
		SafetyMargin: decimal.NewFromFloat(cfg.SafetyMarginMultiplier),
		Query: market.Query{
			TimeWindow:     cfg.TimeWindow,
			Limit:          cfg.CandidateLimit,
			MaxMarketCap:   cfg.MaxMarketCap,
			MinHolderCount: cfg.MinHolderCount,
			MinAge:         cfg.MinAge,
		},
		Filter: Filter{
			Band1m: PriceBand(cfg.PriceBand1m),
			Band5m: PriceBand(cfg.PriceBand5m),
			Band1h: PriceBand(cfg.PriceBand1h),
		},

		Exit:           exit,
		MinPositionUSD: cfg.MinPositionUSD,

		SkimRecipient: cfg.SkimRecipient,
		SkimPct:       decimal.NewFromFloat(cfg.SkimTransferPct),
		Skim: RetryPolicy{
			MaxAttempts: uint(cfg.SkimMaxRetries),
			Delay:       cfg.SkimRetryDelay,
		},

		CycleLockTTL:   cfg.CycleLockTTL,
		AssetLeaseTTL:  cfg.AssetLeaseTTL,
		PendingTimeout: cfg.PendingTimeout,
		Retention:      time.Duration(cfg.RetentionDays) * 24 * time.Hour,
	}
}
