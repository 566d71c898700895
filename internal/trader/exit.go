// internal/trader/exit.go
package trader

import (
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/memetrader/internal/market"
)

// ExitPolicy decides how much of a holding to sell, in whole units. Zero
// means hold.
type ExitPolicy interface {
	SellAmount(h market.Holding) decimal.Decimal
}

// FullExit sells the whole balance once PnL exceeds ThresholdPct.
type FullExit struct {
	ThresholdPct float64
}

func (p FullExit) SellAmount(h market.Holding) decimal.Decimal {
	if h.UnrealizedPnL*100 > p.ThresholdPct {
		return h.Balance
	}
	return decimal.Zero
}

// StagedExit picks the threshold by how many times the holding was already
// sold. Past the last stage it holds.
type StagedExit struct {
	ThresholdsPct []float64
}

func (p StagedExit) SellAmount(h market.Holding) decimal.Decimal {
	if h.Sells < 0 || h.Sells >= len(p.ThresholdsPct) {
		return decimal.Zero
	}
	if h.UnrealizedPnL*100 > p.ThresholdsPct[h.Sells] {
		return h.Balance
	}
	return decimal.Zero
}
