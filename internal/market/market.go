// internal/market/market.go
package market

import (
	"context"

	"github.com/shopspring/decimal"
)

// Query parameterizes the ranked candidate list.
type Query struct {
	TimeWindow     string
	Limit          int
	MaxMarketCap   float64
	MinHolderCount int
	MinAge         string
}

// Candidate is a ranked asset offered for buy evaluation. Price changes are
// percentages.
type Candidate struct {
	Address            string
	Chain              string
	Symbol             string
	Decimals           uint8
	OwnershipRenounced bool
	PriceChange1m      float64
	PriceChange5m      float64
	PriceChange1h      float64
}

// Holding is a position held by the wallet.
type Holding struct {
	Address       string
	Symbol        string
	Decimals      uint8
	Balance       decimal.Decimal // whole units
	UnrealizedPnL float64         // fraction, 0.4 means +40%
	Illiquid      bool
	USDValue      float64
	Sells         int
}

// Provider supplies market data.
type Provider interface {
	FetchCandidates(ctx context.Context, q Query) ([]Candidate, error)
	FetchHoldings(ctx context.Context, wallet string) ([]Holding, error)
}
