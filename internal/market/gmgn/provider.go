// internal/market/gmgn/provider.go
package gmgn

import (
	"context"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/gmgn"
	"github.com/rovshanmuradov/memetrader/internal/market"
)

const (
	defaultChain    = "sol"
	defaultDecimals = 9
)

var _ market.Provider = (*Provider)(nil)

// Provider maps GMGN rankings and holdings onto market types.
type Provider struct {
	api    *gmgn.Client
	logger *zap.Logger
}

func NewProvider(api *gmgn.Client, logger *zap.Logger) *Provider {
	return &Provider{api: api, logger: logger.Named("market")}
}

func (p *Provider) FetchCandidates(ctx context.Context, q market.Query) ([]market.Candidate, error) {
	rank, err := p.api.GetSwapRank(ctx, gmgn.RankQuery{
		TimeWindow:     q.TimeWindow,
		Limit:          q.Limit,
		MaxMarketCap:   q.MaxMarketCap,
		MinHolderCount: q.MinHolderCount,
		MinCreated:     q.MinAge,
	})
	if err != nil {
		return nil, err
	}

	out := make([]market.Candidate, 0, len(rank))
	for _, t := range rank {
		if t.Address == "" {
			continue
		}
		chain := t.Chain
		if chain == "" {
			chain = defaultChain
		}
		decimals := uint8(defaultDecimals)
		if t.Decimals > 0 {
			decimals = uint8(t.Decimals)
		}
		out = append(out, market.Candidate{
			Address:  t.Address,
			Chain:    chain,
			Symbol:   t.Symbol,
			Decimals: decimals,
			// cto_flag=0 means the community has not taken over the mint authority
			OwnershipRenounced: t.CTOFlag != 0,
			PriceChange1m:      float64(t.PriceChangePercent1m),
			PriceChange5m:      float64(t.PriceChangePercent5m),
			PriceChange1h:      float64(t.PriceChangePercent1h),
		})
	}
	p.logger.Debug("candidates fetched", zap.Int("count", len(out)))
	return out, nil
}

func (p *Provider) FetchHoldings(ctx context.Context, wallet string) ([]market.Holding, error) {
	holdings, err := p.api.GetWalletHoldings(ctx, wallet)
	if err != nil {
		return nil, err
	}

	out := make([]market.Holding, 0, len(holdings))
	for _, h := range holdings {
		if h.Token.TokenAddress == "" {
			continue
		}
		out = append(out, market.Holding{
			Address:       h.Token.TokenAddress,
			Symbol:        h.Token.Symbol,
			Decimals:      uint8(h.Token.Decimals),
			Balance:       h.Balance,
			UnrealizedPnL: float64(h.UnrealizedPnL),
			Illiquid:      h.IsShowAlert,
			USDValue:      float64(h.USDValue),
			Sells:         h.Sells,
		})
	}
	return out, nil
}
