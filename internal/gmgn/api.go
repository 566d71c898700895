// internal/gmgn/api.go
package gmgn

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// RankQuery parameterizes the swaps ranking.
type RankQuery struct {
	TimeWindow     string
	Limit          int
	MaxMarketCap   float64
	MinHolderCount int
	MinCreated     string
}

// GetSwapRank returns the most swapped tokens over the window, already
// filtered server side to renounced and non-frozen mints.
func (c *Client) GetSwapRank(ctx context.Context, q RankQuery) ([]RankToken, error) {
	v := url.Values{}
	v.Set("orderby", "swaps")
	v.Set("direction", "desc")
	v.Set("limit", strconv.Itoa(q.Limit))
	v["filters[]"] = []string{"renounced", "frozen"}
	if q.MaxMarketCap > 0 {
		v.Set("max_marketcap", strconv.FormatFloat(q.MaxMarketCap, 'f', -1, 64))
	}
	if q.MinHolderCount > 0 {
		v.Set("min_holder_count", strconv.Itoa(q.MinHolderCount))
	}
	if q.MinCreated != "" {
		v.Set("min_created", q.MinCreated)
	}

	var data rankData
	if err := c.get(ctx, "/defi/quotation/v1/rank/sol/swaps/"+url.PathEscape(q.TimeWindow), v, &data); err != nil {
		return nil, fmt.Errorf("get swap rank: %w", err)
	}
	return data.Rank, nil
}

// GetWalletHoldings returns the wallet positions sorted by unrealized profit.
func (c *Client) GetWalletHoldings(ctx context.Context, wallet string) ([]Holding, error) {
	v := url.Values{}
	v.Set("orderby", "unrealized_profit")
	v.Set("direction", "desc")
	v.Set("showsmall", "true")
	v.Set("sellout", "true")

	var data holdingsData
	if err := c.get(ctx, "/api/v1/wallet_holdings/sol/"+url.PathEscape(wallet), v, &data); err != nil {
		return nil, fmt.Errorf("get wallet holdings: %w", err)
	}
	return data.Holdings, nil
}

// RouteParams parameterizes a swap quote. Slippage is a percentage and Fee is
// the priority fee in SOL.
type RouteParams struct {
	TokenIn  string
	TokenOut string
	Amount   uint64
	From     string
	Slippage float64
	SwapMode string
	Fee      float64
}

// GetSwapRoute returns a quote with an unsigned transaction.
func (c *Client) GetSwapRoute(ctx context.Context, p RouteParams) (*SwapRoute, error) {
	v := url.Values{}
	v.Set("token_in_address", p.TokenIn)
	v.Set("token_out_address", p.TokenOut)
	v.Set("in_amount", strconv.FormatUint(p.Amount, 10))
	v.Set("from_address", p.From)
	v.Set("slippage", strconv.FormatFloat(p.Slippage, 'f', -1, 64))
	v.Set("swap_mode", p.SwapMode)
	v.Set("fee", strconv.FormatFloat(p.Fee, 'f', -1, 64))

	var route SwapRoute
	if err := c.get(ctx, "/defi/router/v1/sol/tx/get_swap_route", v, &route); err != nil {
		return nil, fmt.Errorf("get swap route: %w", err)
	}
	return &route, nil
}

// SubmitSignedTransaction submits a base64 encoded signed transaction and
// returns its hash.
func (c *Client) SubmitSignedTransaction(ctx context.Context, signedTx string) (string, error) {
	var data submitData
	body := map[string]string{"signed_tx": signedTx}
	if err := c.post(ctx, "/defi/router/v1/sol/tx/submit_signed_transaction", body, &data); err != nil {
		return "", fmt.Errorf("submit signed transaction: %w", err)
	}
	return data.Hash, nil
}

// GetTransactionStatus queries the router for a submitted transaction.
func (c *Client) GetTransactionStatus(ctx context.Context, hash string, lastValidHeight uint64) (*TxStatus, error) {
	v := url.Values{}
	v.Set("hash", hash)
	v.Set("last_valid_height", strconv.FormatUint(lastValidHeight, 10))

	var status TxStatus
	if err := c.get(ctx, "/defi/router/v1/sol/tx/get_transaction_status", v, &status); err != nil {
		return nil, fmt.Errorf("get transaction status: %w", err)
	}
	return &status, nil
}
