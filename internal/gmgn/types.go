// internal/gmgn/types.go
package gmgn

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Number accepts JSON numbers, numeric strings and null.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// RankToken is one entry of the swaps ranking.
type RankToken struct {
	Address              string `json:"address"`
	Chain                string `json:"chain"`
	Symbol               string `json:"symbol"`
	Decimals             int    `json:"decimals"`
	CTOFlag              int    `json:"cto_flag"`
	MarketCap            Number `json:"market_cap"`
	HolderCount          int    `json:"holder_count"`
	PriceChangePercent1m Number `json:"price_change_percent1m"`
	PriceChangePercent5m Number `json:"price_change_percent5m"`
	PriceChangePercent1h Number `json:"price_change_percent1h"`
}

type rankData struct {
	Rank []RankToken `json:"rank"`
}

// HoldingToken is the token block nested in a holding.
type HoldingToken struct {
	TokenAddress string `json:"token_address"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Decimals     int    `json:"decimals"`
}

// Holding is one wallet position.
type Holding struct {
	Token         HoldingToken    `json:"token"`
	Balance       decimal.Decimal `json:"balance"`
	USDValue      Number          `json:"usd_value"`
	UnrealizedPnL Number          `json:"unrealized_pnl"`
	IsShowAlert   bool            `json:"is_show_alert"`
	Sells         int             `json:"sells"`
}

type holdingsData struct {
	Holdings []Holding `json:"holdings"`
}

// RawTx is the unsigned transaction returned by the router.
type RawTx struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SwapRoute is the router quote.
type SwapRoute struct {
	Quote json.RawMessage `json:"quote"`
	RawTx RawTx           `json:"raw_tx"`
}

type submitData struct {
	Hash string `json:"hash"`
}

// TxStatus is the router view of a submitted transaction.
type TxStatus struct {
	Success bool   `json:"success"`
	Expired bool   `json:"expired"`
	Failed  bool   `json:"failed"`
	ErrCode string `json:"err_code"`
}
