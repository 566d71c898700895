// internal/blockchain/blockchain.go
package blockchain

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
)

// Balance is an on-chain amount in smallest units.
type Balance struct {
	Raw      uint64
	Decimals uint8
}

// UI returns the amount in whole units.
func (b Balance) UI() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(b.Raw), -int32(b.Decimals))
}

// BalanceReader reads wallet balances. An empty asset or the native mint
// returns the native balance.
type BalanceReader interface {
	GetBalance(ctx context.Context, wallet, asset string) (Balance, error)
}

// TransferRequest moves Amount smallest units of Asset to Recipient.
type TransferRequest struct {
	Recipient string
	Asset     string
	Amount    uint64
	Decimals  uint8
}

// TransferState is the on-chain state of a sent transfer.
type TransferState int

const (
	TransferPending TransferState = iota
	TransferConfirmed
	TransferFailed
)

// Transferer sends assets from the service wallet. Transfer returns the
// signature together with an error when the transaction was broadcast but
// not confirmed; callers must check TransferStatus before sending again.
type Transferer interface {
	Transfer(ctx context.Context, req TransferRequest) (signature string, err error)
	TransferStatus(ctx context.Context, signature string) (TransferState, error)
}
