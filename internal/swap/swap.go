// internal/swap/swap.go
package swap

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Mode selects which side of the swap is fixed.
type Mode string

const (
	// ExactIn fixes the input amount; output varies.
	ExactIn Mode = "ExactIn"
	// ExactOut fixes the desired output; consumed input varies.
	ExactOut Mode = "ExactOut"
)

// ErrMissingHandle is returned when the provider accepted a swap but did not
// return a settlement handle.
var ErrMissingHandle = errors.New("swap response has no settlement handle")

// Request describes one swap. Amount is in smallest units of the fixed side.
type Request struct {
	Mode        Mode
	InputAsset  string
	OutputAsset string
	Amount      uint64
	SlippageBps int
	PriorityFee decimal.Decimal
}

// Result identifies a submitted swap.
type Result struct {
	Handle       string
	ExpiryMarker uint64
}

// Executor submits swaps.
type Executor interface {
	ExecuteSwap(ctx context.Context, req Request) (*Result, error)
}

// Status is the settlement outcome reported by an Oracle.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusUndone  Status = "undone"
)

// Oracle resolves a settlement handle to its outcome.
type Oracle interface {
	GetSettlementStatus(ctx context.Context, handle string, expiryMarker uint64) (Status, error)
}
