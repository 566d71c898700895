// internal/swap/gmgn/oracle.go
package gmgn

import (
	"context"

	"github.com/rovshanmuradov/memetrader/internal/gmgn"
	"github.com/rovshanmuradov/memetrader/internal/swap"
)

// Router error codes that mean the transaction will never land.
var finalErrCodes = map[string]struct{}{
	"0x1e": {},
	"0x1":  {},
	"0x28": {},
}

// GetSettlementStatus asks the router about a submitted transaction.
func (e *Executor) GetSettlementStatus(ctx context.Context, handle string, expiryMarker uint64) (swap.Status, error) {
	st, err := e.api.GetTransactionStatus(ctx, handle, expiryMarker)
	if err != nil {
		return swap.StatusUndone, err
	}
	return mapStatus(st), nil
}

func mapStatus(st *gmgn.TxStatus) swap.Status {
	switch {
	case st.Success:
		return swap.StatusSuccess
	case st.Expired:
		return swap.StatusFailed
	case st.Failed:
		if _, ok := finalErrCodes[st.ErrCode]; ok {
			return swap.StatusFailed
		}
	}
	return swap.StatusUndone
}
