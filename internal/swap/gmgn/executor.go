// internal/swap/gmgn/executor.go
package gmgn

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/gmgn"
	"github.com/rovshanmuradov/memetrader/internal/swap"
)

// Signer signs router transactions for the trading wallet.
type Signer interface {
	SignTransaction(tx *solana.Transaction) error
	String() string
}

var (
	_ swap.Executor = (*Executor)(nil)
	_ swap.Oracle   = (*Executor)(nil)
)

// Executor quotes a swap through the GMGN router, signs the returned
// transaction locally and submits it back to the router.
type Executor struct {
	api    *gmgn.Client
	signer Signer
	logger *zap.Logger
}

func NewExecutor(api *gmgn.Client, signer Signer, logger *zap.Logger) *Executor {
	return &Executor{api: api, signer: signer, logger: logger.Named("swap")}
}

func (e *Executor) ExecuteSwap(ctx context.Context, req swap.Request) (*swap.Result, error) {
	if req.Amount == 0 {
		return nil, errors.New("swap amount is zero")
	}

	route, err := e.api.GetSwapRoute(ctx, gmgn.RouteParams{
		TokenIn:  req.InputAsset,
		TokenOut: req.OutputAsset,
		Amount:   req.Amount,
		From:     e.signer.String(),
		Slippage: float64(req.SlippageBps) / 100,
		SwapMode: string(req.Mode),
		Fee:      req.PriorityFee.InexactFloat64(),
	})
	if err != nil {
		return nil, err
	}
	if route.RawTx.SwapTransaction == "" {
		return nil, errors.New("swap route has no transaction")
	}

	tx, err := solana.TransactionFromBase64(route.RawTx.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("decode swap transaction: %w", err)
	}
	if err := e.signer.SignTransaction(tx); err != nil {
		return nil, fmt.Errorf("sign swap transaction: %w", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode signed transaction: %w", err)
	}

	hash, err := e.api.SubmitSignedTransaction(ctx, base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		return nil, err
	}
	if hash == "" {
		return nil, swap.ErrMissingHandle
	}

	e.logger.Info("Swap submitted",
		zap.String("mode", string(req.Mode)),
		zap.String("in", req.InputAsset),
		zap.String("out", req.OutputAsset),
		zap.Uint64("amount", req.Amount),
		zap.String("hash", hash),
		zap.Uint64("last_valid_height", route.RawTx.LastValidBlockHeight))

	return &swap.Result{Handle: hash, ExpiryMarker: route.RawTx.LastValidBlockHeight}, nil
}
