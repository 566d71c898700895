// internal/trader/skim.go
package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/blockchain"
	"github.com/rovshanmuradov/memetrader/internal/events"
	"github.com/rovshanmuradov/memetrader/internal/notify"
)

// ErrNothingToSkim means the computed skim amount is zero.
var ErrNothingToSkim = errors.New("skim amount is zero")

var errTransferUnconfirmed = errors.New("skim transfer still unconfirmed")

const skimTimeout = 5 * time.Minute

// triggerSkim runs Skim in the background. It outlives the calling cycle;
// Wait blocks on it during shutdown.
func (c *Controller) triggerSkim(ctx context.Context, asset string) {
	if c.cfg.SkimRecipient == "" || c.cfg.SkimPct.Sign() <= 0 {
		return
	}
	c.skims.Add(1)
	go func() {
		defer c.skims.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), skimTimeout)
		defer cancel()
		_, _ = c.Skim(sctx, asset)
	}()
}

// Skim transfers skim_transfer_pct of the wallet balance of asset to the
// skim recipient, retrying per the configured policy. It notifies once on
// success or once after the final failed attempt.
func (c *Controller) Skim(ctx context.Context, asset string) (string, error) {
	log := c.logger.With(zap.String("asset", asset), zap.String("recipient", c.cfg.SkimRecipient))

	attempts := 0
	// unconfirmed holds a broadcast transfer whose outcome is unknown. While
	// it is set, attempts poll its status instead of sending another one.
	unconfirmed := ""
	op := func() (string, error) {
		attempts++
		if unconfirmed != "" {
			state, err := c.deps.Transfers.TransferStatus(ctx, unconfirmed)
			if err != nil {
				return "", fmt.Errorf("check transfer %s: %w", unconfirmed, err)
			}
			switch state {
			case blockchain.TransferConfirmed:
				log.Info("Skim transfer confirmed late", zap.String("signature", unconfirmed), zap.Int("attempt", attempts))
				return unconfirmed, nil
			case blockchain.TransferPending:
				return "", fmt.Errorf("%w: %s", errTransferUnconfirmed, unconfirmed)
			}
			log.Warn("Skim transfer failed on chain, resending", zap.String("signature", unconfirmed))
			unconfirmed = ""
		}

		bal, err := c.deps.Balances.GetBalance(ctx, c.cfg.WalletAddress, asset)
		if err != nil {
			return "", fmt.Errorf("read balance: %w", err)
		}
		amount := toSmallest(bal.UI().Mul(c.cfg.SkimPct).Div(hundred), bal.Decimals)
		if amount == 0 {
			return "", backoff.Permanent(ErrNothingToSkim)
		}
		sig, err := c.deps.Transfers.Transfer(ctx, blockchain.TransferRequest{
			Recipient: c.cfg.SkimRecipient,
			Asset:     asset,
			Amount:    amount,
			Decimals:  bal.Decimals,
		})
		if err != nil {
			unconfirmed = sig
			return "", fmt.Errorf("transfer %d: %w", amount, err)
		}
		log.Info("Skim transferred", zap.Uint64("amount", amount), zap.String("signature", sig), zap.Int("attempt", attempts))
		return sig, nil
	}

	sig, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.Skim.Delay)),
		backoff.WithMaxTries(c.cfg.Skim.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("Skim attempt failed, retrying", zap.Int("attempt", attempts), zap.Duration("next", next), zap.Error(err))
		}))

	ev := events.SkimEvent{
		Asset:     asset,
		Recipient: c.cfg.SkimRecipient,
		Signature: sig,
		Attempts:  attempts,
		Err:       err,
	}
	if errors.Is(err, ErrNothingToSkim) {
		log.Info("Nothing to skim")
		return "", err
	}
	if err != nil {
		ev.BaseEvent = events.NewBase(events.SkimFailed)
		c.publish(ev)
		log.Error("Skim failed", zap.Int("attempts", attempts), zap.Error(err))
		c.notify(ctx, log, notify.Notification{
			Audience: notify.AudienceError,
			Message:  fmt.Sprintf("Skim transfer of <code>%s</code> failed after %d attempts: %v", asset, attempts, err),
		})
		return "", err
	}

	ev.BaseEvent = events.NewBase(events.SkimCompleted)
	c.publish(ev)
	c.notify(ctx, log, notify.Notification{
		Audience: notify.AudienceTrade,
		Message:  fmt.Sprintf("Skim transfer of <code>%s</code> sent\nTx: <code>%s</code>", asset, sig),
		Links:    c.assetLinks(asset),
	})
	return sig, nil
}
