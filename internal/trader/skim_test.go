package trader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/memetrader/internal/blockchain"
	"github.com/rovshanmuradov/memetrader/internal/notify"
	"github.com/rovshanmuradov/memetrader/internal/storage/models"
	"github.com/rovshanmuradov/memetrader/internal/swap"
)

func TestSkimRetriesUntilSuccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tr := e.seedTrade(t, "e", "HE", models.SideBuy, models.StatusPending)
	e.oracle.set("HE", swap.StatusSuccess)
	e.balances.set("e", 2_000_000, 6)

	e.transfers.On("Transfer", mock.Anything, mock.Anything).Return("", errors.New("blockhash not found")).Twice()
	e.transfers.On("Transfer", mock.Anything, mock.Anything).Return("SIG3", nil).Once()

	_, err := e.ctrl.RunReconcileCycle(ctx)
	require.NoError(t, err)
	require.NoError(t, e.ctrl.Wait(ctx))

	e.transfers.AssertNumberOfCalls(t, "Transfer", 3)
	success := e.notes.byAudience(notify.AudienceTrade)
	require.Len(t, success, 1)
	assert.Contains(t, success[0].Message, "SIG3")
	assert.Empty(t, e.notes.byAudience(notify.AudienceError))

	assert.Equal(t, models.StatusCompleted, e.trade(t, "HE").Status)
	assert.Equal(t, []models.Status{models.StatusPending, models.StatusCompleted}, e.store.StatusHistory(tr.ID))
}

func TestSkimGivesUpAfterMaxAttempts(t *testing.T) {
	e := newEnv(t)
	e.balances.set("e", 1_000, 3)
	e.transfers.On("Transfer", mock.Anything, mock.Anything).Return("", errors.New("rpc down"))

	_, err := e.ctrl.Skim(context.Background(), "e")
	require.Error(t, err)

	e.transfers.AssertNumberOfCalls(t, "Transfer", 3)
	failures := e.notes.byAudience(notify.AudienceError)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Message, "3 attempts")
	assert.Empty(t, e.notes.byAudience(notify.AudienceTrade))
}

func TestSkimDoesNotResendUnconfirmedTransfer(t *testing.T) {
	e := newEnv(t)
	e.balances.set("e", 1_000, 3)
	e.transfers.On("Transfer", mock.Anything, mock.Anything).
		Return("SIG1", errors.New("confirm SIG1: context deadline exceeded")).Once()
	e.transfers.On("TransferStatus", mock.Anything, "SIG1").Return(blockchain.TransferPending, nil).Once()
	e.transfers.On("TransferStatus", mock.Anything, "SIG1").Return(blockchain.TransferConfirmed, nil).Once()

	sig, err := e.ctrl.Skim(context.Background(), "e")
	require.NoError(t, err)
	assert.Equal(t, "SIG1", sig)

	e.transfers.AssertNumberOfCalls(t, "Transfer", 1)
	e.transfers.AssertNumberOfCalls(t, "TransferStatus", 2)
	success := e.notes.byAudience(notify.AudienceTrade)
	require.Len(t, success, 1)
	assert.Contains(t, success[0].Message, "SIG1")
}

func TestSkimResendsAfterTransferFailedOnChain(t *testing.T) {
	e := newEnv(t)
	e.balances.set("e", 1_000, 3)
	e.transfers.On("Transfer", mock.Anything, mock.Anything).
		Return("SIG1", errors.New("confirm SIG1: transaction failed")).Once()
	e.transfers.On("TransferStatus", mock.Anything, "SIG1").Return(blockchain.TransferFailed, nil).Once()
	e.transfers.On("Transfer", mock.Anything, mock.Anything).Return("SIG2", nil).Once()

	sig, err := e.ctrl.Skim(context.Background(), "e")
	require.NoError(t, err)
	assert.Equal(t, "SIG2", sig)
	e.transfers.AssertNumberOfCalls(t, "Transfer", 2)
}

func TestSkimUnconfirmedUntilLastAttempt(t *testing.T) {
	e := newEnv(t)
	e.balances.set("e", 1_000, 3)
	e.transfers.On("Transfer", mock.Anything, mock.Anything).
		Return("SIG1", errors.New("confirm SIG1: context deadline exceeded")).Once()
	e.transfers.On("TransferStatus", mock.Anything, "SIG1").Return(blockchain.TransferPending, nil)

	_, err := e.ctrl.Skim(context.Background(), "e")
	require.ErrorIs(t, err, errTransferUnconfirmed)

	e.transfers.AssertNumberOfCalls(t, "Transfer", 1)
	failures := e.notes.byAudience(notify.AudienceError)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Message, "SIG1")
}

func TestSkimHonoursRetryPolicy(t *testing.T) {
	e := newEnv(t, func(c *Config) { c.Skim = RetryPolicy{MaxAttempts: 5} })
	e.balances.set("e", 1_000, 3)
	e.transfers.On("Transfer", mock.Anything, mock.Anything).Return("", errors.New("rpc down"))

	_, err := e.ctrl.Skim(context.Background(), "e")
	require.Error(t, err)
	e.transfers.AssertNumberOfCalls(t, "Transfer", 5)
}

func TestSkimNothingToTransfer(t *testing.T) {
	e := newEnv(t)
	e.balances.set("dust", 5, 0)

	_, err := e.ctrl.Skim(context.Background(), "dust")
	require.ErrorIs(t, err, ErrNothingToSkim)
	e.transfers.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
	assert.Empty(t, e.notes.notes)
}

func TestSkimDisabledWithoutRecipient(t *testing.T) {
	e := newEnv(t, func(c *Config) { c.SkimRecipient = "" })
	ctx := context.Background()
	e.seedTrade(t, "e", "HE", models.SideBuy, models.StatusPending)
	e.oracle.set("HE", swap.StatusSuccess)

	_, err := e.ctrl.RunReconcileCycle(ctx)
	require.NoError(t, err)
	require.NoError(t, e.ctrl.Wait(ctx))
	e.transfers.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
}
