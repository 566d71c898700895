package solbc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/memetrader/internal/blockchain"
	"github.com/rovshanmuradov/memetrader/internal/swap"
	"github.com/rovshanmuradov/memetrader/internal/wallet"
)

type mockRPC struct {
	mock.Mock
}

func (m *mockRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	args := m.Called(ctx, commitment)
	res, _ := args.Get(0).(*rpc.GetLatestBlockhashResult)
	return res, args.Error(1)
}

func (m *mockRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	args := m.Called(ctx, tx, opts)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *mockRPC) GetSignatureStatuses(ctx context.Context, search bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	args := m.Called(ctx, search, sigs)
	res, _ := args.Get(0).(*rpc.GetSignatureStatusesResult)
	return res, args.Error(1)
}

func (m *mockRPC) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	args := m.Called(ctx, account, commitment)
	res, _ := args.Get(0).(*rpc.GetBalanceResult)
	return res, args.Error(1)
}

func (m *mockRPC) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	args := m.Called(ctx, account, commitment)
	res, _ := args.Get(0).(*rpc.GetTokenAccountBalanceResult)
	return res, args.Error(1)
}

func (m *mockRPC) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	args := m.Called(ctx, commitment)
	return args.Get(0).(uint64), args.Error(1)
}

func newTestChain(t *testing.T) (*Chain, *mockRPC, *wallet.Wallet) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w, err := wallet.NewWallet(key.String())
	require.NoError(t, err)

	m := &mockRPC{}
	client := NewClientWithRPC(m, zaptest.NewLogger(t))
	return NewChain(client, w, ChainOptions{}, zaptest.NewLogger(t)), m, w
}

func TestGetBalanceNative(t *testing.T) {
	c, m, w := newTestChain(t)
	m.On("GetBalance", mock.Anything, w.PublicKey, rpc.CommitmentConfirmed).
		Return(&rpc.GetBalanceResult{Value: 2_500_000_000}, nil)

	bal, err := c.GetBalance(context.Background(), w.String(), "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), bal.Raw)
	assert.Equal(t, uint8(9), bal.Decimals)
	assert.Equal(t, "2.5", bal.UI().String())

	bal, err = c.GetBalance(context.Background(), w.String(), solana.SolMint.String())
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), bal.Raw)
}

func TestGetBalanceToken(t *testing.T) {
	c, m, w := newTestChain(t)
	mint := solana.NewWallet().PublicKey()
	ata, _, _ := solana.FindAssociatedTokenAddress(w.PublicKey, mint)

	m.On("GetTokenAccountBalance", mock.Anything, ata, rpc.CommitmentConfirmed).
		Return(&rpc.GetTokenAccountBalanceResult{Value: &rpc.UiTokenAmount{Amount: "1234500", Decimals: 6}}, nil)

	bal, err := c.GetBalance(context.Background(), w.String(), mint.String())
	require.NoError(t, err)
	assert.Equal(t, uint64(1234500), bal.Raw)
	assert.Equal(t, uint8(6), bal.Decimals)
}

func TestGetBalanceMissingTokenAccount(t *testing.T) {
	c, m, w := newTestChain(t)
	mint := solana.NewWallet().PublicKey()
	m.On("GetTokenAccountBalance", mock.Anything, mock.Anything, rpc.CommitmentConfirmed).
		Return(nil, errors.New("could not find account"))

	bal, err := c.GetBalance(context.Background(), w.String(), mint.String())
	require.NoError(t, err)
	assert.Zero(t, bal.Raw)
}

func statuses(st *rpc.SignatureStatusesResult) *rpc.GetSignatureStatusesResult {
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{st}}
}

func TestSettlementStatusFromRPC(t *testing.T) {
	sig := solana.Signature{1, 2, 3}
	ctx := context.Background()

	cases := []struct {
		name   string
		status *rpc.SignatureStatusesResult
		height uint64
		want   swap.Status
	}{
		{"confirmed", &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}, 0, swap.StatusSuccess},
		{"finalized", &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusFinalized}, 0, swap.StatusSuccess},
		{"processed", &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusProcessed}, 0, swap.StatusUndone},
		{"on-chain error", &rpc.SignatureStatusesResult{Err: map[string]interface{}{"InstructionError": 1}}, 0, swap.StatusFailed},
		{"unknown before expiry", nil, 90, swap.StatusUndone},
		{"unknown after expiry", nil, 101, swap.StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, m, _ := newTestChain(t)
			m.On("GetSignatureStatuses", mock.Anything, true, []solana.Signature{sig}).Return(statuses(tc.status), nil)
			m.On("GetBlockHeight", mock.Anything, rpc.CommitmentFinalized).Return(tc.height, nil)

			got, err := c.GetSettlementStatus(ctx, sig.String(), 100)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSettlementStatusInvalidHandle(t *testing.T) {
	c, _, _ := newTestChain(t)
	got, err := c.GetSettlementStatus(context.Background(), "not-a-signature", 1)
	require.NoError(t, err)
	assert.Equal(t, swap.StatusFailed, got)
}

func TestTransferStatus(t *testing.T) {
	sig := solana.Signature{4, 5, 6}

	cases := []struct {
		name   string
		status *rpc.SignatureStatusesResult
		want   blockchain.TransferState
	}{
		{"unknown", nil, blockchain.TransferPending},
		{"processed", &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusProcessed}, blockchain.TransferPending},
		{"confirmed", &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}, blockchain.TransferConfirmed},
		{"finalized", &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusFinalized}, blockchain.TransferConfirmed},
		{"on-chain error", &rpc.SignatureStatusesResult{Err: map[string]interface{}{"InstructionError": 1}}, blockchain.TransferFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, m, _ := newTestChain(t)
			m.On("GetSignatureStatuses", mock.Anything, true, []solana.Signature{sig}).Return(statuses(tc.status), nil)

			got, err := c.TransferStatus(context.Background(), sig.String())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("rpc error stays pending", func(t *testing.T) {
		c, m, _ := newTestChain(t)
		m.On("GetSignatureStatuses", mock.Anything, true, []solana.Signature{sig}).Return(nil, errors.New("503"))

		got, err := c.TransferStatus(context.Background(), sig.String())
		assert.Error(t, err)
		assert.Equal(t, blockchain.TransferPending, got)
	})
}

func TestPreparePriorityInstructions(t *testing.T) {
	c, _, _ := newTestChain(t)
	assert.Empty(t, c.preparePriorityInstructions())

	c.opts = ChainOptions{PriorityFeeSol: 0.0001, ComputeUnits: 100_000}
	ixs := c.preparePriorityInstructions()
	require.Len(t, ixs, 2)
	assert.Equal(t, computeBudgetProgram, ixs[0].ProgramID())
}

var computeBudgetProgram = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

func TestWaitForTransactionConfirmation(t *testing.T) {
	sig := solana.Signature{7}

	t.Run("confirmed after polling", func(t *testing.T) {
		m := new(mockRPC)
		c := NewClientWithRPC(m, zaptest.NewLogger(t))
		c.pollInterval = time.Millisecond

		m.On("GetSignatureStatuses", mock.Anything, true, []solana.Signature{sig}).
			Return(statuses(nil), nil).Once()
		m.On("GetSignatureStatuses", mock.Anything, true, []solana.Signature{sig}).
			Return(statuses(&rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusProcessed}), nil).Once()
		m.On("GetSignatureStatuses", mock.Anything, true, []solana.Signature{sig}).
			Return(statuses(&rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}), nil).Once()

		require.NoError(t, c.WaitForTransactionConfirmation(context.Background(), sig))
		m.AssertNumberOfCalls(t, "GetSignatureStatuses", 3)
	})

	t.Run("failed on chain", func(t *testing.T) {
		m := new(mockRPC)
		c := NewClientWithRPC(m, zaptest.NewLogger(t))
		c.pollInterval = time.Millisecond

		m.On("GetSignatureStatuses", mock.Anything, true, []solana.Signature{sig}).
			Return(statuses(&rpc.SignatureStatusesResult{Err: map[string]interface{}{"InstructionError": 1}}), nil)

		err := c.WaitForTransactionConfirmation(context.Background(), sig)
		assert.ErrorIs(t, err, ErrTransactionFailed)
		m.AssertNumberOfCalls(t, "GetSignatureStatuses", 1)
	})

	t.Run("timeout", func(t *testing.T) {
		m := new(mockRPC)
		c := NewClientWithRPC(m, zaptest.NewLogger(t))
		c.pollInterval = time.Millisecond
		c.confirmWait = 20 * time.Millisecond

		m.On("GetSignatureStatuses", mock.Anything, true, []solana.Signature{sig}).Return(statuses(nil), nil)

		err := c.WaitForTransactionConfirmation(context.Background(), sig)
		assert.ErrorIs(t, err, ErrConfirmationTimeout)
	})
}
