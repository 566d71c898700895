package gmgn

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	gmgnapi "github.com/rovshanmuradov/memetrader/internal/gmgn"
	"github.com/rovshanmuradov/memetrader/internal/swap"
	"github.com/rovshanmuradov/memetrader/internal/wallet"
)

func unsignedTx(t *testing.T, payer solana.PublicKey) string {
	t.Helper()
	ix := system.NewTransferInstruction(1, payer, solana.NewWallet().PublicKey()).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{9}, solana.TransactionPayer(payer))
	require.NoError(t, err)
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

type routerStub struct {
	t        *testing.T
	payer    solana.PublicKey
	hash     string
	status   string
	signedTx string
}

func (s *routerStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/get_swap_route"):
		resp := map[string]interface{}{
			"code": 0,
			"data": map[string]interface{}{
				"raw_tx": map[string]interface{}{
					"swapTransaction":      unsignedTx(s.t, s.payer),
					"lastValidBlockHeight": 1234,
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	case strings.HasSuffix(r.URL.Path, "/submit_signed_transaction"):
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.signedTx = body["signed_tx"]
		_, _ = w.Write([]byte(`{"code":0,"data":{"hash":"` + s.hash + `"}}`))
	case strings.HasSuffix(r.URL.Path, "/get_transaction_status"):
		_, _ = w.Write([]byte(`{"code":0,"data":` + s.status + `}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestExecutor(t *testing.T, stub *routerStub) (*Executor, *wallet.Wallet) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w, err := wallet.NewWallet(key.String())
	require.NoError(t, err)
	stub.t = t
	stub.payer = w.PublicKey

	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	api := gmgnapi.NewClient(srv.URL, 0, zaptest.NewLogger(t))
	return NewExecutor(api, w, zaptest.NewLogger(t)), w
}

func TestExecuteSwapSignsAndSubmits(t *testing.T) {
	stub := &routerStub{hash: "H1"}
	e, _ := newTestExecutor(t, stub)

	res, err := e.ExecuteSwap(context.Background(), swap.Request{
		Mode:        swap.ExactIn,
		InputAsset:  solana.SolMint.String(),
		OutputAsset: "mint",
		Amount:      10_000_000,
		SlippageBps: 1000,
		PriorityFee: decimal.RequireFromString("0.00005"),
	})
	require.NoError(t, err)
	assert.Equal(t, "H1", res.Handle)
	assert.Equal(t, uint64(1234), res.ExpiryMarker)

	signed, err := solana.TransactionFromBase64(stub.signedTx)
	require.NoError(t, err)
	require.Len(t, signed.Signatures, 1)
	assert.NoError(t, signed.VerifySignatures())
}

func TestExecuteSwapMissingHandle(t *testing.T) {
	stub := &routerStub{hash: ""}
	e, _ := newTestExecutor(t, stub)

	_, err := e.ExecuteSwap(context.Background(), swap.Request{Mode: swap.ExactOut, Amount: 5})
	assert.ErrorIs(t, err, swap.ErrMissingHandle)
}

func TestExecuteSwapZeroAmount(t *testing.T) {
	e, _ := newTestExecutor(t, &routerStub{hash: "H"})
	_, err := e.ExecuteSwap(context.Background(), swap.Request{Mode: swap.ExactIn})
	assert.Error(t, err)
}

func TestSettlementStatusMapping(t *testing.T) {
	cases := []struct {
		body string
		want swap.Status
	}{
		{`{"success":true}`, swap.StatusSuccess},
		{`{"success":false,"expired":true}`, swap.StatusFailed},
		{`{"success":false,"failed":true,"err_code":"0x1e"}`, swap.StatusFailed},
		{`{"success":false,"failed":true,"err_code":"0x1"}`, swap.StatusFailed},
		{`{"success":false,"failed":true,"err_code":"0x28"}`, swap.StatusFailed},
		{`{"success":false,"failed":true,"err_code":"0x0"}`, swap.StatusUndone},
		{`{"success":false,"failed":false,"expired":false}`, swap.StatusUndone},
	}
	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			e, _ := newTestExecutor(t, &routerStub{status: tc.body})
			got, err := e.GetSettlementStatus(context.Background(), "H1", 100)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
