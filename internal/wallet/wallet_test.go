package wallet

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWallet(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	w, err := NewWallet(key.String())
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey)
	assert.Equal(t, key.PublicKey().String(), w.String())

	_, err = NewWallet("")
	assert.Error(t, err)
	_, err = NewWallet("not-base58-0OIl")
	assert.Error(t, err)
}

func TestGetATAIsCached(t *testing.T) {
	key, _ := solana.NewRandomPrivateKey()
	w, err := NewWallet(key.String())
	require.NoError(t, err)

	mint := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	want, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	require.NoError(t, err)

	got, err := w.GetATA(mint)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	again, _ := w.GetATA(mint)
	assert.Equal(t, got, again)
}

func TestSignTransactionReplacesSignatures(t *testing.T) {
	key, _ := solana.NewRandomPrivateKey()
	w, _ := NewWallet(key.String())

	recipient := solana.NewWallet().PublicKey()
	ix, err := CreateAssociatedTokenAccountIdempotentInstruction(w.PublicKey, recipient, solana.SolMint)
	require.NoError(t, err)

	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(w.PublicKey))
	require.NoError(t, err)
	tx.Signatures = []solana.Signature{{}}

	require.NoError(t, w.SignTransaction(tx))
	require.Len(t, tx.Signatures, 1)
	assert.NotEqual(t, solana.Signature{}, tx.Signatures[0])
	assert.NoError(t, tx.VerifySignatures())
}
