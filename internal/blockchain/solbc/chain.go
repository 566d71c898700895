// internal/blockchain/solbc/chain.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/blockchain"
	"github.com/rovshanmuradov/memetrader/internal/swap"
	"github.com/rovshanmuradov/memetrader/internal/wallet"
)

const (
	nativeDecimals      = 9
	defaultComputeUnits = 200_000
)

var (
	_ blockchain.BalanceReader = (*Chain)(nil)
	_ blockchain.Transferer    = (*Chain)(nil)
	_ swap.Oracle              = (*Chain)(nil)
)

// ChainOptions tune transfers sent by Chain.
type ChainOptions struct {
	PriorityFeeSol float64
	ComputeUnits   uint32
}

// Chain implements balance reads, SPL transfers and an RPC-backed settlement
// oracle on top of Client.
type Chain struct {
	client *Client
	wallet *wallet.Wallet
	opts   ChainOptions
	logger *zap.Logger
}

func NewChain(client *Client, w *wallet.Wallet, opts ChainOptions, logger *zap.Logger) *Chain {
	return &Chain{client: client, wallet: w, opts: opts, logger: logger.Named("chain")}
}

func isNative(asset string) bool {
	return asset == "" || asset == solana.SolMint.String()
}

// GetBalance returns lamports for the native asset and the ATA balance for
// SPL tokens. A missing token account yields a zero balance.
func (c *Chain) GetBalance(ctx context.Context, walletAddr, asset string) (blockchain.Balance, error) {
	owner, err := solana.PublicKeyFromBase58(walletAddr)
	if err != nil {
		return blockchain.Balance{}, fmt.Errorf("invalid wallet address: %w", err)
	}

	if isNative(asset) {
		lamports, err := c.client.GetBalance(ctx, owner)
		if err != nil {
			return blockchain.Balance{}, fmt.Errorf("get native balance: %w", err)
		}
		return blockchain.Balance{Raw: lamports, Decimals: nativeDecimals}, nil
	}

	mint, err := solana.PublicKeyFromBase58(asset)
	if err != nil {
		return blockchain.Balance{}, fmt.Errorf("invalid mint: %w", err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return blockchain.Balance{}, fmt.Errorf("derive ata: %w", err)
	}

	amount, err := c.client.GetTokenAccountBalance(ctx, ata)
	if errors.Is(err, ErrAccountNotFound) {
		return blockchain.Balance{}, nil
	}
	if err != nil {
		return blockchain.Balance{}, fmt.Errorf("get token balance: %w", err)
	}
	raw, err := strconv.ParseUint(amount.Amount, 10, 64)
	if err != nil {
		return blockchain.Balance{}, fmt.Errorf("parse token amount %q: %w", amount.Amount, err)
	}
	return blockchain.Balance{Raw: raw, Decimals: amount.Decimals}, nil
}

// Transfer sends a TransferChecked from the service wallet's ATA, creating the
// recipient ATA when needed, and waits for confirmation.
func (c *Chain) Transfer(ctx context.Context, req blockchain.TransferRequest) (string, error) {
	if req.Amount == 0 {
		return "", errors.New("transfer amount is zero")
	}
	mint, err := solana.PublicKeyFromBase58(req.Asset)
	if err != nil {
		return "", fmt.Errorf("invalid mint: %w", err)
	}
	recipient, err := solana.PublicKeyFromBase58(req.Recipient)
	if err != nil {
		return "", fmt.Errorf("invalid recipient: %w", err)
	}

	owner := c.wallet.PublicKey
	srcATA, err := c.wallet.GetATA(mint)
	if err != nil {
		return "", fmt.Errorf("derive source ata: %w", err)
	}
	dstATA, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return "", fmt.Errorf("derive destination ata: %w", err)
	}

	instructions := c.preparePriorityInstructions()

	createIx, err := wallet.CreateAssociatedTokenAccountIdempotentInstruction(owner, recipient, mint)
	if err != nil {
		return "", err
	}
	transferIx, err := token.NewTransferCheckedInstruction(
		req.Amount, req.Decimals, srcATA, mint, dstATA, owner, []solana.PublicKey{},
	).ValidateAndBuild()
	if err != nil {
		return "", fmt.Errorf("build transfer instruction: %w", err)
	}
	instructions = append(instructions, createIx, transferIx)

	blockhash, err := c.client.GetRecentBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(owner))
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}
	if err := c.wallet.SignTransaction(tx); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	c.logger.Info("Transfer sent",
		zap.String("signature", sig.String()),
		zap.String("mint", req.Asset),
		zap.String("recipient", req.Recipient),
		zap.Uint64("amount", req.Amount))

	if err := c.client.WaitForTransactionConfirmation(ctx, sig); err != nil {
		return sig.String(), fmt.Errorf("confirm %s: %w", sig, err)
	}
	return sig.String(), nil
}

// TransferStatus reports whether a transfer sent by Transfer landed. A
// signature the node does not know yet stays pending.
func (c *Chain) TransferStatus(ctx context.Context, signature string) (blockchain.TransferState, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return blockchain.TransferFailed, fmt.Errorf("invalid signature %q: %w", signature, err)
	}
	status, err := c.client.GetSignatureStatus(ctx, sig)
	if err != nil {
		return blockchain.TransferPending, err
	}
	switch {
	case status == nil:
		return blockchain.TransferPending, nil
	case status.Err != nil:
		return blockchain.TransferFailed, nil
	case status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed,
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized:
		return blockchain.TransferConfirmed, nil
	}
	return blockchain.TransferPending, nil
}

// preparePriorityInstructions spreads PriorityFeeSol over the compute unit limit.
func (c *Chain) preparePriorityInstructions() []solana.Instruction {
	var instructions []solana.Instruction
	units := c.opts.ComputeUnits
	if units > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitLimitInstruction(units).Build())
	} else {
		units = defaultComputeUnits
	}
	if c.opts.PriorityFeeSol > 0 {
		lamports := c.opts.PriorityFeeSol * float64(solana.LAMPORTS_PER_SOL)
		microLamports := uint64(lamports * 1e6 / float64(units))
		if microLamports > 0 {
			instructions = append(instructions,
				computebudget.NewSetComputeUnitPriceInstruction(microLamports).Build())
		}
	}
	return instructions
}

// GetSettlementStatus resolves a signature through the RPC node. An unknown
// signature counts as failed once the finalized height passed expiryMarker;
// a handle that is not a signature at all is failed right away.
func (c *Chain) GetSettlementStatus(ctx context.Context, handle string, expiryMarker uint64) (swap.Status, error) {
	sig, err := solana.SignatureFromBase58(handle)
	if err != nil {
		// Can never land; settle it instead of polling forever.
		c.logger.Warn("Unparseable settlement handle", zap.String("handle", handle), zap.Error(err))
		return swap.StatusFailed, nil
	}

	status, err := c.client.GetSignatureStatus(ctx, sig)
	if err != nil {
		return swap.StatusUndone, err
	}
	if status != nil {
		if status.Err != nil {
			return swap.StatusFailed, nil
		}
		if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			return swap.StatusSuccess, nil
		}
		return swap.StatusUndone, nil
	}

	if expiryMarker == 0 {
		return swap.StatusUndone, nil
	}
	height, err := c.client.GetBlockHeight(ctx)
	if err != nil {
		return swap.StatusUndone, err
	}
	if height > expiryMarker {
		return swap.StatusFailed, nil
	}
	return swap.StatusUndone, nil
}
