// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// RPC is the subset of the solana-go rpc client used here.
type RPC interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
}

var _ RPC = (*rpc.Client)(nil)

// Client – тонкий адаптер над solana-go rpc: балансы, отправка и статусы транзакций.
type Client struct {
	rpc          RPC
	logger       *zap.Logger
	pollInterval time.Duration
	confirmWait  time.Duration
}

// Определение ошибок
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrTransactionFailed   = errors.New("transaction failed")

	errNotConfirmed = errors.New("not confirmed yet")
)

// IsAccountNotFoundError проверяет, является ли ошибка "not found"
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccountNotFound) || errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find account")
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return NewClientWithRPC(rpc.New(rpcURL), logger)
}

// NewClientWithRPC wraps an existing rpc implementation.
func NewClientWithRPC(r RPC, logger *zap.Logger) *Client {
	return &Client{
		rpc:          r,
		logger:       logger.Named("solbc-client"),
		pollInterval: 500 * time.Millisecond,
		confirmWait:  30 * time.Second,
	}
}

// GetRecentBlockhash получает последний blockhash.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		c.logger.Error("GetRecentBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// SendTransaction отправляет транзакцию.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		c.logger.Error("SendTransaction error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// GetSignatureStatus returns the status of one signature, nil when the node
// does not know it.
func (c *Client) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	result, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		c.logger.Debug("GetSignatureStatuses error", zap.Error(err))
		return nil, err
	}
	if result == nil || len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}

// GetBalance получает баланс аккаунта в лампортах.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Error("GetBalance error", zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// GetTokenAccountBalance получает баланс токенного аккаунта
func (c *Client) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*rpc.UiTokenAmount, error) {
	result, err := c.rpc.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		if IsAccountNotFoundError(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if result == nil || result.Value == nil {
		return nil, ErrAccountNotFound
	}
	return result.Value, nil
}

// GetBlockHeight returns the finalized block height.
func (c *Client) GetBlockHeight(ctx context.Context) (uint64, error) {
	return c.rpc.GetBlockHeight(ctx, rpc.CommitmentFinalized)
}

// WaitForTransactionConfirmation polls the signature until it is confirmed,
// fails on chain, or confirmWait elapses.
func (c *Client) WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature) error {
	op := func() (struct{}, error) {
		status, err := c.GetSignatureStatus(ctx, signature)
		if err != nil {
			c.logger.Warn("Error getting signature statuses", zap.Error(err))
			return struct{}{}, err
		}
		if status == nil {
			return struct{}{}, errNotConfirmed
		}
		if status.Err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %s: %v", ErrTransactionFailed, signature, status.Err))
		}
		if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized ||
			status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed {
			return struct{}{}, nil
		}
		return struct{}{}, errNotConfirmed
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.pollInterval)),
		backoff.WithMaxElapsedTime(c.confirmWait))
	if err != nil && ctx.Err() == nil && !errors.Is(err, ErrTransactionFailed) {
		return fmt.Errorf("%w: %s", ErrConfirmationTimeout, signature)
	}
	return err
}
