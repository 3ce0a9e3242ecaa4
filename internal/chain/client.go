// Package chain is a thin, retrying wrapper over a JSON-RPC Ethereum-style
// endpoint, grounded on go-ethereum's ethclient/rpc stack the way
// ChoSanghyuk-blackholedex's contract client uses it.
package chain

import (
	"context"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/wallet-sentinel/sentinel/internal/apperr"
	"github.com/wallet-sentinel/sentinel/pkg/logging"
)

// RetryConfig controls the exponential backoff applied to every call.
type RetryConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig mirrors the spec's max_attempts = 3 default.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 8 * time.Second}
}

// Client wraps ethclient.Client with retry/backoff and the read-only
// surface spec §4.4 and §6 require.
type Client struct {
	eth    *ethclient.Client
	retry  RetryConfig
	logger *logging.Logger
}

// Dial connects to rpcURL and validates it reports chainID, per the
// SOMNIA_CHAIN_ID env var's documented effect.
func Dial(ctx context.Context, rpcURL string, chainID int64, retry RetryConfig, logger *logging.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeChainIO, "dialing chain endpoint", err)
	}

	got, err := eth.ChainID(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeChainIO, "fetching chain id", err)
	}
	if got.Int64() != chainID {
		return nil, apperr.New(apperr.CodeValidation, "configured chain id does not match endpoint")
	}

	return &Client{eth: eth, retry: retry, logger: logger}, nil
}

func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return apperr.Wrap(apperr.CodeChainIO, op, lastErr)
		}
		delay := time.Duration(math.Min(
			float64(c.retry.MaxDelay),
			float64(c.retry.BaseDelay)*math.Pow(2, float64(attempt-1)),
		))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if c.logger != nil {
		c.logger.Warn("chain call exhausted retry budget", map[string]interface{}{"op": op, "error": lastErr.Error()})
	}
	return apperr.Wrap(apperr.CodeChainIO, op, lastErr).WithRecoverable(false)
}

// isTransient treats every non-nil error as retryable; no error is
// classified as a permanent rejection.
func isTransient(err error) bool {
	return err != nil
}

// GetBlockNumber returns the latest block height.
func (c *Client) GetBlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	err := c.withRetry(ctx, "get_block_number", func(ctx context.Context) error {
		n, err := c.eth.BlockNumber(ctx)
		if err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

// GetBlock fetches a block by number. full requests full transaction bodies.
func (c *Client) GetBlock(ctx context.Context, number uint64, full bool) (*types.Block, error) {
	var out *types.Block
	err := c.withRetry(ctx, "get_block", func(ctx context.Context) error {
		var b *types.Block
		var err error
		if full {
			b, err = c.eth.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		} else {
			var header *types.Header
			header, err = c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
			if err == nil {
				b = types.NewBlockWithHeader(header)
			}
		}
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// GetTransaction fetches a transaction by hash.
func (c *Client) GetTransaction(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	var tx *types.Transaction
	var pending bool
	err := c.withRetry(ctx, "get_transaction", func(ctx context.Context) error {
		t, p, err := c.eth.TransactionByHash(ctx, hash)
		if err != nil {
			return err
		}
		tx, pending = t, p
		return nil
	})
	return tx, pending, err
}

// GetTransactionReceipt fetches a receipt. A nil receipt with nil error
// means "pending" — not an error, per §4.4.
func (c *Client) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var out *types.Receipt
	err := c.withRetry(ctx, "get_transaction_receipt", func(ctx context.Context) error {
		r, err := c.eth.TransactionReceipt(ctx, hash)
		if err == ethereum.NotFound {
			out = nil
			return nil
		}
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// GetLogs fetches logs matching the given filter.
func (c *Client) GetLogs(ctx context.Context, address common.Address, fromBlock, toBlock uint64) ([]types.Log, error) {
	var out []types.Log
	err := c.withRetry(ctx, "get_logs", func(ctx context.Context) error {
		logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: []common.Address{address},
		})
		if err != nil {
			return err
		}
		out = logs
		return nil
	})
	return out, err
}

// GetBalance fetches the native balance at the latest block.
func (c *Client) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	var out *big.Int
	err := c.withRetry(ctx, "get_balance", func(ctx context.Context) error {
		b, err := c.eth.BalanceAt(ctx, address, nil)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// GetTransactionCount fetches the account nonce at the latest block.
func (c *Client) GetTransactionCount(ctx context.Context, address common.Address) (uint64, error) {
	var out uint64
	err := c.withRetry(ctx, "get_transaction_count", func(ctx context.Context) error {
		n, err := c.eth.NonceAt(ctx, address, nil)
		if err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

// GetCode fetches the contract bytecode at address, empty for EOAs.
func (c *Client) GetCode(ctx context.Context, address common.Address) ([]byte, error) {
	var out []byte
	err := c.withRetry(ctx, "get_code", func(ctx context.Context) error {
		code, err := c.eth.CodeAt(ctx, address, nil)
		if err != nil {
			return err
		}
		out = code
		return nil
	})
	return out, err
}

// EstimateGas estimates the gas required for a call.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var out uint64
	err := c.withRetry(ctx, "estimate_gas", func(ctx context.Context) error {
		g, err := c.eth.EstimateGas(ctx, msg)
		if err != nil {
			return err
		}
		out = g
		return nil
	})
	return out, err
}

// FeeData is the fee suggestion returned by GetFeeData: EIP-1559 fields when
// the chain supports them, legacy gas price otherwise.
type FeeData struct {
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	SupportsEIP1559      bool
}

// GetFeeData prefers EIP-1559 fields, falling back to legacy gas price.
func (c *Client) GetFeeData(ctx context.Context) (FeeData, error) {
	var out FeeData
	err := c.withRetry(ctx, "get_fee_data", func(ctx context.Context) error {
		tip, err := c.eth.SuggestGasTipCap(ctx)
		if err == nil {
			head, herr := c.eth.HeaderByNumber(ctx, nil)
			if herr == nil && head.BaseFee != nil {
				maxFee := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
				out = FeeData{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip, SupportsEIP1559: true}
				return nil
			}
		}
		price, err := c.eth.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		out = FeeData{GasPrice: price}
		return nil
	})
	return out, err
}

// SendRawTransaction submits a signed transaction.
func (c *Client) SendRawTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.withRetry(ctx, "send_raw_transaction", func(ctx context.Context) error {
		return c.eth.SendTransaction(ctx, tx)
	})
}

// WaitForTx polls for a transaction receipt until confirmations blocks have
// passed on top of it, or timeout elapses.
func (c *Client) WaitForTx(ctx context.Context, hash common.Hash, confirmations uint64, timeout time.Duration) (*types.Receipt, error) {
	deadline := time.Now().Add(timeout)
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		receipt, err := c.GetTransactionReceipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			latest, err := c.GetBlockNumber(ctx)
			if err != nil {
				return nil, err
			}
			if latest >= receipt.BlockNumber.Uint64()+confirmations {
				return receipt, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, apperr.New(apperr.CodeChainIO, "timed out waiting for transaction confirmations")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// Underlying exposes the raw ethclient for components (e.g. the Flag
// Registry Client) that need bind.ContractBackend.
func (c *Client) Underlying() *ethclient.Client { return c.eth }

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.eth.Close() }
