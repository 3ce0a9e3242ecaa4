// Package flagregistry wraps the on-chain flag contract described in spec
// §6, binding it through go-ethereum's abi/bind layer the way
// ChoSanghyuk-blackholedex binds its DEX contracts.
package flagregistry

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/wallet-sentinel/sentinel/internal/apperr"
	"github.com/wallet-sentinel/sentinel/internal/chain"
	"github.com/wallet-sentinel/sentinel/pkg/logging"
	"github.com/wallet-sentinel/sentinel/pkg/models"
)

// FallbackGasLimit is the fixed gas limit of the second submission attempt,
// made when the first (gas-estimated) submission fails, per spec §4.6.
const FallbackGasLimit = uint64(500000)

// Confirmations is the number of blocks a write waits for before it's
// considered final.
const Confirmations = uint64(2)

const alreadyFlaggedSubstr = "already flagged"

// WriteResult is the outcome of a flag/unflag/update_risk call.
type WriteResult struct {
	OK     bool
	TxHash string
	Err    error
}

// Client is the bound flag-contract client. A Client built without a
// private key has no signer: reads work and every write method returns
// apperr.CodeNotConfigured. Methods must not be called on a nil *Client.
type Client struct {
	chain    *chain.Client
	contract *bind.BoundContract
	address  common.Address
	chainID  *big.Int
	signer   *ecdsa.PrivateKey
	from     common.Address
	logger   *logging.Logger
}

// New binds the flag contract at contractAddr. privateKeyHex is required
// for write operations; an empty key yields a read-only client.
func New(chainClient *chain.Client, contractAddr common.Address, chainID int64, privateKeyHex string, logger *logging.Logger) (*Client, error) {
	parsed, err := parsedABI()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "parsing flag contract abi", err)
	}

	backend := chainClient.Underlying()
	bound := bind.NewBoundContract(contractAddr, parsed, backend, backend, backend)

	c := &Client{
		chain:    chainClient,
		contract: bound,
		address:  contractAddr,
		chainID:  big.NewInt(chainID),
		logger:   logger,
	}

	if privateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, "parsing flag signer private key", err)
		}
		c.signer = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// IsFlagged honors the contract's own expiration rule — it asks the
// contract directly rather than reading back a locally cached flag.
func (c *Client) IsFlagged(ctx context.Context, wallet common.Address) (bool, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isWalletFlagged", wallet); err != nil {
		return false, apperr.Wrap(apperr.CodeContract, "is_flagged", err)
	}
	return out[0].(bool), nil
}

// GetFlag returns nil (no error) if the wallet has no flag on record.
func (c *Client) GetFlag(ctx context.Context, wallet common.Address) (*models.WalletFlag, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getWalletFlag", wallet); err != nil {
		return nil, apperr.Wrap(apperr.CodeContract, "get_flag", err)
	}
	isFlagged := out[0].(bool)
	if !isFlagged {
		return nil, nil
	}
	level := out[1].(uint8)
	score := out[2].(*big.Int)
	flaggedAt := out[3].(*big.Int)
	expiresAt := out[4].(*big.Int)
	flagger := out[5].(common.Address)
	reason := out[6].(string)

	return &models.WalletFlag{
		Wallet:          wallet.Hex(),
		IsFlagged:       true,
		RiskLevel:       models.RiskLevelFromOnChain(level),
		ReputationScore: bigToFloat(score),
		FlaggedAt:       time.Unix(flaggedAt.Int64(), 0).UTC(),
		ExpiresAt:       time.Unix(expiresAt.Int64(), 0).UTC(),
		Flagger:         flagger.Hex(),
		Reason:          reason,
	}, nil
}

// ListFlagged returns every address the contract's getAllFlaggedWallets
// lists, as hex strings. Expiry is not checked here and the result carries
// no expiry data; GetFlag returns a flag's ExpiresAt.
func (c *Client) ListFlagged(ctx context.Context) ([]string, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAllFlaggedWallets"); err != nil {
		return nil, apperr.Wrap(apperr.CodeContract, "list_flagged", err)
	}
	addrs := out[0].([]common.Address)
	result := make([]string, len(addrs))
	for i, a := range addrs {
		result[i] = a.Hex()
	}
	return result, nil
}

// ActiveCount returns the contract's own count of currently-active flags.
func (c *Client) ActiveCount(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getActiveFlaggedCount"); err != nil {
		return 0, apperr.Wrap(apperr.CodeContract, "active_count", err)
	}
	return out[0].(*big.Int).Uint64(), nil
}

// Flag submits flagWallet, waiting for Confirmations blocks. "Already
// flagged" contract rejections are treated as success, per spec §4.6.
func (c *Client) Flag(ctx context.Context, wallet common.Address, level models.RiskLevel, score float64, reason string) WriteResult {
	return c.write(ctx, "flagWallet", wallet, new(big.Int).SetUint64(uint64(score)), reason)
}

// Unflag submits unflagWallet.
func (c *Client) Unflag(ctx context.Context, wallet common.Address) WriteResult {
	return c.write(ctx, "unflagWallet", wallet)
}

// UpdateRisk submits updateRiskLevel.
func (c *Client) UpdateRisk(ctx context.Context, wallet common.Address, level models.RiskLevel) WriteResult {
	return c.write(ctx, "updateRiskLevel", wallet, level.OnChainValue())
}

func (c *Client) write(ctx context.Context, method string, args ...interface{}) WriteResult {
	if c.signer == nil {
		return WriteResult{Err: apperr.New(apperr.CodeNotConfigured, "flag registry has no configured signer")}
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.signer, c.chainID)
	if err != nil {
		return WriteResult{Err: apperr.Wrap(apperr.CodeInternal, "building transactor", err)}
	}
	opts.Context = ctx

	if fee, err := c.chain.GetFeeData(ctx); err == nil {
		if fee.SupportsEIP1559 {
			opts.GasFeeCap = fee.MaxFeePerGas
			opts.GasTipCap = fee.MaxPriorityFeePerGas
		} else if fee.GasPrice != nil {
			opts.GasPrice = fee.GasPrice
		}
	}

	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), alreadyFlaggedSubstr) {
			return WriteResult{OK: true}
		}
		if opts.GasLimit == 0 {
			opts.GasLimit = FallbackGasLimit
			tx, err = c.contract.Transact(opts, method, args...)
		}
		if err != nil {
			return WriteResult{Err: apperr.Wrap(apperr.CodeContract, method, err)}
		}
	}

	receipt, err := c.chain.WaitForTx(ctx, tx.Hash(), Confirmations, 2*time.Minute)
	if err != nil {
		return WriteResult{Err: apperr.Wrap(apperr.CodeContract, method+": waiting for confirmations", err)}
	}
	if receipt.Status != 1 {
		return WriteResult{Err: apperr.New(apperr.CodeContract, method+": transaction reverted")}
	}

	return WriteResult{OK: true, TxHash: tx.Hash().Hex()}
}

func bigToFloat(v *big.Int) float64 {
	f := new(big.Float).SetInt(v)
	out, _ := f.Float64()
	return out
}
