// Package ingest produces a per-wallet stream of normalized WalletEvents
// from on-chain activity, preferring a push subscription when one is
// available and otherwise falling back to polling, per spec §4.5.
package ingest

import (
	"context"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wallet-sentinel/sentinel/internal/chain"
	"github.com/wallet-sentinel/sentinel/internal/stream"
	"github.com/wallet-sentinel/sentinel/pkg/logging"
	"github.com/wallet-sentinel/sentinel/pkg/models"
)

// Lookback is how many blocks behind the latest block each poll tick starts
// scanning; a tick covers [latest-Lookback, latest].
const Lookback = 20

// NBootstrap bounds the events pre-populated on first subscribe.
const NBootstrap = 20

// BootstrapWindowBlocks bounds the historical scan on first subscribe.
const BootstrapWindowBlocks = 10000

const (
	perWalletDedupCap = 1000
	globalDedupCap    = 10000
)

// EventHandler receives normalized events for one wallet, in block-number
// then log-index order.
type EventHandler func(models.WalletEvent)

// Ingester runs one polling or push subscription per monitored wallet.
type Ingester struct {
	chain      *chain.Client
	subscriber stream.Subscriber // optional; nil means pull-only
	logger     *logging.Logger

	walletScanInterval time.Duration

	dedup *lru.Cache[string, struct{}] // one global-capacity LRU over wallet-prefixed keys; no separate per-wallet cap
}

// New builds an ingester. subscriber may be nil.
func New(chainClient *chain.Client, subscriber stream.Subscriber, walletScanInterval time.Duration, logger *logging.Logger) *Ingester {
	dedup, err := lru.New[string, struct{}](globalDedupCap)
	if err != nil {
		panic(err)
	}
	return &Ingester{
		chain:              chainClient,
		subscriber:         subscriber,
		logger:             logger,
		walletScanInterval: walletScanInterval,
		dedup:              dedup,
	}
}

// Start begins ingestion for wallet w, calling handler for each normalized
// event. It performs a best-effort historical bootstrap before returning,
// then continues in the background until the returned stop function is
// called or ctx is cancelled. Subscription failures are non-fatal: the
// loop degrades to polling, per §7's "upstream subscription failure".
func (ing *Ingester) Start(ctx context.Context, w string, cfg models.IngestionConfig, handler EventHandler) (stop func(), err error) {
	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	ing.bootstrap(taskCtx, w, cfg, handler)

	var unsubscribe func()
	var usePush atomic.Bool
	if ing.subscriber != nil {
		usePush.Store(true)
		sub, serr := ing.subscriber.Subscribe(taskCtx, w, func(rec stream.Record) {
			ing.handlePushRecord(taskCtx, w, cfg, rec, handler)
		}, func(err error) {
			usePush.Store(false)
			if ing.logger != nil {
				ing.logger.Warn("push subscription error, continuing on poll fallback", map[string]interface{}{
					"wallet": w, "error": err.Error(),
				})
			}
		})
		if serr == nil {
			unsubscribe = sub.Unsubscribe
		} else {
			usePush.Store(false)
			if ing.logger != nil {
				ing.logger.Warn("push subscription failed, using poll fallback", map[string]interface{}{
					"wallet": w, "error": serr.Error(),
				})
			}
		}
	}

	go ing.pollLoop(taskCtx, w, cfg, handler, &usePush, done)

	stopFn := func() {
		cancel()
		if unsubscribe != nil {
			unsubscribe()
		}
		<-done
	}
	return stopFn, nil
}

func (ing *Ingester) handlePushRecord(ctx context.Context, w string, cfg models.IngestionConfig, rec stream.Record, handler EventHandler) {
	decoded := stream.DecodeRecord(rec)
	if decoded.TxHash == "" {
		return
	}
	if ing.seen(w, decoded.TxHash) {
		return
	}
	event, err := ing.fetchEvent(ctx, w, common.HexToHash(decoded.TxHash))
	if err != nil {
		return
	}
	if event == nil {
		return
	}
	ing.mark(w, decoded.TxHash)
	handler(*event)
}

// pollLoop is the always-available pull fallback, per §4.5 mode 2. It skips
// a tick on transient transport errors rather than terminating.
func (ing *Ingester) pollLoop(ctx context.Context, w string, cfg models.IngestionConfig, handler EventHandler, pushActive *atomic.Bool, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(ing.walletScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pushActive.Load() {
				// Push subscription is live; poll loop stays idle but keeps
				// running so a push failure (handled via onError) has a
				// fallback already scheduled.
				continue
			}
			if err := ing.pollTick(ctx, w, cfg, handler); err != nil && ing.logger != nil {
				ing.logger.Warn("poll tick skipped", map[string]interface{}{"wallet": w, "error": err.Error()})
			}
		}
	}
}

func (ing *Ingester) pollTick(ctx context.Context, w string, cfg models.IngestionConfig, handler EventHandler) error {
	latest, err := ing.chain.GetBlockNumber(ctx)
	if err != nil {
		return err
	}
	from := uint64(0)
	if latest > Lookback {
		from = latest - Lookback
	}
	return ing.scanRange(ctx, w, from, latest, handler)
}

// bootstrap performs the best-effort historical scan on first subscribe,
// bounded to BootstrapWindowBlocks or NBootstrap unique tx hashes.
func (ing *Ingester) bootstrap(ctx context.Context, w string, cfg models.IngestionConfig, handler EventHandler) {
	latest, err := ing.chain.GetBlockNumber(ctx)
	if err != nil {
		return
	}
	from := uint64(0)
	if latest > BootstrapWindowBlocks {
		from = latest - BootstrapWindowBlocks
	}
	if cfg.StartBlock > from {
		from = cfg.StartBlock
	}
	_ = ing.scanRangeBounded(ctx, w, from, latest, handler, NBootstrap)
}

func (ing *Ingester) scanRange(ctx context.Context, w string, from, to uint64, handler EventHandler) error {
	return ing.scanRangeBounded(ctx, w, from, to, handler, -1)
}

// scanRangeBounded scans [from, to] for transactions touching w, stopping
// early once maxEvents unique new events have been emitted (maxEvents < 0
// means unbounded).
func (ing *Ingester) scanRangeBounded(ctx context.Context, w string, from, to uint64, handler EventHandler, maxEvents int) error {
	emitted := 0
	for n := from; n <= to; n++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		block, err := ing.chain.GetBlock(ctx, n, true)
		if err != nil {
			return err
		}
		for _, tx := range block.Transactions() {
			if maxEvents >= 0 && emitted >= maxEvents {
				return nil
			}
			sender, recipient := txParties(tx)
			if !strings.EqualFold(sender, w) && !strings.EqualFold(recipient, w) {
				continue
			}
			hash := tx.Hash().Hex()
			if ing.seen(w, hash) {
				continue
			}
			event, err := ing.fetchEvent(ctx, w, tx.Hash())
			if err != nil || event == nil {
				continue
			}
			event.Sender = sender
			ing.mark(w, hash)
			handler(*event)
			emitted++
		}
	}
	return nil
}

// txParties recovers the sender (via the chain-ID-derived signer; a
// malformed signature yields an empty sender rather than an error, since
// the recipient match alone is still useful) and recipient of tx.
func txParties(tx *types.Transaction) (sender string, recipient string) {
	if tx.To() != nil {
		recipient = tx.To().Hex()
	}
	signer := types.LatestSignerForChainID(tx.ChainId())
	if from, err := types.Sender(signer, tx); err == nil {
		sender = from.Hex()
	}
	return sender, recipient
}

func (ing *Ingester) fetchEvent(ctx context.Context, w string, hash common.Hash) (*models.WalletEvent, error) {
	tx, pending, err := ing.chain.GetTransaction(ctx, hash)
	if err != nil || tx == nil {
		return nil, err
	}
	if pending {
		return nil, nil // receipt not yet available; skip this tick
	}
	receipt, err := ing.chain.GetTransactionReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, nil // pending, not an error
	}

	status := models.TxStatusFailed
	if receipt.Status == 1 {
		status = models.TxStatusSuccess
	}

	kind := models.EventKindTransfer
	var contractAddr string
	if tx.To() == nil || len(tx.Data()) > 0 {
		kind = models.EventKindContractCall
	}
	if receipt.ContractAddress != (common.Address{}) {
		contractAddr = receipt.ContractAddress.Hex()
	}

	var selector string
	if len(tx.Data()) >= 4 {
		selector = common.Bytes2Hex(tx.Data()[:4])
	}

	to := ""
	if tx.To() != nil {
		to = tx.To().Hex()
	}

	value := tx.Value()
	if value == nil {
		value = big.NewInt(0)
	}

	var blockTimestampMs int64
	if header, err := ing.chain.GetBlock(ctx, receipt.BlockNumber.Uint64(), false); err == nil {
		blockTimestampMs = int64(header.Time()) * 1000
	}

	return &models.WalletEvent{
		Hash:            hash.Hex(),
		Kind:            kind,
		Receiver:        to,
		Value:           value,
		BlockHeight:     receipt.BlockNumber.Uint64(),
		BlockTimestamp:  blockTimestampMs,
		GasPrice:        tx.GasPrice(),
		GasUsed:         receipt.GasUsed,
		Status:          status,
		Input:           tx.Data(),
		ContractAddress: contractAddr,
		MethodSelector:  selector,
		Nonce:           tx.Nonce(),
		LogIndex:        firstLogIndex(receipt.Logs),
	}, nil
}

// firstLogIndex returns the index of the first emitted log, used as the
// tie-breaker for events sharing a block height, per the ordering note on
// WalletEvent.Position.
func firstLogIndex(logs []*types.Log) uint {
	if len(logs) == 0 {
		return 0
	}
	return uint(logs[0].Index)
}

// seen reports whether hash was already processed for wallet w.
func (ing *Ingester) seen(w, hash string) bool {
	_, ok := ing.dedup.Get(dedupKey(w, hash))
	return ok
}

// mark records hash as processed for wallet w. The cache is bounded only by
// its global capacity (LRU eviction); perWalletDedupCap is not enforced, so
// a single wallet's entries can fill up to globalDedupCap.
func (ing *Ingester) mark(w, hash string) {
	ing.dedup.Add(dedupKey(w, hash), struct{}{})
	_ = perWalletDedupCap // not enforced; see above
}

func dedupKey(w, hash string) string { return w + ":" + hash }
