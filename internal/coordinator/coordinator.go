// Package coordinator is the operational core of the wallet-monitoring
// pipeline: it owns wallet lifecycle and wires the ingester, feature
// extractor, scoring engine, broadcast hub, and flag registry together,
// per spec §4.8. Grounded on the ticker-driven background-task shape of
// the teacher's internal/reactivation/reactivation.go, generalized from a
// single periodic scan to a per-wallet ingestion pool plus one shared
// batch processor.
package coordinator

import (
	"context"
	"math/big"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/wallet-sentinel/sentinel/internal/apperr"
	"github.com/wallet-sentinel/sentinel/internal/broadcast"
	"github.com/wallet-sentinel/sentinel/internal/chain"
	"github.com/wallet-sentinel/sentinel/internal/codec"
	"github.com/wallet-sentinel/sentinel/internal/feature"
	"github.com/wallet-sentinel/sentinel/internal/flagregistry"
	"github.com/wallet-sentinel/sentinel/internal/ingest"
	"github.com/wallet-sentinel/sentinel/internal/scoring"
	"github.com/wallet-sentinel/sentinel/internal/stream"
	"github.com/wallet-sentinel/sentinel/pkg/logging"
	"github.com/wallet-sentinel/sentinel/pkg/models"
)

// BatchInterval is the periodic re-score tick.
const BatchInterval = 2 * time.Second

// MaxBufferedEvents caps the per-wallet buffer; the oldest event is
// dropped once exceeded.
const MaxBufferedEvents = 1000

// SubBatchSize and SubBatchDelay govern batch_start's rate-limited rollout.
const (
	SubBatchSize  = 10
	SubBatchDelay = 1 * time.Second
)

// criticalFlagScoreThreshold and the CRITICAL risk level gate the on-chain
// flagging rule (§4.8.a): trigger when score < 40 AND risk is CRITICAL.
const criticalFlagScoreThreshold = 40.0

// significantScoreDelta is the minimum |Δscore| that counts as a
// significant change worth broadcasting outside the immediate path.
const significantScoreDelta = 5.0

// StartResult is start_monitor's return shape.
type StartResult struct {
	OK            bool
	Message       string
	InitialScore  *models.ScoringResult
}

type walletState struct {
	monitor       *models.WalletMonitor
	buffer        []models.WalletEvent
	dirty         bool
	stopIngestion func()
	flagInFlight  bool
}

// Coordinator is the wallet-lifecycle owner. Construct once at startup and
// share by reference; there is no global mutable state.
type Coordinator struct {
	mu      sync.RWMutex
	wallets map[string]*walletState

	chain     *chain.Client
	feature   *feature.Extractor
	scoring   *scoring.Engine
	ingester  *ingest.Ingester
	hub       *broadcast.Hub
	registry  *flagregistry.Client // optional: nil means flagging is disabled
	publisher stream.Publisher     // optional
	logger    *logging.Logger
}

// New builds a Coordinator. registry and publisher may be nil.
func New(chainClient *chain.Client, extractor *feature.Extractor, scoringEngine *scoring.Engine, ingester *ingest.Ingester, hub *broadcast.Hub, registry *flagregistry.Client, publisher stream.Publisher, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		wallets:   make(map[string]*walletState),
		chain:     chainClient,
		feature:   extractor,
		scoring:   scoringEngine,
		ingester:  ingester,
		hub:       hub,
		registry:  registry,
		publisher: publisher,
		logger:    logger,
	}
}

// StartMonitor begins monitoring wallet w. Idempotent: if already
// monitored, returns the existing score rather than restarting ingestion.
func (c *Coordinator) StartMonitor(ctx context.Context, w string, cfg models.IngestionConfig) (StartResult, error) {
	canonical, _, err := codec.Normalize(w)
	if err != nil {
		return StartResult{}, err
	}

	c.mu.Lock()
	if existing, ok := c.wallets[canonical]; ok {
		c.mu.Unlock()
		return StartResult{OK: true, Message: "already monitored", InitialScore: existing.monitor.LastScore}, nil
	}
	state := &walletState{
		monitor: &models.WalletMonitor{
			Address:         canonical,
			StartedAt:       time.Now(),
			LastActivity:    time.Now(),
			Active:          true,
			IngestionConfig: cfg,
		},
	}
	c.wallets[canonical] = state
	c.mu.Unlock()

	stop, err := c.ingester.Start(ctx, canonical, cfg, func(event models.WalletEvent) {
		c.onEvent(ctx, canonical, event)
	})
	if err != nil && c.logger != nil {
		c.logger.Warn("subscription failed, monitor remains active on fallback ingestion", map[string]interface{}{
			"wallet": canonical, "error": err.Error(),
		})
	}

	c.mu.Lock()
	state.stopIngestion = stop
	c.mu.Unlock()

	initial := c.scoreWallet(ctx, canonical)

	c.mu.Lock()
	state.monitor.LastScore = &initial
	c.mu.Unlock()

	c.hub.BroadcastScoreUpdate(canonical, initial, nil)

	return StartResult{OK: true, Message: "monitoring started", InitialScore: &initial}, nil
}

// StopMonitor terminates ingestion for w and drops its state.
func (c *Coordinator) StopMonitor(w string) (bool, string) {
	canonical, _, err := codec.Normalize(w)
	if err != nil {
		return false, err.Error()
	}

	c.mu.Lock()
	state, ok := c.wallets[canonical]
	if ok {
		delete(c.wallets, canonical)
	}
	c.mu.Unlock()

	if !ok {
		return false, "not monitored"
	}
	if state.stopIngestion != nil {
		state.stopIngestion()
	}
	return true, "monitor stopped"
}

// ForceRescore recomputes a wallet's score immediately, bypassing the
// batch cadence.
func (c *Coordinator) ForceRescore(ctx context.Context, w string) (models.ScoringResult, error) {
	canonical, _, err := codec.Normalize(w)
	if err != nil {
		return models.ScoringResult{}, err
	}
	c.mu.RLock()
	_, ok := c.wallets[canonical]
	c.mu.RUnlock()
	if !ok {
		return models.ScoringResult{}, apperr.New(apperr.CodeNotFound, "wallet not monitored")
	}
	result := c.scoreWallet(ctx, canonical)
	c.mu.Lock()
	c.wallets[canonical].monitor.LastScore = &result
	c.mu.Unlock()
	return result, nil
}

// BatchStart starts monitoring each wallet in sub-batches of SubBatchSize,
// pausing SubBatchDelay between batches.
func (c *Coordinator) BatchStart(ctx context.Context, wallets []string, cfg models.IngestionConfig) (successes, failures []string) {
	for i := 0; i < len(wallets); i += SubBatchSize {
		end := i + SubBatchSize
		if end > len(wallets) {
			end = len(wallets)
		}
		for _, w := range wallets[i:end] {
			if _, err := c.StartMonitor(ctx, w, cfg); err != nil {
				failures = append(failures, w)
			} else {
				successes = append(successes, w)
			}
		}
		if end < len(wallets) {
			select {
			case <-ctx.Done():
				return successes, failures
			case <-time.After(SubBatchDelay):
			}
		}
	}
	return successes, failures
}

// ActiveWallets lists every currently-monitored wallet's canonical address.
func (c *Coordinator) ActiveWallets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.wallets))
	for w := range c.wallets {
		out = append(out, w)
	}
	return out
}

// Status returns the monitor for w, or nil if unmonitored.
func (c *Coordinator) Status(w string) *models.WalletMonitor {
	canonical, _, err := codec.Normalize(w)
	if err != nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.wallets[canonical]
	if !ok {
		return nil
	}
	return state.monitor
}

// onEvent is the Ingester's callback for one wallet, one event at a time.
func (c *Coordinator) onEvent(ctx context.Context, wallet string, event models.WalletEvent) {
	c.mu.Lock()
	state, ok := c.wallets[wallet]
	if !ok || !state.monitor.Active {
		c.mu.Unlock()
		return // monitor absent or inactive: drop the event
	}
	state.monitor.LastActivity = time.Now()
	state.monitor.EventCount++

	state.buffer = append(state.buffer, event)
	if len(state.buffer) > MaxBufferedEvents {
		state.buffer = state.buffer[len(state.buffer)-MaxBufferedEvents:]
	}
	state.dirty = true
	prevScore := state.monitor.LastScore
	c.mu.Unlock()

	c.feature.Record(wallet, event)

	// Immediate path: score on the buffer tail (the just-recorded history)
	// and broadcast both a score update and a transaction alert.
	result := c.scoreWallet(ctx, wallet)

	c.mu.Lock()
	state.monitor.LastScore = &result
	c.mu.Unlock()

	var scoreDelta float64
	if prevScore != nil {
		scoreDelta = result.ReputationScore - prevScore.ReputationScore
	}
	c.hub.BroadcastScoreUpdate(wallet, result, prevScore)
	c.hub.BroadcastTxAlert(wallet, event, result.RiskLevel, scoreDelta)
}

// scoreWallet extracts features from the wallet's recorded history and
// scores it, optionally enriching with a live balance query.
func (c *Coordinator) scoreWallet(ctx context.Context, wallet string) models.ScoringResult {
	history := c.feature.History(wallet)

	var balance float64
	if c.chain != nil {
		if b, err := c.chain.GetBalance(ctx, ethcommon.HexToAddress(wallet)); err == nil {
			balance = weiToEther(b)
		}
	}

	fv := feature.Extract(wallet, history, balance, time.Now().UnixMilli())
	return c.scoring.Score(wallet, fv, len(history))
}

func weiToEther(wei *big.Int) float64 {
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(1e18))
	out, _ := f.Float64()
	return out
}

// RunBatchProcessor is the periodic re-scoring and flagging loop (§4.8's
// BATCH_INTERVAL = 2s tick), run as one background task shared across all
// monitored wallets rather than one task per wallet.
func (c *Coordinator) RunBatchProcessor(ctx context.Context) {
	ticker := time.NewTicker(BatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runBatchTick(ctx)
		}
	}
}

func (c *Coordinator) runBatchTick(ctx context.Context) {
	c.mu.RLock()
	dirty := make([]string, 0)
	for w, state := range c.wallets {
		if state.dirty {
			dirty = append(dirty, w)
		}
	}
	c.mu.RUnlock()

	for _, wallet := range dirty {
		c.processBatchWallet(ctx, wallet)
	}
}

func (c *Coordinator) processBatchWallet(ctx context.Context, wallet string) {
	c.mu.Lock()
	state, ok := c.wallets[wallet]
	if !ok {
		c.mu.Unlock()
		return
	}
	prevScore := state.monitor.LastScore
	hadNewEvents := state.dirty
	c.mu.Unlock()

	result := c.scoreWallet(ctx, wallet)

	c.mu.Lock()
	state.monitor.LastScore = &result
	state.buffer = nil
	state.dirty = false
	c.mu.Unlock()

	significant := hadNewEvents
	if prevScore != nil {
		delta := result.ReputationScore - prevScore.ReputationScore
		if delta < 0 {
			delta = -delta
		}
		significant = significant || delta >= significantScoreDelta || result.RiskLevel != prevScore.RiskLevel
	}
	if significant {
		c.hub.BroadcastScoreUpdate(wallet, result, prevScore)
	}

	if c.publisher != nil {
		_ = c.publisher.Publish(ctx, map[string]interface{}{
			"wallet": wallet, "score": result.ReputationScore, "riskLevel": result.RiskLevel,
			"computedAt": result.ComputedAt,
		})
	}

	c.applyFlaggingRule(ctx, wallet, result)
}

// applyFlaggingRule implements §4.8.a. A flag in flight for a wallet is
// never duplicated within the same batch tick.
func (c *Coordinator) applyFlaggingRule(ctx context.Context, wallet string, result models.ScoringResult) {
	if c.registry == nil {
		return
	}
	if !(result.ReputationScore < criticalFlagScoreThreshold && result.RiskLevel == models.RiskCritical) {
		return
	}

	c.mu.Lock()
	state, ok := c.wallets[wallet]
	if !ok || state.flagInFlight {
		c.mu.Unlock()
		return
	}
	state.flagInFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if state, ok := c.wallets[wallet]; ok {
			state.flagInFlight = false
		}
		c.mu.Unlock()
	}()

	addr := ethcommon.HexToAddress(wallet)

	alreadyFlagged, err := c.registry.IsFlagged(ctx, addr)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("flag registry query failed, skipping this tick", map[string]interface{}{
				"wallet": wallet, "error": err.Error(),
			})
		}
		return
	}
	if alreadyFlagged {
		return
	}

	write := c.registry.Flag(ctx, addr, models.RiskCritical, result.ReputationScore, result.Explanation)
	if write.Err != nil {
		if c.logger != nil {
			c.logger.Warn("on-chain flag failed, will not retry this batch", map[string]interface{}{
				"wallet": wallet, "error": write.Err.Error(),
			})
		}
		return
	}

	c.hub.BroadcastFlagged(wallet, models.RiskCritical, result.ReputationScore, write.TxHash)
}
