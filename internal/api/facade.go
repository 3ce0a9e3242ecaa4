// Package api is the thin public-facing layer: a Facade exposing the
// synchronous entry points of spec §4.9, and an HTTP server (server.go)
// that exposes them over REST plus a websocket upgrade route for the
// Broadcast Hub. Grounded on the teacher's internal/api/server.go
// (gorilla/mux + rs/cors + a small middleware chain), generalized from the
// teacher's single read-only active-wallets endpoint to the full surface
// spec §6 names.
package api

import (
	"context"

	"github.com/wallet-sentinel/sentinel/internal/apperr"
	"github.com/wallet-sentinel/sentinel/internal/codec"
	"github.com/wallet-sentinel/sentinel/internal/coordinator"
	"github.com/wallet-sentinel/sentinel/internal/flagregistry"
	"github.com/wallet-sentinel/sentinel/internal/storage/db"
	"github.com/wallet-sentinel/sentinel/pkg/models"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// MaxBatchSize bounds POST /wallets/batch-score, per spec §6.
const MaxBatchSize = 50

// Facade is the synchronous entry-point surface consumed by the HTTP
// server. All inputs pass through the codec and basic range validation
// before reaching the Coordinator, per spec §4.9.
type Facade struct {
	coordinator *coordinator.Coordinator
	registry    *flagregistry.Client // optional: nil ⇒ flag endpoints return not-configured
	store       *db.Database         // optional: nil ⇒ flag actions aren't audited to Postgres
}

// NewFacade builds a Facade. registry and store may both be nil.
func NewFacade(coord *coordinator.Coordinator, registry *flagregistry.Client) *Facade {
	return &Facade{coordinator: coord, registry: registry}
}

// WithStore attaches the optional Postgres audit store, returning the same
// Facade for chaining at startup wiring time.
func (f *Facade) WithStore(store *db.Database) *Facade {
	f.store = store
	return f
}

// SubscribeResult is subscribe's response shape.
type SubscribeResult struct {
	Wallet       string                `json:"wallet"`
	Subscribed   bool                  `json:"subscribed"`
	Message      string                `json:"message"`
	ExistingScore *models.ScoringResult `json:"existingScore,omitempty"`
}

// Subscribe delegates to start_monitor.
func (f *Facade) Subscribe(ctx context.Context, wallet string, includeTx bool) (SubscribeResult, error) {
	canonical, _, err := codec.Normalize(wallet)
	if err != nil {
		return SubscribeResult{}, err
	}
	cfg := models.DefaultIngestionConfig()
	cfg.IncludeTokenTransfers = includeTx

	result, err := f.coordinator.StartMonitor(ctx, canonical, cfg)
	if err != nil {
		return SubscribeResult{}, err
	}
	return SubscribeResult{Wallet: canonical, Subscribed: result.OK, Message: result.Message, ExistingScore: result.InitialScore}, nil
}

// UnsubscribeResult is unsubscribe's response shape.
type UnsubscribeResult struct {
	Wallet       string `json:"wallet"`
	Unsubscribed bool   `json:"unsubscribed"`
	Message      string `json:"message"`
}

// Unsubscribe delegates to stop_monitor.
func (f *Facade) Unsubscribe(wallet string) (UnsubscribeResult, error) {
	canonical, _, err := codec.Normalize(wallet)
	if err != nil {
		return UnsubscribeResult{}, err
	}
	ok, msg := f.coordinator.StopMonitor(canonical)
	return UnsubscribeResult{Wallet: canonical, Unsubscribed: ok, Message: msg}, nil
}

// GetScore returns the cached last_score unless refresh is requested, in
// which case it forces a rescore.
func (f *Facade) GetScore(ctx context.Context, wallet string, refresh bool) (models.ScoringResult, error) {
	canonical, _, err := codec.Normalize(wallet)
	if err != nil {
		return models.ScoringResult{}, err
	}

	if !refresh {
		if monitor := f.coordinator.Status(canonical); monitor != nil && monitor.LastScore != nil {
			return *monitor.LastScore, nil
		}
	}
	return f.coordinator.ForceRescore(ctx, canonical)
}

// BatchScoreResult is one entry in batch_score's response.
type BatchScoreResult struct {
	Wallet string                `json:"wallet"`
	Score  *models.ScoringResult `json:"score,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// BatchScore starts monitoring every wallet (if not already) then collects
// current scores, bounded to MaxBatchSize wallets per call.
func (f *Facade) BatchScore(ctx context.Context, wallets []string) ([]BatchScoreResult, error) {
	if len(wallets) > MaxBatchSize {
		return nil, apperr.Validation("batch exceeds maximum of 50 wallets")
	}

	f.coordinator.BatchStart(ctx, wallets, models.DefaultIngestionConfig())

	results := make([]BatchScoreResult, 0, len(wallets))
	for _, w := range wallets {
		canonical, _, err := codec.Normalize(w)
		if err != nil {
			results = append(results, BatchScoreResult{Wallet: w, Error: err.Error()})
			continue
		}
		monitor := f.coordinator.Status(canonical)
		if monitor == nil || monitor.LastScore == nil {
			results = append(results, BatchScoreResult{Wallet: canonical, Error: "score not yet available"})
			continue
		}
		results = append(results, BatchScoreResult{Wallet: canonical, Score: monitor.LastScore})
	}
	return results, nil
}

// Flag delegates to the Flag Registry's flag write.
func (f *Facade) Flag(ctx context.Context, wallet string, level models.RiskLevel, score float64, reason string) (flagregistry.WriteResult, error) {
	canonical, _, err := codec.Normalize(wallet)
	if err != nil {
		return flagregistry.WriteResult{}, err
	}
	switch level {
	case models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskCritical:
	default:
		return flagregistry.WriteResult{}, apperr.Validation("invalid risk level")
	}
	if score < 0 || score > 100 {
		return flagregistry.WriteResult{}, apperr.Validation("reputation score must be within [0,100]")
	}
	if f.registry == nil {
		return flagregistry.WriteResult{}, apperr.New(apperr.CodeNotConfigured, "flag registry not configured")
	}
	result := f.registry.Flag(ctx, ethcommon.HexToAddress(canonical), level, score, reason)
	if f.store != nil {
		_ = f.store.RecordFlagAction(ctx, db.FlagAuditEntry{
			Wallet: canonical, Action: "flag", RiskLevel: level,
			ReputationScore: score, Reason: reason, TxHash: result.TxHash,
		})
	}
	return result, nil
}

// FlagStatusResult is flag_status's response shape.
type FlagStatusResult struct {
	IsFlagged   bool               `json:"isFlagged"`
	FlagDetails *models.WalletFlag `json:"flagDetails,omitempty"`
}

// FlagStatus reports whether wallet is currently flagged on-chain.
func (f *Facade) FlagStatus(ctx context.Context, wallet string) (FlagStatusResult, error) {
	canonical, _, err := codec.Normalize(wallet)
	if err != nil {
		return FlagStatusResult{}, err
	}
	if f.registry == nil {
		return FlagStatusResult{}, apperr.New(apperr.CodeNotConfigured, "flag registry not configured")
	}
	flag, err := f.registry.GetFlag(ctx, ethcommon.HexToAddress(canonical))
	if err != nil {
		return FlagStatusResult{}, err
	}
	if flag == nil {
		return FlagStatusResult{IsFlagged: false}, nil
	}
	return FlagStatusResult{IsFlagged: flag.IsFlagged, FlagDetails: flag}, nil
}

// ActiveResult is active()'s response shape.
type ActiveResult struct {
	Wallets []string `json:"wallets"`
	Count   int      `json:"count"`
}

// Active lists every currently-monitored wallet.
func (f *Facade) Active() ActiveResult {
	wallets := f.coordinator.ActiveWallets()
	return ActiveResult{Wallets: wallets, Count: len(wallets)}
}
