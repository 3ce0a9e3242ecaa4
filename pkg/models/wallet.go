package models

import (
	"math/big"
	"time"
)

// EventKind classifies a WalletEvent.
type EventKind string

const (
	EventKindTransfer      EventKind = "transfer"
	EventKindContractCall  EventKind = "contract_call"
	EventKindTokenTransfer EventKind = "token_transfer"
)

// TxStatus is the on-chain outcome of a transaction.
type TxStatus string

const (
	TxStatusSuccess TxStatus = "success"
	TxStatusFailed  TxStatus = "failed"
)

// RiskLevel is the coarse classification derived from a reputation score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// OnChainValue encodes RiskLevel the way the flag contract stores it:
// 0=LOW, 1=MEDIUM, 2=HIGH, 3=CRITICAL.
func (r RiskLevel) OnChainValue() uint8 {
	switch r {
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return 0
	}
}

// RiskLevelFromOnChain is the inverse of OnChainValue.
func RiskLevelFromOnChain(v uint8) RiskLevel {
	switch v {
	case 1:
		return RiskMedium
	case 2:
		return RiskHigh
	case 3:
		return RiskCritical
	default:
		return RiskLow
	}
}

// WalletEvent is one observed on-chain action involving a monitored wallet.
// hash uniquely identifies it within the monitored set; never mutated after
// creation.
type WalletEvent struct {
	Hash            string
	Kind            EventKind
	Sender          string
	Receiver        string
	Value           *big.Int
	BlockHeight     uint64
	BlockTimestamp  int64 // ms since epoch, UTC
	GasPrice        *big.Int
	GasUsed         uint64
	Status          TxStatus
	Input           []byte
	ContractAddress string
	TokenSymbol     string
	TokenValue      *big.Int
	MethodSelector  string
	Nonce           uint64
	LogIndex        uint
	// Position is set inconsistently across ingestion paths; treat it as
	// optional metadata, never a sort key.
	Position int
}

// IngestionConfig controls what an Event Ingester collects for a wallet.
type IngestionConfig struct {
	IncludeNativeTransfers bool
	IncludeTokenTransfers  bool
	IncludeInternal        bool
	StartBlock             uint64
}

// DefaultIngestionConfig mirrors the pull-fallback ingester's defaults.
func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		IncludeNativeTransfers: true,
		IncludeTokenTransfers:  true,
	}
}

// WalletMonitor is the process-local state attached to a subscribed wallet.
type WalletMonitor struct {
	Address         string
	StartedAt       time.Time
	LastActivity    time.Time
	EventCount      uint64
	LastScore       *ScoringResult
	Active          bool
	IngestionConfig IngestionConfig
}

// FeatureVector is the fixed-length, deterministic summary of a wallet's
// event history consumed by the Scoring Engine.
type FeatureVector struct {
	TransactionCount      float64
	TxPerDay              float64
	AvgValue              float64
	MinValue              float64
	MaxValue              float64
	AccountAgeDays        float64
	DaysSinceLastTx       float64
	ActiveDays            float64
	UniqueCounterparties  float64
	ContractInteractions  float64
	FailedTxCount         float64
	GasUsagePattern       float64
	TotalVolume           float64
	Balance               float64
	AvgGasPrice           float64
	ValueConcentration    float64 // [0,1]
	TimeDistribution      float64 // [0,1]
	ActivityConsistency   float64 // [0,1]
	ClusteringCoefficient float64 // optional graph feature, defaults to 0
	PageRank              float64 // optional graph feature, defaults to 0
}

// AsMap exposes the vector keyed by the names a trained model declares, for
// the feature-order lookup table in the scoring pipeline.
func (f FeatureVector) AsMap() map[string]float64 {
	return map[string]float64{
		"transaction_count":      f.TransactionCount,
		"tx_per_day":             f.TxPerDay,
		"avg_value":              f.AvgValue,
		"min_value":              f.MinValue,
		"max_value":              f.MaxValue,
		"account_age_days":       f.AccountAgeDays,
		"days_since_last_tx":     f.DaysSinceLastTx,
		"active_days":            f.ActiveDays,
		"unique_counterparties":  f.UniqueCounterparties,
		"contract_interactions":  f.ContractInteractions,
		"failed_tx_count":        f.FailedTxCount,
		"gas_usage_pattern":      f.GasUsagePattern,
		"total_volume":           f.TotalVolume,
		"balance":                f.Balance,
		"avg_gas_price":          f.AvgGasPrice,
		"value_concentration":    f.ValueConcentration,
		"time_distribution":      f.TimeDistribution,
		"activity_consistency":   f.ActivityConsistency,
		"clustering_coefficient": f.ClusteringCoefficient,
		"page_rank":              f.PageRank,
	}
}

// ScoringResult is the scored verdict for a wallet at a point in time.
type ScoringResult struct {
	Wallet          string
	ReputationScore float64 // [0,100]
	RiskLevel       RiskLevel
	Confidence      float64 // [0,1]
	Features        FeatureVector
	ComputedAt      int64 // seconds since epoch
	EventsConsumed  int
	Flags           []string
	Explanation     string
}

// WalletFlag is the on-chain record of a critical classification.
type WalletFlag struct {
	Wallet          string
	IsFlagged       bool
	RiskLevel       RiskLevel
	ReputationScore float64
	FlaggedAt       time.Time
	ExpiresAt       time.Time
	Flagger         string
	Reason          string
	TxHash          string
}

// Expired reports whether the flag has lapsed as of now.
func (f WalletFlag) Expired(now time.Time) bool {
	return !f.ExpiresAt.IsZero() && now.After(f.ExpiresAt)
}

// MaxSubsPerConnection bounds a single connection's subscription set.
const MaxSubsPerConnection = 50

// ClientConnection is the state kept for one live downstream client by the
// Broadcast Hub. LastActivity is tracked separately by the hub itself
// (as an atomic field) since it's written from the connection's receive
// goroutine and read from the idle-reaper goroutine concurrently.
type ClientConnection struct {
	ID                string
	SessionID         string
	SubscribedWallets map[string]struct{}
	ConnectedAt       time.Time
}
