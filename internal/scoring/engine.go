// Package scoring turns a FeatureVector into a ScoringResult: model
// inference when a classifier is loaded, a deterministic rule-based
// fallback otherwise, a blacklist penalty, and risk-level classification.
package scoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/wallet-sentinel/sentinel/pkg/logging"
	"github.com/wallet-sentinel/sentinel/pkg/models"
)

// Engine is the scoring pipeline described in spec §4.3. It is safe for
// concurrent use: model/blacklist are read-mostly behind a RWMutex so a
// config reload never races a live score computation.
type Engine struct {
	mu        sync.RWMutex
	model     *Model
	blacklist map[string]struct{}
	logger    *logging.Logger
}

// New builds a scoring engine. model may be nil — the engine then always
// uses the rule-based fallback.
func New(model *Model, blacklist []string, logger *logging.Logger) *Engine {
	set := make(map[string]struct{}, len(blacklist))
	for _, addr := range blacklist {
		set[addr] = struct{}{}
	}
	return &Engine{model: model, blacklist: set, logger: logger}
}

// SetModel hot-swaps the loaded model (nil disables it, falling back to
// rules for every subsequent call).
func (e *Engine) SetModel(m *Model) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.model = m
}

// SetBlacklist replaces the blacklist set wholesale.
func (e *Engine) SetBlacklist(addresses []string) {
	set := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		set[a] = struct{}{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blacklist = set
}

// IsBlacklisted reports whether wallet is in the static blacklist set.
func (e *Engine) IsBlacklisted(wallet string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.blacklist[wallet]
	return ok
}

// Score runs the full pipeline in spec §4.3 for wallet w given its feature
// vector and consumed event count.
func (e *Engine) Score(w string, fv models.FeatureVector, eventsConsumed int) models.ScoringResult {
	e.mu.RLock()
	model := e.model
	_, blacklisted := e.blacklist[w]
	e.mu.RUnlock()

	var (
		rawScore   float64
		confidence float64
		usedModel  bool
	)

	if model != nil {
		p, err := model.PositiveProbability(fv.AsMap())
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("model inference failed, falling back to rule-based scoring", map[string]interface{}{
					"wallet": w, "error": err.Error(),
				})
			}
		} else {
			rawScore = 100 * p
			confidence = p
			usedModel = true
		}
	}

	if !usedModel {
		rawScore, confidence = ruleBasedScore(fv)
	}

	// §4.3 step 4: the blacklist penalty is applied exactly once here,
	// after either scoring path has produced a raw score, so model and
	// fallback paths see the identical -30 for the same condition.
	preClampAfterPenalty := rawScore
	if blacklisted {
		preClampAfterPenalty = rawScore - 30
	}
	score := clampScore(preClampAfterPenalty)

	risk := RiskLevelFor(score)
	flags := buildFlags(fv, blacklisted, risk)

	return models.ScoringResult{
		Wallet:          w,
		ReputationScore: score,
		RiskLevel:       risk,
		Confidence:      confidence,
		Features:        fv,
		ComputedAt:      time.Now().Unix(),
		EventsConsumed:  eventsConsumed,
		Flags:           flags,
		Explanation:     explain(score, risk, flags, usedModel),
	}
}

// RiskLevelFor derives the risk level from a reputation score, per §4.3
// step 6: LOW ≥70, MEDIUM ≥50, HIGH ≥30, else CRITICAL.
func RiskLevelFor(score float64) models.RiskLevel {
	switch {
	case score >= 70:
		return models.RiskLow
	case score >= 50:
		return models.RiskMedium
	case score >= 30:
		return models.RiskHigh
	default:
		return models.RiskCritical
	}
}

func buildFlags(fv models.FeatureVector, blacklisted bool, risk models.RiskLevel) []string {
	var flags []string
	if blacklisted {
		flags = append(flags, "blacklisted")
	}
	if fv.FailedTxCount > 10 {
		flags = append(flags, "high_failure_rate")
	}
	if fv.TxPerDay > 50 {
		flags = append(flags, "high_frequency")
	}
	if fv.UniqueCounterparties > 500 {
		flags = append(flags, "many_counterparties")
	}
	if fv.AccountAgeDays < 7 {
		flags = append(flags, "new_account")
	}
	if fv.ContractInteractions > 200 {
		flags = append(flags, "high_contract_activity")
	}
	switch risk {
	case models.RiskCritical:
		flags = append(flags, "critical_risk")
	case models.RiskHigh:
		flags = append(flags, "high_risk")
	}
	return flags
}

func explain(score float64, risk models.RiskLevel, flags []string, usedModel bool) string {
	source := "rule-based fallback"
	if usedModel {
		source = "model inference"
	}
	return fmt.Sprintf("score=%.2f risk=%s via %s, flags=%v", score, risk, source, flags)
}
