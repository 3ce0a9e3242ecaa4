package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wallet-sentinel/sentinel/pkg/models"
)

func TestRiskLevelThresholds(t *testing.T) {
	assert.Equal(t, models.RiskLow, RiskLevelFor(70))
	assert.Equal(t, models.RiskMedium, RiskLevelFor(50))
	assert.Equal(t, models.RiskMedium, RiskLevelFor(69.9))
	assert.Equal(t, models.RiskHigh, RiskLevelFor(30))
	assert.Equal(t, models.RiskHigh, RiskLevelFor(49.9))
	assert.Equal(t, models.RiskCritical, RiskLevelFor(29.9))
}

func TestScoreEmptyEventsNeverCrashes(t *testing.T) {
	e := New(nil, nil, nil)
	result := e.Score("0xabc", models.FeatureVector{}, 0)
	assert.GreaterOrEqual(t, result.ReputationScore, 0.0)
	assert.LessOrEqual(t, result.ReputationScore, 100.0)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
}

func TestBlacklistedWalletFlaggedAndPenalized(t *testing.T) {
	wallet := "0xbad0000000000000000000000000000000000001"
	e := New(nil, []string{wallet}, nil)

	fv := models.FeatureVector{}
	unpenalized := New(nil, nil, nil).Score(wallet, fv, 0)
	penalized := e.Score(wallet, fv, 0)

	assert.Contains(t, penalized.Flags, "blacklisted")
	assert.InDelta(t, unpenalized.ReputationScore-30, penalized.ReputationScore, 1e-9)
}

func TestScoreStabilityAcrossRepeatedCalls(t *testing.T) {
	e := New(nil, nil, nil)
	fv := models.FeatureVector{TransactionCount: 12, TxPerDay: 3, AvgValue: 10, AccountAgeDays: 90}
	r1 := e.Score("0xabc", fv, 12)
	r2 := e.Score("0xabc", fv, 12)
	assert.Equal(t, r1.ReputationScore, r2.ReputationScore)
	assert.Equal(t, r1.RiskLevel, r2.RiskLevel)
	assert.Equal(t, r1.Confidence, r2.Confidence)
}

func TestCriticalScenarioFallsBelowThreshold(t *testing.T) {
	e := New(nil, nil, nil)
	fv := models.FeatureVector{
		TransactionCount: 120,
		TxPerDay:         120,
		FailedTxCount:    20,
		AccountAgeDays:   0.5,
		AvgValue:         5,
	}
	result := e.Score("0xabc", fv, 120)
	assert.Less(t, result.ReputationScore, 30.0)
	assert.Equal(t, models.RiskCritical, result.RiskLevel)
}
