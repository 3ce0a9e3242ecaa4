package scoring

import (
	"math"

	"github.com/wallet-sentinel/sentinel/pkg/models"
)

// ruleBasedScore computes the deterministic fallback score per §4.3.a: a
// base of 70 with additive, monotonic-in-badness adjustments, grounded on
// the same weighted-adjustment shape the teacher's trust-network scorer
// uses for its own wallet trust formula, but following this pipeline's own
// constants.
func ruleBasedScore(fv models.FeatureVector) (score float64, confidence float64) {
	s := 70.0

	s += math.Min(8, math.Log10(1+fv.TransactionCount)*2)

	if fv.TxPerDay > 50 {
		s -= math.Min(25, math.Max(0, (fv.TxPerDay-50)*0.3))
	}
	if fv.TxPerDay > 0 && fv.TxPerDay <= 10 {
		s += math.Min(5, fv.TxPerDay*0.3)
	}

	if fv.AvgValue > 0 {
		s -= math.Min(15, math.Log10(math.Max(1, fv.AvgValue))*2)
	}

	s -= 4 * fv.FailedTxCount

	if fv.AccountAgeDays > 30 {
		s += math.Min(15, math.Log10(math.Max(1, fv.AccountAgeDays))*3)
	} else if fv.AccountAgeDays < 1 {
		s -= 20
	}

	s = clampScore(s)

	confidence = math.Min(0.8, 0.05*fv.TransactionCount)
	if confidence < 0.3 {
		confidence = 0.3
	}

	return s, confidence
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
