// Package feature derives a fixed FeatureVector from a wallet's event
// history. Extraction is a pure, CPU-only function of the event list; the
// only state carried across calls is the per-wallet history LRU.
package feature

import (
	"math"
	"math/big"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wallet-sentinel/sentinel/pkg/models"
)

// MaxHistory bounds the newest events kept per wallet.
const MaxHistory = 1000

const (
	maxAccountAgeDays  = 5 * 365
	maxDaysSinceLastTx = 365
	maxTxCount         = 10000
	sentinelDaysSince  = 365
)

// Extractor maintains a bounded history of recent events per wallet and
// turns them into FeatureVectors on demand.
type Extractor struct {
	history *lru.Cache[string, []models.WalletEvent]
}

// New builds an extractor with room for many wallets' histories, each
// individually capped at MaxHistory.
func New() *Extractor {
	cache, err := lru.New[string, []models.WalletEvent](4096)
	if err != nil {
		panic(err)
	}
	return &Extractor{history: cache}
}

// Record appends an event to the wallet's history, evicting the oldest entry
// once MaxHistory is exceeded.
func (x *Extractor) Record(wallet string, event models.WalletEvent) {
	events, _ := x.history.Get(wallet)
	events = append(events, event)
	if len(events) > MaxHistory {
		events = events[len(events)-MaxHistory:]
	}
	x.history.Add(wallet, events)
}

// History returns the wallet's recorded events, most recent first.
func (x *Extractor) History(wallet string) []models.WalletEvent {
	events, _ := x.history.Get(wallet)
	out := make([]models.WalletEvent, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	return out
}

// Extract derives the FeatureVector for wallet w from events E (most recent
// first), per §4.2. balance is an optional live balance query result; pass 0
// when unavailable. now is milliseconds since epoch.
func Extract(w string, events []models.WalletEvent, balance float64, now int64) models.FeatureVector {
	var fv models.FeatureVector
	fv.Balance = balance

	if len(events) == 0 {
		fv.DaysSinceLastTx = sentinelDaysSince
		return fv
	}

	chronological := make([]models.WalletEvent, len(events))
	copy(chronological, events)
	sort.SliceStable(chronological, func(i, j int) bool {
		return chronological[i].BlockTimestamp < chronological[j].BlockTimestamp
	})

	var (
		successCount   int
		failedCount    int
		sumValue       float64
		minValue       = math.Inf(1)
		maxValue       = 0.0
		sumGasPrice    float64
		gasSamples     int
		counterparties = map[string]struct{}{}
		contractHits   int
		hourHist       [24]int
		minTs          = chronological[0].BlockTimestamp
		maxTs          = chronological[len(chronological)-1].BlockTimestamp
	)

	for _, e := range chronological {
		hourHist[hourOfMs(e.BlockTimestamp)]++
	}

	for _, e := range events {
		if e.Sender != w && e.Sender != "" {
			counterparties[e.Sender] = struct{}{}
		}
		if e.Receiver != w && e.Receiver != "" {
			counterparties[e.Receiver] = struct{}{}
		}
		if e.ContractAddress != "" || len(e.Input) > 4 {
			contractHits++
		}
		if e.GasPrice != nil {
			sumGasPrice += bigToFloat(e.GasPrice)
			gasSamples++
		}

		if e.Status != models.TxStatusSuccess {
			failedCount++
			continue
		}
		successCount++
		v := bigToFloat(e.Value)
		sumValue += v
		if v < minValue {
			minValue = v
		}
		if v > maxValue {
			maxValue = v
		}
	}
	if successCount == 0 {
		minValue = 0
	}

	fv.TransactionCount = clip(float64(len(events)), 0, maxTxCount)
	fv.FailedTxCount = float64(failedCount)
	fv.UniqueCounterparties = float64(len(counterparties))
	fv.ContractInteractions = float64(contractHits)

	accountAgeDays := float64(now-minTs) / 86400000.0
	fv.AccountAgeDays = clip(accountAgeDays, 0, maxAccountAgeDays)

	daysSinceLast := float64(now-maxTs) / 86400000.0
	fv.DaysSinceLastTx = clip(daysSinceLast, 0, maxDaysSinceLastTx)

	if accountAgeDays > 0 {
		fv.TxPerDay = float64(len(events)) / math.Max(accountAgeDays, 1.0/86400.0)
	}

	activeDaySet := map[int64]struct{}{}
	for _, e := range events {
		activeDaySet[e.BlockTimestamp/86400000] = struct{}{}
	}
	fv.ActiveDays = float64(len(activeDaySet))

	if successCount > 0 {
		fv.AvgValue = sumValue / float64(successCount)
		fv.MinValue = minValue
		fv.MaxValue = maxValue
		fv.TotalVolume = sumValue
	}
	if maxValue > 0 {
		fv.ValueConcentration = clip(fv.AvgValue/maxValue, 0, 1)
	}
	if gasSamples > 0 {
		fv.AvgGasPrice = sumGasPrice / float64(gasSamples)
	}
	fv.GasUsagePattern = gasUsagePattern(events)

	fv.TimeDistribution = timeDistribution(hourHist)
	fv.ActivityConsistency = activityConsistency(chronological)

	return fv
}

func hourOfMs(ms int64) int {
	secs := ms / 1000
	return int((secs / 3600) % 24)
}

func gasUsagePattern(events []models.WalletEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum, sumSq float64
	n := 0
	for _, e := range events {
		v := float64(e.GasUsed)
		sum += v
		sumSq += v * v
		n++
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	if mean == 0 {
		return 0
	}
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance) / mean
}

// timeDistribution computes H(hour_histogram)/log2(24), the Shannon entropy
// of the hour-of-day histogram normalized to [0,1], with 0·log 0 = 0.
func timeDistribution(hist [24]int) float64 {
	total := 0
	for _, c := range hist {
		total += c
	}
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, c := range hist {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return clip(entropy/math.Log2(24), 0, 1)
}

// activityConsistency computes max(0, 1 - var(Δt)/mean(Δt)^2) over
// chronologically ordered inter-event intervals; undefined (0) below 2 events.
func activityConsistency(chronological []models.WalletEvent) float64 {
	if len(chronological) < 2 {
		return 0
	}
	deltas := make([]float64, 0, len(chronological)-1)
	for i := 1; i < len(chronological); i++ {
		dt := float64(chronological[i].BlockTimestamp - chronological[i-1].BlockTimestamp)
		deltas = append(deltas, dt)
	}
	var sum float64
	for _, d := range deltas {
		sum += d
	}
	mean := sum / float64(len(deltas))
	if mean == 0 {
		return 0
	}
	var sumSq float64
	for _, d := range deltas {
		diff := d - mean
		sumSq += diff * diff
	}
	variance := sumSq / float64(len(deltas))
	return math.Max(0, 1-variance/(mean*mean))
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v)
	out, _ := f.Float64()
	return out
}
