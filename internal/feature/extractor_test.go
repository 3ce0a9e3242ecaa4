package feature

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wallet-sentinel/sentinel/pkg/models"
)

const testWallet = "0xc188d7e186682502b0177bebe427828e8f5daf50"

func TestExtractEmptyHistory(t *testing.T) {
	fv := Extract(testWallet, nil, 0, 1_700_000_000_000)
	assert.Equal(t, float64(365), fv.DaysSinceLastTx)
	assert.Equal(t, float64(0), fv.TransactionCount)
}

func TestExtractOnlySuccessfulContributeToValueAggregates(t *testing.T) {
	now := int64(1_700_000_000_000)
	events := []models.WalletEvent{
		{Sender: testWallet, Receiver: "0x0000000000000000000000000000000000000002", Value: big.NewInt(100), Status: models.TxStatusSuccess, BlockTimestamp: now - 1000},
		{Sender: testWallet, Receiver: "0x0000000000000000000000000000000000000003", Value: big.NewInt(999999), Status: models.TxStatusFailed, BlockTimestamp: now - 500},
	}
	fv := Extract(testWallet, events, 0, now)
	assert.Equal(t, float64(1), fv.FailedTxCount)
	assert.Equal(t, float64(100), fv.AvgValue)
	assert.Equal(t, float64(100), fv.TotalVolume)
}

func TestExtractHistoryCapAtMaxHistory(t *testing.T) {
	x := New()
	for i := 0; i < MaxHistory+10; i++ {
		x.Record(testWallet, models.WalletEvent{
			Hash:           "h",
			BlockTimestamp: int64(i),
			BlockHeight:    uint64(i),
			Status:         models.TxStatusSuccess,
			Value:          big.NewInt(1),
		})
	}
	history := x.History(testWallet)
	assert.Len(t, history, MaxHistory)
	// newest event recorded (index MaxHistory+9) must be present as the
	// first (most recent) entry; the oldest 10 were evicted.
	assert.Equal(t, uint64(MaxHistory+9), history[0].BlockHeight)
}

func TestUniqueCounterpartiesExcludesSelf(t *testing.T) {
	now := int64(1_700_000_000_000)
	events := []models.WalletEvent{
		{Sender: testWallet, Receiver: testWallet, Value: big.NewInt(1), Status: models.TxStatusSuccess, BlockTimestamp: now},
		{Sender: testWallet, Receiver: "0x0000000000000000000000000000000000000009", Value: big.NewInt(1), Status: models.TxStatusSuccess, BlockTimestamp: now},
	}
	fv := Extract(testWallet, events, 0, now)
	assert.Equal(t, float64(1), fv.UniqueCounterparties)
}

func TestActivityConsistencyUndefinedBelowTwoEvents(t *testing.T) {
	now := int64(1_700_000_000_000)
	events := []models.WalletEvent{
		{Sender: testWallet, Value: big.NewInt(1), Status: models.TxStatusSuccess, BlockTimestamp: now},
	}
	fv := Extract(testWallet, events, 0, now)
	assert.Equal(t, float64(0), fv.ActivityConsistency)
}
