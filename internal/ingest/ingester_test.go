package ingest

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
)

func newUnsignedLegacyTx(to *common.Address) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       to,
		Value:    big.NewInt(0),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
}

func TestDedupKeyDistinguishesWallets(t *testing.T) {
	assert.NotEqual(t, dedupKey("0xAAA", "0x1"), dedupKey("0xBBB", "0x1"))
}

func TestIngesterSeenMarkRoundTrip(t *testing.T) {
	ing := New(nil, nil, 0, nil)
	const wallet = "0xC188d7E186682502B0177bEbE427828e8F5daf5"
	const hash = "0xdead"

	assert.False(t, ing.seen(wallet, hash))
	ing.mark(wallet, hash)
	assert.True(t, ing.seen(wallet, hash))
	assert.False(t, ing.seen("0xOther", hash))
}

func TestFirstLogIndexEmptyIsZero(t *testing.T) {
	assert.Equal(t, uint(0), firstLogIndex(nil))
}

func TestTxPartiesRecipientOnlyWhenUnsigned(t *testing.T) {
	// An unsigned transaction has no recoverable sender; recipient still
	// resolves from the plain To field.
	to := common.HexToAddress("0xC188d7E186682502B0177bEbE427828e8F5daf5")
	tx := newUnsignedLegacyTx(&to)
	sender, recipient := txParties(tx)
	assert.Empty(t, sender)
	assert.Equal(t, to.Hex(), recipient)
}
