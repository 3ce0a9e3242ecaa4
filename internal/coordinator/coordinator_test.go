package coordinator

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeiToEtherConversion(t *testing.T) {
	oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)
	assert.InDelta(t, 1.0, weiToEther(oneEth), 1e-9)
}

func TestWeiToEtherZero(t *testing.T) {
	assert.Equal(t, float64(0), weiToEther(big.NewInt(0)))
}
