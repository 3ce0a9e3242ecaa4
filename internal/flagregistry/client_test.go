package flagregistry

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/wallet-sentinel/sentinel/internal/apperr"
	"github.com/wallet-sentinel/sentinel/pkg/models"
)

func TestContractABIParses(t *testing.T) {
	_, err := parsedABI()
	assert.NoError(t, err)
}

func TestWriteWithoutSignerIsNotConfigured(t *testing.T) {
	c := &Client{}
	wallet := common.HexToAddress("0xC188d7E186682502B0177bEbE427828e8F5daf5")

	res := c.Flag(context.Background(), wallet, models.RiskCritical, 10, "test")
	assert.False(t, res.OK)
	var appErr *apperr.Error
	assert.ErrorAs(t, res.Err, &appErr)
	assert.Equal(t, apperr.CodeNotConfigured, appErr.Code)
}

func TestBigToFloat(t *testing.T) {
	assert.Equal(t, float64(42), bigToFloat(big.NewInt(42)))
}
