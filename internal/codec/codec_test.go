package codec

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIdempotent(t *testing.T) {
	addrs := []string{
		"0xC188d7E186682502B0177bEbE427828e8F5daf50",
		"0x0000000000000000000000000000000000000001",
	}
	for _, a := range addrs {
		c1, _, err := Normalize(a)
		require.NoError(t, err)
		c2, _, err := Normalize(c1)
		require.NoError(t, err)
		assert.Equal(t, c1, c2)
		assert.Equal(t, c1, toLowerASCII(c1))
	}
}

func TestNormalizeCaseInsensitive(t *testing.T) {
	lower := "0x0000000000000000000000000000000000000001"
	upper := "0X0000000000000000000000000000000000000001"
	c1, _, err := Normalize(lower)
	require.NoError(t, err)
	c2, _, err := Normalize(upper)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	_, _, err := Normalize("not-an-address")
	assert.Error(t, err)

	_, _, err = Normalize("0x1234")
	assert.Error(t, err)
}

func TestNormalizeRejectsBadChecksum(t *testing.T) {
	// Correctly checksummed per EIP-55; flipping one letter's case keeps the
	// address mixed-case (so it still claims a checksum) while breaking it.
	correct := "0xC188d7E186682502B0177bEbE427828e8F5daf50"
	mangled := "0xc188d7E186682502B0177bEbE427828e8F5daf50"

	_, _, err := Normalize(correct)
	require.NoError(t, err)

	_, _, err = Normalize(mangled)
	assert.Error(t, err)
}

func TestFormatAmountRoundTrip(t *testing.T) {
	cases := []struct {
		amount   *big.Int
		decimals int
		want     string
	}{
		{big.NewInt(1500000000000000000), 18, "1.5"},
		{big.NewInt(0), 18, "0"},
		{big.NewInt(1000000), 6, "1"},
		{big.NewInt(-2500000), 6, "-2.5"},
	}
	for _, c := range cases {
		got := FormatAmount(c.amount, c.decimals)
		assert.Equal(t, c.want, got)

		parsed, err := ParseAmount(got, c.decimals)
		require.NoError(t, err)
		assert.Equal(t, c.amount.String(), parsed.String())
	}
}

func TestParseAmountRejectsOverPrecision(t *testing.T) {
	_, err := ParseAmount("1.123456789", 2)
	assert.Error(t, err)
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
