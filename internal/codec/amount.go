package codec

import (
	"math/big"
	"strings"

	"github.com/wallet-sentinel/sentinel/internal/apperr"
)

// FormatAmount renders an integer amount in minor units as a fixed-point
// decimal string with the given number of decimals, e.g. (1500000000000000000, 18)
// -> "1.5". No float64 is involved.
func FormatAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		amount = big.NewInt(0)
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	s := abs.String()

	if decimals <= 0 {
		if neg {
			return "-" + s
		}
		return s
	}

	for len(s) <= decimals {
		s = "0" + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")

	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ParseAmount is the inverse of FormatAmount: it parses a fixed-point decimal
// string into an integer amount of minor units.
func ParseAmount(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, apperr.Validation("empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		fracPart = s[i+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > decimals {
		return nil, apperr.Validation("amount has more precision than decimals allow")
	}
	for len(fracPart) < decimals {
		fracPart += "0"
	}

	digits := intPart + fracPart
	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, apperr.Validation("malformed amount: " + s)
	}
	if neg {
		value.Neg(value)
	}
	return value, nil
}
