// Package codec normalizes and formats the two primitive wire types every
// other component keys off of: chain addresses and fixed-precision native
// amounts. No floating point is used on-wire or in storage.
package codec

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/wallet-sentinel/sentinel/internal/apperr"
)

// Normalize validates a 20-byte hex address (optionally EIP-55 checksummed)
// and returns its canonical lowercase form — the key used everywhere in the
// pipeline — alongside the checksummed form used for display.
func Normalize(address string) (canonical string, checksummed string, err error) {
	trimmed := strings.TrimSpace(address)
	if !common.IsHexAddress(trimmed) {
		return "", "", apperr.Validation("invalid address: " + address)
	}
	addr := common.HexToAddress(trimmed)
	checksummed = addr.Hex()
	canonical = strings.ToLower(checksummed)

	// common.IsHexAddress only checks length/hex-format; it never verifies
	// EIP-55 checksum casing. A mixed-case input that isn't all-lowercase
	// or all-uppercase is asserting a checksum, so it must match exactly.
	hexPart := trimmed
	hexPart = strings.TrimPrefix(hexPart, "0x")
	hexPart = strings.TrimPrefix(hexPart, "0X")
	mixedCase := hexPart != strings.ToLower(hexPart) && hexPart != strings.ToUpper(hexPart)
	if mixedCase && trimmed != checksummed {
		return "", "", apperr.Validation("invalid address: checksum mismatch")
	}
	return canonical, checksummed, nil
}

// MustNormalize panics on an invalid address; only safe for constants and
// tests.
func MustNormalize(address string) string {
	canonical, _, err := Normalize(address)
	if err != nil {
		panic(err)
	}
	return canonical
}

// IsValid reports whether address passes Normalize without error.
func IsValid(address string) bool {
	_, _, err := Normalize(address)
	return err == nil
}
