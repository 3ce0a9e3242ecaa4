package scoring

import (
	"encoding/json"
	"os"

	"github.com/wallet-sentinel/sentinel/internal/apperr"
	"github.com/wallet-sentinel/sentinel/internal/codec"
)

// LoadBlacklist reads a JSON array of addresses from path and normalizes
// each into the canonical lowercase form the Engine keys its blacklist by.
// A missing path is not an error — it simply yields an empty blacklist,
// since BLACKLIST_PATH is optional configuration.
func LoadBlacklist(path string) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	if path == "" {
		return result, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "reading blacklist file", err)
	}

	var addresses []string
	if err := json.Unmarshal(raw, &addresses); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "parsing blacklist file", err)
	}

	for _, addr := range addresses {
		canonical, _, err := codec.Normalize(addr)
		if err != nil {
			continue // skip malformed entries rather than failing the whole load
		}
		result[canonical] = struct{}{}
	}
	return result, nil
}
