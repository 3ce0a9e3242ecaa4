package db

import (
	"context"

	"github.com/wallet-sentinel/sentinel/internal/codec"
)

// LoadBlacklist returns every address persisted in wallet_blacklist, in the
// same canonical lowercase form internal/scoring.LoadBlacklist produces for
// the file-based source — the Scoring Engine merges the two without caring
// which one an address came from.
func (d *Database) LoadBlacklist(ctx context.Context) (map[string]struct{}, error) {
	rows, err := d.pool.Query(ctx, "SELECT address FROM wallet_blacklist")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]struct{})
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		canonical, _, err := codec.Normalize(addr)
		if err != nil {
			continue
		}
		result[canonical] = struct{}{}
	}
	return result, rows.Err()
}

// AddToBlacklist persists a wallet with an optional human-readable reason.
func (d *Database) AddToBlacklist(ctx context.Context, wallet, reason string) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO wallet_blacklist (address, reason) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET reason = $2
	`, wallet, reason)
	return err
}

// RemoveFromBlacklist deletes a wallet from the persisted blacklist.
func (d *Database) RemoveFromBlacklist(ctx context.Context, wallet string) error {
	_, err := d.pool.Exec(ctx, "DELETE FROM wallet_blacklist WHERE address = $1", wallet)
	return err
}
