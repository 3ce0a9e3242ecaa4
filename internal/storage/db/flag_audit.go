package db

import (
	"context"

	"github.com/wallet-sentinel/sentinel/pkg/models"
)

// FlagAuditEntry is one row of the on-chain flagging history, recorded
// independently of the chain itself so a dashboard can show flag/unflag
// activity without re-querying the contract for every wallet.
type FlagAuditEntry struct {
	Wallet          string
	Action          string // "flag" | "unflag" | "update_risk"
	RiskLevel       models.RiskLevel
	ReputationScore float64
	Reason          string
	TxHash          string
}

// RecordFlagAction appends an audit row for a flag registry write, whether
// or not the write itself succeeded on-chain — a failed attempt is still
// worth knowing about.
func (d *Database) RecordFlagAction(ctx context.Context, entry FlagAuditEntry) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO wallet_flag_audit (wallet, action, risk_level, reputation_score, reason, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.Wallet, entry.Action, string(entry.RiskLevel), entry.ReputationScore, entry.Reason, entry.TxHash)
	return err
}

// FlagHistory returns a wallet's audit rows, most recent first.
func (d *Database) FlagHistory(ctx context.Context, wallet string, limit int) ([]FlagAuditEntry, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT wallet, action, risk_level, reputation_score, reason, tx_hash
		FROM wallet_flag_audit
		WHERE wallet = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, wallet, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []FlagAuditEntry
	for rows.Next() {
		var e FlagAuditEntry
		var risk string
		if err := rows.Scan(&e.Wallet, &e.Action, &risk, &e.ReputationScore, &e.Reason, &e.TxHash); err != nil {
			return nil, err
		}
		e.RiskLevel = models.RiskLevel(risk)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
