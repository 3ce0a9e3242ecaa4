// Package db wraps pgx/v5 for the sentinel's optional operational store:
// the persisted blacklist and the on-chain flag audit log. Grounded on the
// teacher's internal/storage/db/connection.go connection-pool setup,
// repurposed to this module's two tables instead of memecoin similarity
// data.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wallet-sentinel/sentinel/pkg/config"
	"github.com/wallet-sentinel/sentinel/pkg/logging"
)

// Database wraps a pgx connection pool.
type Database struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
}

// NewDatabaseConnection dials Postgres and verifies connectivity.
func NewDatabaseConnection(cfg *config.DatabaseConfig, logger *logging.Logger) (*Database, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing database connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime) * time.Second
	poolConfig.MaxConnIdleTime = time.Duration(cfg.MaxConnIdleTime) * time.Second
	poolConfig.HealthCheckPeriod = time.Duration(cfg.HealthCheckPeriod) * time.Second

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if logger != nil {
		logger.Info("database connection established", map[string]interface{}{"host": cfg.Host, "db": cfg.Name})
	}

	db := &Database{pool: pool, logger: logger}
	if err := db.ensureSchema(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return db, nil
}

// Close releases the connection pool.
func (d *Database) Close() {
	if d.logger != nil {
		d.logger.Info("closing database connection", nil)
	}
	d.pool.Close()
}

func (d *Database) ensureSchema(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS wallet_blacklist (
			address    TEXT PRIMARY KEY,
			reason     TEXT NOT NULL DEFAULT '',
			added_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS wallet_flag_audit (
			id               BIGSERIAL PRIMARY KEY,
			wallet           TEXT NOT NULL,
			action           TEXT NOT NULL,
			risk_level       TEXT NOT NULL,
			reputation_score DOUBLE PRECISION NOT NULL,
			reason           TEXT NOT NULL DEFAULT '',
			tx_hash          TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_wallet_flag_audit_wallet ON wallet_flag_audit (wallet);
	`)
	return err
}
