// Package config loads the sentinel's configuration through Viper: a YAML
// file, an environment-specific override file, and environment variables,
// in that order of increasing precedence — the same layering the teacher
// repo's config loader uses.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	LogLevel string          `mapstructure:"log_level"`
	NodeEnv  string          `mapstructure:"node_env"`
	Chain    *ChainConfig    `mapstructure:"chain"`
	Contract *ContractConfig `mapstructure:"contract"`
	Model    *ModelConfig    `mapstructure:"model"`
	API      *APIConfig      `mapstructure:"api"`
	Database *DatabaseConfig `mapstructure:"database"`
	Redis    *RedisConfig    `mapstructure:"redis"`
}

// ChainConfig points the Chain Client at a JSON-RPC endpoint.
type ChainConfig struct {
	RPCURL               string `mapstructure:"rpc_url"`
	ChainID              int64  `mapstructure:"chain_id"`
	PrivateKey           string `mapstructure:"private_key"`
	BlockPollInterval    int    `mapstructure:"block_poll_interval_seconds"`
	WalletScanInterval   int    `mapstructure:"wallet_scan_interval_seconds"`
	MaxAttempts          int    `mapstructure:"max_attempts"`
	BaseBackoffMillis    int    `mapstructure:"base_backoff_millis"`
	MaxBackoffMillis     int    `mapstructure:"max_backoff_millis"`
}

// ContractConfig addresses the on-chain flag registry.
type ContractConfig struct {
	Address       string `mapstructure:"address"`
	Confirmations int    `mapstructure:"confirmations"`
	GasLimit      uint64 `mapstructure:"gas_limit"`
}

// ModelConfig locates the scoring engine's artifacts.
type ModelConfig struct {
	ModelPath     string `mapstructure:"model_path"`
	ScalerPath    string `mapstructure:"scaler_path"`
	FeaturesPath  string `mapstructure:"features_path"`
	BlacklistPath string `mapstructure:"blacklist_path"`
}

// APIConfig configures the thin HTTP facade.
type APIConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	ReadTimeout    int    `mapstructure:"read_timeout"`
	WriteTimeout   int    `mapstructure:"write_timeout"`
	MaxHeaderBytes int    `mapstructure:"max_header_bytes"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	RateLimitMax   int    `mapstructure:"rate_limit_max"`
	BodySizeLimit  int64  `mapstructure:"body_size_limit"`
}

// DatabaseConfig configures the optional Postgres-backed operational store.
type DatabaseConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Name              string `mapstructure:"name"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConnections    int    `mapstructure:"max_connections"`
	MinConnections    int    `mapstructure:"min_connections"`
	MaxConnLifetime   int    `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   int    `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod int    `mapstructure:"health_check_period"`
	Enabled           bool   `mapstructure:"enabled"`
}

// RedisConfig configures the optional Redis-backed stream collaborator.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	Enabled  bool   `mapstructure:"enabled"`
}

// Load reads configuration from config.yaml, an environment-specific
// config.<env>.yaml overlay, and the environment, in that order.
func Load() (*Config, error) {
	setDefaults()

	env := os.Getenv("NODE_ENV")
	if env == "" {
		env = "development"
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")
	viper.AddConfigPath("/etc/wallet-sentinel")

	viper.AutomaticEnv()
	bindEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	if err := viper.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading environment config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.NodeEnv = env

	if cfg.Chain.RPCURL == "" {
		return nil, fmt.Errorf("SOMNIA_RPC_URL is required")
	}
	if cfg.Chain.ChainID == 0 {
		return nil, fmt.Errorf("SOMNIA_CHAIN_ID is required")
	}

	return &cfg, nil
}

// bindEnv wires the environment variable names the spec names verbatim to
// their nested config keys, since Viper's AutomaticEnv alone only matches
// flattened, upper-cased, dot-to-underscore keys.
func bindEnv() {
	_ = viper.BindEnv("chain.rpc_url", "SOMNIA_RPC_URL")
	_ = viper.BindEnv("chain.chain_id", "SOMNIA_CHAIN_ID")
	_ = viper.BindEnv("chain.private_key", "PRIVATE_KEY")
	_ = viper.BindEnv("contract.address", "CONTRACT_ADDRESS")
	_ = viper.BindEnv("model.model_path", "MODEL_PATH")
	_ = viper.BindEnv("model.scaler_path", "SCALER_PATH")
	_ = viper.BindEnv("model.features_path", "FEATURES_PATH")
	_ = viper.BindEnv("model.blacklist_path", "BLACKLIST_PATH")
	_ = viper.BindEnv("api.port", "PORT")
	_ = viper.BindEnv("api.cors_origins", "CORS_ORIGINS")
	_ = viper.BindEnv("api.rate_limit_max", "RATE_LIMIT_MAX")
	_ = viper.BindEnv("api.body_size_limit", "BODY_SIZE_LIMIT")
	_ = viper.BindEnv("log_level", "LOG_LEVEL")
}

func setDefaults() {
	viper.SetDefault("log_level", "info")

	viper.SetDefault("chain.block_poll_interval_seconds", 4)
	viper.SetDefault("chain.wallet_scan_interval_seconds", 2)
	viper.SetDefault("chain.max_attempts", 3)
	viper.SetDefault("chain.base_backoff_millis", 250)
	viper.SetDefault("chain.max_backoff_millis", 8000)

	viper.SetDefault("contract.confirmations", 2)
	viper.SetDefault("contract.gas_limit", 500000)

	viper.SetDefault("model.model_path", "")
	viper.SetDefault("model.scaler_path", "")
	viper.SetDefault("model.features_path", "")
	viper.SetDefault("model.blacklist_path", "")

	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.read_timeout", 30)
	viper.SetDefault("api.write_timeout", 30)
	viper.SetDefault("api.max_header_bytes", 1048576)
	viper.SetDefault("api.cors_origins", []string{"*"})
	viper.SetDefault("api.rate_limit_max", 100)
	viper.SetDefault("api.body_size_limit", 1048576)

	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.name", "wallet_sentinel")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_connections", 20)
	viper.SetDefault("database.min_connections", 5)
	viper.SetDefault("database.max_conn_lifetime", 3600)
	viper.SetDefault("database.max_conn_idle_time", 1800)
	viper.SetDefault("database.health_check_period", 60)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
}
