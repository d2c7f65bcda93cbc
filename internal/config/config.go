package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Solana   SolanaConfig   `mapstructure:"solana"`
	Log      LogConfig      `mapstructure:"log"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Guard    GuardConfig    `mapstructure:"guard"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// SolanaConfig holds Solana-specific configuration
type SolanaConfig struct {
	RPC     string `mapstructure:"rpc"`
	Network string `mapstructure:"network"`
	Timeout int    `mapstructure:"timeout"` // in seconds
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// OracleConfig bounds which feed readings are trusted.
type OracleConfig struct {
	MaxAgeSlots      uint64 `mapstructure:"max_age_slots"`
	MaxConfidenceBps uint64 `mapstructure:"max_confidence_bps"`
}

// PricingConfig holds share issuance settings.
type PricingConfig struct {
	SeedSharePrice string `mapstructure:"seed_share_price"`
}

// GuardConfig holds transition check settings.
type GuardConfig struct {
	ValueTolerance string `mapstructure:"value_tolerance"`
}

// ExecutorConfig tunes instruction execution.
type ExecutorConfig struct {
	Workers          int `mapstructure:"workers"`
	ReceiptBatchSize int `mapstructure:"receipt_batch_size"`
	PoolCacheSize    int `mapstructure:"pool_cache_size"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Type     string         `mapstructure:"type"` // postgres, mongodb or mysql
	Postgres PostgresConfig `mapstructure:"postgres"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
}

type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // in seconds
}

type MongoDBConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	MaxPoolSize    uint64 `mapstructure:"max_pool_size"`
	MinPoolSize    uint64 `mapstructure:"min_pool_size"`
	ConnectTimeout int    `mapstructure:"connect_timeout"` // in seconds
}

type MySQLConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // in seconds
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Backend   string `mapstructure:"backend"` // log or prometheus
	Namespace string `mapstructure:"namespace"`
	Listen    string `mapstructure:"listen"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Solana: SolanaConfig{
			RPC:     "https://api.devnet.solana.com",
			Network: "devnet",
			Timeout: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Oracle: OracleConfig{
			MaxAgeSlots:      50,
			MaxConfidenceBps: 200,
		},
		Pricing: PricingConfig{
			SeedSharePrice: "1",
		},
		Guard: GuardConfig{
			ValueTolerance: "0.000001",
		},
		Executor: ExecutorConfig{
			Workers:          8,
			ReceiptBatchSize: 32,
			PoolCacheSize:    1024,
		},
		Database: DatabaseConfig{
			Enabled: false,
			Type:    "postgres",
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "zion",
				Database:        "zion",
				SSLMode:         "disable",
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 300,
			},
			MongoDB: MongoDBConfig{
				URI:            "mongodb://localhost:27017",
				Database:       "zion",
				MaxPoolSize:    10,
				ConnectTimeout: 10,
			},
			MySQL: MySQLConfig{
				Host:            "localhost",
				Port:            3306,
				User:            "zion",
				Database:        "zion",
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 300,
			},
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Backend:   "log",
			Namespace: "zion",
			Listen:    ":9090",
		},
	}
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".zion")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	// Environment variables override file values; every key needs a default
	// to be visible to AutomaticEnv during Unmarshal.
	v.SetEnvPrefix("ZION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("solana.rpc", cfg.Solana.RPC)
	v.SetDefault("solana.network", cfg.Solana.Network)
	v.SetDefault("solana.timeout", cfg.Solana.Timeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("oracle.max_age_slots", cfg.Oracle.MaxAgeSlots)
	v.SetDefault("oracle.max_confidence_bps", cfg.Oracle.MaxConfidenceBps)
	v.SetDefault("pricing.seed_share_price", cfg.Pricing.SeedSharePrice)
	v.SetDefault("guard.value_tolerance", cfg.Guard.ValueTolerance)
	v.SetDefault("executor.workers", cfg.Executor.Workers)
	v.SetDefault("executor.receipt_batch_size", cfg.Executor.ReceiptBatchSize)
	v.SetDefault("executor.pool_cache_size", cfg.Executor.PoolCacheSize)
	v.SetDefault("database.enabled", cfg.Database.Enabled)
	v.SetDefault("database.type", cfg.Database.Type)
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.backend", cfg.Metrics.Backend)
	v.SetDefault("metrics.namespace", cfg.Metrics.Namespace)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)
}

// Validate checks values the rest of the application relies on.
func (c *Config) Validate() error {
	if c.Oracle.MaxConfidenceBps >= 10_000 {
		return fmt.Errorf("oracle.max_confidence_bps must be below 10000, got %d", c.Oracle.MaxConfidenceBps)
	}

	seed, err := decimal.NewFromString(c.Pricing.SeedSharePrice)
	if err != nil {
		return fmt.Errorf("invalid pricing.seed_share_price %q: %w", c.Pricing.SeedSharePrice, err)
	}
	if !seed.IsPositive() {
		return fmt.Errorf("pricing.seed_share_price must be positive, got %s", seed)
	}

	tol, err := decimal.NewFromString(c.Guard.ValueTolerance)
	if err != nil {
		return fmt.Errorf("invalid guard.value_tolerance %q: %w", c.Guard.ValueTolerance, err)
	}
	if tol.IsNegative() || tol.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("guard.value_tolerance must be in [0, 1), got %s", tol)
	}

	if c.Executor.Workers < 1 {
		return fmt.Errorf("executor.workers must be at least 1, got %d", c.Executor.Workers)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log.format %q", c.Log.Format)
	}

	if c.Database.Enabled {
		switch c.Database.Type {
		case "postgres", "mongodb", "mysql":
		default:
			return fmt.Errorf("unsupported database.type %q", c.Database.Type)
		}
	}

	if c.Metrics.Enabled {
		switch c.Metrics.Backend {
		case "log", "prometheus":
		default:
			return fmt.Errorf("unsupported metrics.backend %q", c.Metrics.Backend)
		}
	}
	return nil
}

// GetRPCEndpoint returns the RPC endpoint for the configured network
func (c *SolanaConfig) GetRPCEndpoint() string {
	if c.RPC != "" {
		return c.RPC
	}

	switch c.Network {
	case "mainnet", "mainnet-beta":
		return "https://api.mainnet-beta.solana.com"
	case "testnet":
		return "https://api.testnet.solana.com"
	case "localnet", "localhost":
		return "http://localhost:8899"
	default:
		return "https://api.devnet.solana.com"
	}
}

// NewLogger builds the application logger. Output goes to stderr.
func (c *LogConfig) NewLogger() *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unsupported log.level %q", s)
	}
	return level, nil
}
