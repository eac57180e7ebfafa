package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Treasury  TreasuryConfig  `mapstructure:"treasury"`
	Upstreams UpstreamsConfig `mapstructure:"upstreams"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	LoanRetentionDays  int    `mapstructure:"loan_retention_days"`
	CleanupIntervalMin int    `mapstructure:"cleanup_interval_minutes"`
}

type RedisConfig struct {
	Addr               string `mapstructure:"addr"`
	Password           string `mapstructure:"password"`
	DB                 int    `mapstructure:"db"`
	ConfigTTLSeconds   int    `mapstructure:"config_ttl_seconds"`
	IdempotencyTTLSecs int    `mapstructure:"idempotency_ttl_seconds"`
	LoanListKey        string `mapstructure:"loan_list_key"`
	LoanListMax        int    `mapstructure:"loan_list_max"`
}

type AuthConfig struct {
	// Maximum age of an identity proof before it is rejected as stale.
	ProofTTLSeconds int `mapstructure:"proof_ttl_seconds"`
	// Per-caller rate limit for mutating endpoints.
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

// TreasuryConfig carries the bootstrap values used when the persistent
// store holds no initialized treasury yet. Once initialized, the
// persisted row is authoritative and these are ignored.
type TreasuryConfig struct {
	Address         string `mapstructure:"address"`
	Admin           string `mapstructure:"admin"`
	Asset           string `mapstructure:"asset"`
	CollateralAsset string `mapstructure:"collateral_asset"`
	Pool            string `mapstructure:"pool"`
	Exchange        string `mapstructure:"exchange"`
	Borrower        string `mapstructure:"borrower"`
	LoanFee         string `mapstructure:"loan_fee"`
	AutoInitialize  bool   `mapstructure:"auto_initialize"`
}

type UpstreamsConfig struct {
	PoolURL       string `mapstructure:"pool_url"`
	IssuerURL     string `mapstructure:"issuer_url"`
	BorrowerURL   string `mapstructure:"borrower_url"`
	TimeoutMs     int    `mapstructure:"timeout_ms"`
	CallbackTOMs  int    `mapstructure:"callback_timeout_ms"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. PEGVAULT_DATABASE_DSN, PEGVAULT_UPSTREAMS_POOL_URL
	viper.SetEnvPrefix("pegvault")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("auth.proof_ttl_seconds", 60)
	viper.SetDefault("auth.qps", 5.0)
	viper.SetDefault("auth.burst", 10)
	viper.SetDefault("redis.config_ttl_seconds", 3600)
	viper.SetDefault("redis.idempotency_ttl_seconds", 86400)
	viper.SetDefault("redis.loan_list_key", "loans:completed")
	viper.SetDefault("redis.loan_list_max", 10000)
	viper.SetDefault("database.loan_retention_days", 90)
	viper.SetDefault("database.cleanup_interval_minutes", 60)
	viper.SetDefault("upstreams.timeout_ms", 5000)
	// The borrower callback runs arbitrary rebalancing logic; give it room.
	viper.SetDefault("upstreams.callback_timeout_ms", 30000)
	viper.SetDefault("treasury.loan_fee", "0")
	viper.SetDefault("treasury.auto_initialize", false)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
