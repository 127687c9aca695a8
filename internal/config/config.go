package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Defaults for the DomaGuardian testnet.
const (
	DefaultChainID  = 97476
	DefaultPriceWei = "1000000000000000" // 0.001 ether
)

// Config holds all configuration for the server
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Chain     ChainConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Proxy     ProxyConfig
	Kafka     KafkaConfig
	Reconcile ReconcileConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	IdleTimeout    int // seconds
	RequestTimeout int // seconds
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// ChainConfig holds the execution host and genesis settings
type ChainConfig struct {
	ID       uint64
	Operator string // hex address that owns every contract at genesis
	PriceWei string // feature price in wei, decimal
}

// OperatorAddress returns the parsed operator address.
func (c ChainConfig) OperatorAddress() common.Address {
	return common.HexToAddress(c.Operator)
}

// Price returns the parsed feature price.
func (c ChainConfig) Price() *big.Int {
	p, _ := new(big.Int).SetString(c.PriceWei, 10)
	return p
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	Type           string // "none" or "signature"
	MaxSkewSeconds int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int
}

// SecurityConfig holds request hardening settings
type SecurityConfig struct {
	MaxBodySizeKB int
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool
	TrustedProxies []string // CIDR notation
}

// KafkaConfig holds event publication settings
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// ReconcileConfig holds the ledger reconciliation job settings
type ReconcileConfig struct {
	Enabled         bool
	IntervalSeconds int
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("PORT", 8080),
			Host:           getEnv("HOST", "0.0.0.0"),
			ReadTimeout:    getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:   getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:    getEnvInt("SERVER_IDLE_TIMEOUT", 120),
			RequestTimeout: getEnvInt("SERVER_REQUEST_TIMEOUT", 30),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/domaguardian.db"),
			},
		},
		Chain: ChainConfig{
			ID:       getEnvUint64("CHAIN_ID", DefaultChainID),
			Operator: getEnv("OPERATOR_ADDRESS", ""),
			PriceWei: getEnv("FEATURE_PRICE_WEI", DefaultPriceWei),
		},
		Auth: AuthConfig{
			Type:           getEnv("AUTH_TYPE", "signature"),
			MaxSkewSeconds: getEnvInt("AUTH_MAX_SKEW_SECONDS", 300),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 300),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 50),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Security: SecurityConfig{
			MaxBodySizeKB: getEnvInt("MAX_BODY_SIZE_KB", 64),
		},
		Proxy: ProxyConfig{
			TrustProxy:     getEnvBool("TRUST_PROXY", false),
			TrustedProxies: getEnvStringSlice("TRUSTED_PROXIES", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "domaguardian.events"),
		},
		Reconcile: ReconcileConfig{
			Enabled:         getEnvBool("RECONCILE_ENABLED", true),
			IntervalSeconds: getEnvInt("RECONCILE_INTERVAL_SECONDS", 60),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error
	if !common.IsHexAddress(c.Chain.Operator) || c.Chain.OperatorAddress() == (common.Address{}) {
		errs = append(errs, fmt.Errorf("OPERATOR_ADDRESS must be a non-zero hex address, got %q", c.Chain.Operator))
	}
	if p := c.Chain.Price(); p == nil || p.Sign() <= 0 {
		errs = append(errs, fmt.Errorf("FEATURE_PRICE_WEI must be a positive integer, got %q", c.Chain.PriceWei))
	}
	if c.Chain.ID == 0 {
		errs = append(errs, errors.New("CHAIN_ID must be non-zero"))
	}
	switch c.Auth.Type {
	case "none", "signature":
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_TYPE %q", c.Auth.Type))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseUint(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
