// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SepoliaChainID is the default chain for contract reads and tips.
const SepoliaChainID = 11155111

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env            string `mapstructure:"APP_ENV"`
	Port           string `mapstructure:"PORT"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	Origin         string `mapstructure:"ORIGIN"`

	FeedSource    string        `mapstructure:"FEED_SOURCE"`
	MockDataPath  string        `mapstructure:"MOCK_DATA_PATH"`
	FeedCacheTTL  time.Duration `mapstructure:"FEED_CACHE_TTL"`
	AuraRPCURL    string        `mapstructure:"AURA_RPC_URL"`
	AuraPost      string        `mapstructure:"AURA_POST_ADDRESS"`
	AuraChainID   int64         `mapstructure:"AURA_CHAIN_ID"`
	AuraGateway   string        `mapstructure:"AURA_IPFS_GATEWAY"`
	ValeuRPCURL   string        `mapstructure:"VALEU_RPC_URL"`
	ValeuPost     string        `mapstructure:"VALEU_POST_ADDRESS"`
	ValeuChainID  int64         `mapstructure:"VALEU_CHAIN_ID"`
	ValeuGateway  string        `mapstructure:"VALEU_IPFS_GATEWAY"`
	ValeuRegistry string        `mapstructure:"VALEU_ERC6551_REGISTRY"`
	ValeuAccount  string        `mapstructure:"VALEU_ACCOUNT_IMPLEMENTATION"`

	TipChainID       int64  `mapstructure:"TIP_CHAIN_ID"`
	TipRPCURL        string `mapstructure:"TIP_RPC_URL"`
	WalletPrivateKey string `mapstructure:"WALLET_PRIVATE_KEY"`

	LedgerBackend string `mapstructure:"LEDGER_BACKEND"`
	LedgerPath    string `mapstructure:"LEDGER_PATH"`
	RedisURL      string `mapstructure:"REDIS_URL"`
	DBHost        string `mapstructure:"DB_HOST"`
	DBPort        string `mapstructure:"DB_PORT"`
	DBUser        string `mapstructure:"DB_USER"`
	DBPassword    string `mapstructure:"DB_PASSWORD"`
	DBName        string `mapstructure:"DB_NAME"`
	DBSSLMode     string `mapstructure:"DB_SSLMODE"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`

	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingExporter string `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	// The base config file is optional.
	_ = v.ReadInConfig()

	env := v.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8375")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("ORIGIN", "http://localhost:3000")
	v.SetDefault("FEED_SOURCE", "mock")
	v.SetDefault("MOCK_DATA_PATH", "")
	v.SetDefault("FEED_CACHE_TTL", 30*time.Second)
	v.SetDefault("AURA_CHAIN_ID", SepoliaChainID)
	v.SetDefault("AURA_IPFS_GATEWAY", "https://ipfs.io/ipfs/")
	v.SetDefault("VALEU_CHAIN_ID", SepoliaChainID)
	v.SetDefault("VALEU_IPFS_GATEWAY", "https://ipfs.io/ipfs/")
	v.SetDefault("TIP_CHAIN_ID", SepoliaChainID)
	v.SetDefault("TIP_RPC_URL", "")
	v.SetDefault("WALLET_PRIVATE_KEY", "")
	v.SetDefault("LEDGER_BACKEND", "file")
	v.SetDefault("LEDGER_PATH", "data/ledger")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "aurafeed")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "data/aurafeed.db")
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")

	// AutomaticEnv only resolves keys viper already knows about; the empty
	// defaults below make the remaining keys visible to Unmarshal.
	for _, key := range []string{
		"AURA_RPC_URL", "AURA_POST_ADDRESS",
		"VALEU_RPC_URL", "VALEU_POST_ADDRESS", "VALEU_ERC6551_REGISTRY", "VALEU_ACCOUNT_IMPLEMENTATION",
	} {
		v.SetDefault(key, "")
	}
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if strings.TrimSpace(c.Origin) == "" {
		return errors.New("ORIGIN is required")
	}

	switch c.FeedSource {
	case "mock":
	case "aura":
		if c.AuraRPCURL == "" {
			return errors.New("AURA_RPC_URL is not defined")
		}
		if c.AuraPost == "" {
			return errors.New("AURA_POST_ADDRESS is not defined")
		}
	case "valeu":
		if c.ValeuRPCURL == "" {
			return errors.New("VALEU_RPC_URL is not defined")
		}
		if c.ValeuPost == "" {
			return errors.New("VALEU_POST_ADDRESS is not defined")
		}
		if c.ValeuRegistry == "" {
			return errors.New("VALEU_ERC6551_REGISTRY is not defined")
		}
		if c.ValeuAccount == "" {
			return errors.New("VALEU_ACCOUNT_IMPLEMENTATION is not defined")
		}
	default:
		return fmt.Errorf("unknown FEED_SOURCE %q (expected mock, aura or valeu)", c.FeedSource)
	}

	switch c.LedgerBackend {
	case "file", "memory", "sqlite":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis ledger backend")
		}
	case "postgres":
		if c.IsProduction() && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.IsProduction() && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend)
	}

	if c.TipChainID <= 0 {
		return errors.New("TIP_CHAIN_ID must be positive")
	}
	if c.IsProduction() && c.AllowedOrigins == "*" {
		log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
	}
	return nil
}

// TipRPCEndpoint returns the RPC endpoint used for tip transactions, falling
// back to the active feed source's endpoint when TIP_RPC_URL is unset.
func (c *Config) TipRPCEndpoint() string {
	if c.TipRPCURL != "" {
		return c.TipRPCURL
	}
	switch c.FeedSource {
	case "aura":
		return c.AuraRPCURL
	case "valeu":
		return c.ValeuRPCURL
	}
	return ""
}
