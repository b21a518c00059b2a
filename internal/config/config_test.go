package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:           "development",
		Port:          "8375",
		Origin:        "http://localhost:3000",
		FeedSource:    "mock",
		LedgerBackend: "file",
		TipChainID:    SepoliaChainID,
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid mock config", mutate: func(*Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Port = "" }, wantErr: "PORT is required"},
		{name: "missing origin", mutate: func(c *Config) { c.Origin = " " }, wantErr: "ORIGIN is required"},
		{name: "unknown source", mutate: func(c *Config) { c.FeedSource = "lens" }, wantErr: "unknown FEED_SOURCE"},
		{
			name:    "aura without rpc",
			mutate:  func(c *Config) { c.FeedSource = "aura"; c.AuraPost = "0x1" },
			wantErr: "AURA_RPC_URL is not defined",
		},
		{
			name: "valeu without registry",
			mutate: func(c *Config) {
				c.FeedSource = "valeu"
				c.ValeuRPCURL = "http://rpc"
				c.ValeuPost = "0x1"
			},
			wantErr: "VALEU_ERC6551_REGISTRY is not defined",
		},
		{name: "redis without url", mutate: func(c *Config) { c.LedgerBackend = "redis" }, wantErr: "REDIS_URL is required"},
		{
			name: "postgres default password in production",
			mutate: func(c *Config) {
				c.Env = "production"
				c.LedgerBackend = "postgres"
				c.DBPassword = "password"
			},
			wantErr: "strong DB_PASSWORD",
		},
		{name: "unknown ledger backend", mutate: func(c *Config) { c.LedgerBackend = "s3" }, wantErr: "unknown LEDGER_BACKEND"},
		{name: "non-positive chain", mutate: func(c *Config) { c.TipChainID = 0 }, wantErr: "TIP_CHAIN_ID"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_DefaultsFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("FEED_SOURCE", "mock")
	t.Setenv("LEDGER_BACKEND", "memory")
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "memory", cfg.LedgerBackend)
	assert.Equal(t, int64(SepoliaChainID), cfg.TipChainID)
	assert.Equal(t, "http://localhost:3000", cfg.Origin)
}

func TestTipRPCEndpoint(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.FeedSource = "valeu"
	cfg.ValeuRPCURL = "http://valeu-rpc"
	assert.Equal(t, "http://valeu-rpc", cfg.TipRPCEndpoint())

	cfg.TipRPCURL = "http://tip-rpc"
	assert.Equal(t, "http://tip-rpc", cfg.TipRPCEndpoint())
}
