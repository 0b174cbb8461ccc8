package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.BTCAddresses, 3)
	assert.Equal(t, 5, cfg.Thresholds.ZeroQuorum)
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 8*time.Second, cfg.ProxyTimeout)
	assert.Equal(t, CacheWAL, cfg.Cache.Backend)
	assert.True(t, cfg.NetWorth)
	assert.Equal(t, "https://api.hyperliquid.xyz", cfg.Endpoints.Hyperliquid)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
addresses:
  btc: ["bc1qu7suxfua5x46e59e7a56vd8wuj3a8qj06qr42j"]
endpoints:
  solana_rpc: ["http://localhost:8899"]
thresholds:
  zero_quorum: "3"
  outlier_sigma: "2.5"
retry:
  max_attempts: "4"
  base_delay: 2s
intervals:
  refresh: 1m
  proxy_timeout: 3s
rate_limit_rps: "0.5"
cache:
  backend: FILE
  path: /tmp/treasury.json
web:
  enabled: false
  allow_origins: ["https://dao.example"]
proxy:
  url: https://dao.example/api/treasury
tokens:
  merge_sources: true
  net_worth: false
price:
  exchange_fallback: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"bc1qu7suxfua5x46e59e7a56vd8wuj3a8qj06qr42j"}, cfg.BTCAddresses)
	assert.Equal(t, DefaultETHAddress, cfg.ETHAddress)
	assert.Equal(t, []string{"http://localhost:8899"}, cfg.Endpoints.SolanaRPC)
	assert.Equal(t, Default().Endpoints.CoinGecko, cfg.Endpoints.CoinGecko)
	assert.Equal(t, 3, cfg.Thresholds.ZeroQuorum)
	assert.Equal(t, 3, cfg.Thresholds.StatsMinSamples)
	assert.InDelta(t, 2.5, cfg.Thresholds.OutlierSigma, 1e-9)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 3*time.Second, cfg.ProxyTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Staleness)
	assert.InDelta(t, 0.5, cfg.RateLimitRPS, 1e-9)
	assert.Equal(t, CacheFile, cfg.Cache.Backend)
	assert.Equal(t, "/tmp/treasury.json", cfg.Cache.Path)
	assert.False(t, cfg.Web.Enabled)
	assert.Equal(t, []string{"https://dao.example"}, cfg.Web.AllowOrigins)
	assert.Equal(t, "https://dao.example/api/treasury", cfg.ProxyURL)
	assert.True(t, cfg.MergeTokenSources)
	assert.False(t, cfg.NetWorth)
	assert.True(t, cfg.ExchangeFallback)
	require.NoError(t, cfg.Validate())
}

func TestLoad_IncorrectParams(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "quorum", body: "thresholds:\n  zero_quorum: \"five\"\n", msg: "zero_quorum"},
		{name: "negative attempts", body: "retry:\n  max_attempts: \"-1\"\n", msg: "max_attempts"},
		{name: "sigma", body: "thresholds:\n  outlier_sigma: \"x\"\n", msg: "outlier_sigma"},
		{name: "rps", body: "rate_limit_rps: \"-2\"\n", msg: "rate_limit_rps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "no btc", mutate: func(c *Config) { c.BTCAddresses = nil }},
		{name: "blank btc", mutate: func(c *Config) { c.BTCAddresses = []string{" "} }},
		{name: "bad eth", mutate: func(c *Config) { c.ETHAddress = "0x123" }},
		{name: "bad sol", mutate: func(c *Config) { c.SOLAddress = "not-base58-0OIl" }},
		{name: "short sol", mutate: func(c *Config) { c.SOLAddress = "11111111" }},
		{name: "unknown backend", mutate: func(c *Config) { c.Cache.Backend = "etcd" }},
		{name: "redis without addr", mutate: func(c *Config) { c.Cache.Backend = CacheRedis }},
		{name: "redis with addr", mutate: func(c *Config) {
			c.Cache.Backend = CacheRedis
			c.Cache.RedisAddr = "localhost:6379"
		}, ok: true},
		{name: "zero quorum", mutate: func(c *Config) { c.Thresholds.ZeroQuorum = 0 }},
		{name: "refresh too short", mutate: func(c *Config) { c.RefreshInterval = time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"SHYFT_API_KEY":      "shyft",
		"ETHERSCAN_API_KEY":  "scan",
		"COINGECKO_API_KEY":  "gecko",
		"BINANCE_API_KEY":    "bk",
		"TREASURY_PROXY_URL": "https://proxy.example/api/treasury",
		"REDIS_ADDR":         "redis:6379",
	}

	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "shyft", cfg.Keys.Shyft)
	assert.Equal(t, "scan", cfg.Keys.Etherscan)
	assert.Equal(t, "gecko", cfg.Keys.CoinGecko)
	assert.Equal(t, "bk", cfg.Keys.BinanceKey)
	assert.Empty(t, cfg.Keys.Helius)
	assert.Equal(t, "https://proxy.example/api/treasury", cfg.ProxyURL)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
}

func TestIsSolanaAddress(t *testing.T) {
	assert.True(t, IsSolanaAddress(DefaultSOLAddress))
	assert.True(t, IsSolanaAddress("So11111111111111111111111111111111111111112"))
	assert.False(t, IsSolanaAddress(""))
	assert.False(t, IsSolanaAddress(DefaultETHAddress))
}
