package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/treasury/config"
	"github.com/vadiminshakov/treasury/internal/domain"
	"github.com/vadiminshakov/treasury/internal/storage/kv"
	"github.com/vadiminshakov/treasury/internal/storage/snapshotcache"
	"go.uber.org/zap"
)

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cache   config.Cache
		wantErr bool
	}{
		{name: "memory", cache: config.Cache{Backend: config.CacheMemory}},
		{name: "file", cache: config.Cache{Backend: config.CacheFile, Path: filepath.Join(dir, "cache.json")}},
		{name: "wal", cache: config.Cache{Backend: config.CacheWAL, Dir: filepath.Join(dir, "wal")}},
		{name: "unknown", cache: config.Cache{Backend: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := OpenStore(context.Background(), tt.cache)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			require.NoError(t, store.Set(context.Background(), "k", []byte(`"v"`)))
			v, err := store.Get(context.Background(), "k")
			require.NoError(t, err)
			assert.Equal(t, `"v"`, string(v))
		})
	}
}

func TestSourceName(t *testing.T) {
	tests := map[string]string{
		"https://blockstream.info/api":                      "blockstream.info/api",
		"https://rpc.ankr.com/solana":                       "rpc.ankr.com/solana",
		"https://api.mainnet-beta.solana.com":               "api.mainnet-beta.solana.com",
		"https://mainnet.helius-rpc.com/?api-key=secret":    "mainnet.helius-rpc.com",
		"https://eth-mainnet.g.alchemy.com/v2/secret-token": "eth-mainnet.g.alchemy.com",
		"not a url":                                         "not a url",
	}

	for endpoint, expected := range tests {
		assert.Equal(t, expected, sourceName(endpoint), endpoint)
	}
}

func offlineConfig(t *testing.T) config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Endpoints = config.Endpoints{}
	cfg.Cache = config.Cache{Backend: config.CacheFile, Path: filepath.Join(t.TempDir(), "cache.json")}
	cfg.Web.Enabled = false
	cfg.NetWorth = false
	return cfg
}

func TestNew_LoadsCachedSnapshot(t *testing.T) {
	cfg := offlineConfig(t)

	store, err := kv.NewFileStore(cfg.Cache.Path)
	require.NoError(t, err)
	cached := domain.NewTreasurySnapshot(
		domain.Balances{BTC: decimal.NewFromInt(1), ETH: decimal.NewFromInt(10), SOL: decimal.NewFromInt(100)},
		domain.Prices{BTC: decimal.NewFromInt(100000), ETH: decimal.NewFromInt(3000), SOL: decimal.NewFromInt(150)},
		nil,
		time.Now().Add(-time.Minute),
	)
	require.NoError(t, snapshotcache.New(store).Save(context.Background(), cfg.SOLAddress, cached))
	require.NoError(t, store.Close())

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	snap := a.Aggregator().Snapshot()
	assert.True(t, snap.IsFromCache)
	assert.True(t, decimal.NewFromInt(100).Equal(snap.Balances.SOL))
	assert.True(t, cached.TotalUSD.Equal(snap.TotalUSD))
	assert.Nil(t, a.server)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.BTCAddresses = nil

	var err error
	require.NotPanics(t, func() { _, err = New(context.Background(), cfg, zap.NewNop()) })
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Cache = config.Cache{Backend: config.CacheMemory}

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
