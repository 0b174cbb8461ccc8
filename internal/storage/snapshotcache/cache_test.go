package snapshotcache

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/treasury/internal/domain"
	"github.com/vadiminshakov/treasury/internal/storage/kv"
)

const solAddress = "2n8etcRuK49GUMXWi2QRtQ8YwS6nTDEUjfX7LcvKFyiV"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New(kv.NewMemoryStore(), WithClock(fixedClock(now)))

	snap := domain.NewTreasurySnapshot(
		domain.Balances{BTC: decimal.RequireFromString("1.5"), ETH: decimal.NewFromInt(10), SOL: decimal.NewFromInt(100)},
		domain.Prices{BTC: decimal.NewFromInt(60000), ETH: decimal.NewFromInt(3000), SOL: decimal.NewFromInt(150)},
		[]domain.TokenHolding{{Mint: "m", Symbol: "USDC", RawAmount: decimal.NewFromInt(5_000_000), Decimals: 6, USDValue: decimal.NewFromInt(5)}},
		now.Add(-time.Minute),
	)

	require.NoError(t, c.Save(ctx, solAddress, snap))

	entry, err := c.Load(ctx, solAddress)
	require.NoError(t, err)
	assert.Equal(t, solAddress, entry.Address)
	assert.True(t, now.Equal(entry.Timestamp))

	restored := entry.Snapshot()
	assert.True(t, restored.IsFromCache)
	assert.True(t, snap.TotalUSD.Equal(restored.TotalUSD))
	assert.True(t, snap.Balances.BTC.Equal(restored.Balances.BTC))
	assert.True(t, snap.LastUpdated.Equal(restored.LastUpdated))
	require.Len(t, restored.Tokens, 1)
	assert.Equal(t, "USDC", restored.Tokens[0].Symbol)
}

func TestCache_MissAndCorrupt(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	c := New(store)

	_, err := c.Load(ctx, solAddress)
	assert.True(t, errors.Is(err, domain.ErrCacheMiss))

	require.NoError(t, store.Set(ctx, domain.CacheKey(solAddress), []byte("{not json")))

	_, err = c.Load(ctx, solAddress)
	assert.True(t, errors.Is(err, domain.ErrCacheCorrupt))

	_, err = store.Get(ctx, domain.CacheKey(solAddress))
	assert.ErrorIs(t, err, kv.ErrNotFound, "corrupt entry must be evicted")
}

func TestCache_Asset(t *testing.T) {
	ctx := context.Background()
	c := New(kv.NewMemoryStore())
	ethAddress := "0x8262ab131e3f52315d700308152e166909ecfa47"

	require.NoError(t, c.SaveAsset(ctx, ethAddress, decimal.Zero))
	_, err := c.LoadAsset(ctx, ethAddress)
	assert.True(t, errors.Is(err, domain.ErrCacheMiss))

	require.NoError(t, c.SaveAsset(ctx, ethAddress, decimal.RequireFromString("12.34")))
	entry, err := c.LoadAsset(ctx, ethAddress)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.34").Equal(entry.Balance))
	assert.Equal(t, ethAddress, entry.Address)
}

func TestCache_Sweep(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	old := New(store, WithClock(fixedClock(now.Add(-25*time.Hour))))
	require.NoError(t, old.SaveAsset(ctx, "old", decimal.NewFromInt(1)))

	fresh := New(store, WithClock(fixedClock(now)))
	require.NoError(t, fresh.SaveAsset(ctx, "fresh", decimal.NewFromInt(1)))
	require.NoError(t, store.Set(ctx, domain.CacheKey("broken"), []byte("garbage")))
	require.NoError(t, store.Set(ctx, "unrelated", []byte("garbage")))

	removed, err := fresh.Sweep(ctx, DefaultRetention)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{domain.CacheKey("fresh"), "unrelated"}, keys)
}
