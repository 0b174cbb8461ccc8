// Package snapshotcache persists treasury snapshots and per-asset balances on top of a kv.Store.
package snapshotcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/domain"
	"github.com/vadiminshakov/treasury/internal/metrics"
	"github.com/vadiminshakov/treasury/internal/storage/kv"
	"go.uber.org/zap"
)

// DefaultRetention entries older than this are removed by Sweep.
const DefaultRetention = 24 * time.Hour

// Cache typed access to persisted treasury entries.
type Cache struct {
	store  kv.Store
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Cache)

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source used for timestamps and retention.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func New(store kv.Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "snapshot_cache"))

	return c
}

// Load returns the snapshot entry of address.
// A missing entry yields domain.ErrCacheMiss, an undecodable one domain.ErrCacheCorrupt
// and is deleted.
func (c *Cache) Load(ctx context.Context, address string) (domain.CacheEntry, error) {
	var entry domain.CacheEntry
	if err := c.load(ctx, address, &entry); err != nil {
		return domain.CacheEntry{}, err
	}

	return entry, nil
}

// Save persists s as the snapshot entry of address.
func (c *Cache) Save(ctx context.Context, address string, s domain.TreasurySnapshot) error {
	return c.save(ctx, address, domain.NewCacheEntry(s, address, c.now()))
}

// LoadAsset returns the last known good balance stored under an asset address.
func (c *Cache) LoadAsset(ctx context.Context, address string) (domain.AssetCacheEntry, error) {
	var entry domain.AssetCacheEntry
	if err := c.load(ctx, address, &entry); err != nil {
		return domain.AssetCacheEntry{}, err
	}

	return entry, nil
}

// SaveAsset stores a positive balance under an asset address; non-positive balances are ignored.
func (c *Cache) SaveAsset(ctx context.Context, address string, balance decimal.Decimal) error {
	if !balance.IsPositive() {
		return nil
	}

	return c.save(ctx, address, domain.AssetCacheEntry{
		Balance:   balance,
		Timestamp: c.now(),
		Address:   address,
	})
}

// Sweep removes entries older than retention and entries that cannot be decoded.
func (c *Cache) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}

	keys, err := c.store.Keys(ctx, domain.CacheKeyPrefix)
	if err != nil {
		return 0, errors.Wrap(err, "list cache keys")
	}

	cutoff := c.now().Add(-retention)
	removed := 0
	for _, key := range keys {
		payload, err := c.store.Get(ctx, key)
		if err != nil {
			continue
		}

		var head struct {
			Timestamp time.Time `json:"timestamp"`
		}
		if json.Unmarshal(payload, &head) == nil && !head.Timestamp.IsZero() && head.Timestamp.After(cutoff) {
			continue
		}

		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("failed to remove outdated cache entry", zap.String("key", key), zap.Error(err))
			continue
		}
		removed++
	}

	metrics.CacheOpsTotal.WithLabelValues("sweep", "ok").Add(float64(removed))
	if removed > 0 {
		c.logger.Info("cleared outdated cache entries", zap.Int("removed", removed))
	}

	return removed, nil
}

func (c *Cache) load(ctx context.Context, address string, out any) error {
	key := domain.CacheKey(address)

	payload, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			metrics.CacheOpsTotal.WithLabelValues("load", "miss").Inc()
			return domain.ErrCacheMiss
		}
		metrics.CacheOpsTotal.WithLabelValues("load", "error").Inc()
		return errors.Wrapf(err, "read cache entry %s", key)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		metrics.CacheOpsTotal.WithLabelValues("load", "corrupt").Inc()
		c.logger.Warn("corrupt cache entry evicted", zap.String("key", key), zap.Error(err))
		if delErr := c.store.Delete(ctx, key); delErr != nil {
			c.logger.Warn("failed to evict corrupt cache entry", zap.String("key", key), zap.Error(delErr))
		}
		return errors.Wrap(domain.ErrCacheCorrupt, err.Error())
	}

	metrics.CacheOpsTotal.WithLabelValues("load", "hit").Inc()
	return nil
}

func (c *Cache) save(ctx context.Context, address string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode cache entry")
	}

	if err := c.store.Set(ctx, domain.CacheKey(address), payload); err != nil {
		metrics.CacheOpsTotal.WithLabelValues("save", "error").Inc()
		return errors.Wrap(err, "write cache entry")
	}

	metrics.CacheOpsTotal.WithLabelValues("save", "ok").Inc()
	return nil
}
