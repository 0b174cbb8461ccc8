package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CacheKeyPrefix prefixes every persisted treasury entry.
const CacheKeyPrefix = "treasury_balance_"

// CacheKey builds the persisted key of an address.
func CacheKey(address string) string {
	return CacheKeyPrefix + address
}

// CacheEntry persisted form of a snapshot.
type CacheEntry struct {
	Balances    Balances       `json:"balances"`
	Prices      Prices         `json:"prices"`
	Tokens      []TokenHolding `json:"tokens"`
	LastUpdated time.Time      `json:"lastUpdated"`
	Timestamp   time.Time      `json:"timestamp"`
	Address     string         `json:"address"`
}

// NewCacheEntry converts a snapshot into its persisted form.
func NewCacheEntry(s TreasurySnapshot, address string, savedAt time.Time) CacheEntry {
	return CacheEntry{
		Balances:    s.Balances,
		Prices:      s.Prices,
		Tokens:      append([]TokenHolding(nil), s.Tokens...),
		LastUpdated: s.LastUpdated,
		Timestamp:   savedAt,
		Address:     address,
	}
}

// Snapshot rebuilds a snapshot flagged as coming from cache.
func (e CacheEntry) Snapshot() TreasurySnapshot {
	s := NewTreasurySnapshot(e.Balances, e.Prices, e.Tokens, e.LastUpdated)
	s.IsFromCache = true
	return s
}

// AssetCacheEntry last known good balance of a single asset address.
type AssetCacheEntry struct {
	Balance   decimal.Decimal `json:"balance"`
	Timestamp time.Time       `json:"timestamp"`
	Address   string          `json:"address"`
}
