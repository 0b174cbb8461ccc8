// Package domain defines core data structures of the treasury aggregator.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetSymbol native asset tracked by the treasury.
type AssetSymbol string

const (
	AssetBTC AssetSymbol = "BTC"
	AssetETH AssetSymbol = "ETH"
	AssetSOL AssetSymbol = "SOL"
)

// MajorAssets lists assets in the order they are reported.
var MajorAssets = []AssetSymbol{AssetBTC, AssetETH, AssetSOL}

// IsValid checks if the asset symbol is supported.
func (a AssetSymbol) IsValid() bool {
	switch a {
	case AssetBTC, AssetETH, AssetSOL:
		return true
	default:
		return false
	}
}

// CoinGeckoID returns the price oracle identifier of the asset.
func (a AssetSymbol) CoinGeckoID() string {
	switch a {
	case AssetBTC:
		return "bitcoin"
	case AssetETH:
		return "ethereum"
	case AssetSOL:
		return "solana"
	default:
		return ""
	}
}

func (a AssetSymbol) String() string {
	return string(a)
}

// AssetBalance amount of a native asset in whole units.
type AssetBalance struct {
	Amount decimal.Decimal
	Unit   AssetSymbol
}

// PriceQuote USD price observation.
type PriceQuote struct {
	Asset      string
	USDPrice   decimal.Decimal
	ObservedAt time.Time
}

// Valid reports whether the quote may be used for valuation.
func (q PriceQuote) Valid() bool {
	return q.USDPrice.IsPositive()
}

// Balances holds one reconciled amount per major asset.
type Balances struct {
	BTC decimal.Decimal `json:"btc"`
	ETH decimal.Decimal `json:"eth"`
	SOL decimal.Decimal `json:"sol"`
}

// Get returns the balance of the given asset.
func (b Balances) Get(asset AssetSymbol) decimal.Decimal {
	switch asset {
	case AssetBTC:
		return b.BTC
	case AssetETH:
		return b.ETH
	case AssetSOL:
		return b.SOL
	default:
		return decimal.Zero
	}
}

// Set stores the balance of the given asset.
func (b *Balances) Set(asset AssetSymbol, amount decimal.Decimal) {
	switch asset {
	case AssetBTC:
		b.BTC = amount
	case AssetETH:
		b.ETH = amount
	case AssetSOL:
		b.SOL = amount
	}
}

// Prices holds USD spot prices of the major assets.
type Prices struct {
	BTC decimal.Decimal `json:"btc"`
	ETH decimal.Decimal `json:"eth"`
	SOL decimal.Decimal `json:"sol"`
}

// Get returns the price of the given asset.
func (p Prices) Get(asset AssetSymbol) decimal.Decimal {
	switch asset {
	case AssetBTC:
		return p.BTC
	case AssetETH:
		return p.ETH
	case AssetSOL:
		return p.SOL
	default:
		return decimal.Zero
	}
}

// Set stores the price of the given asset.
func (p *Prices) Set(asset AssetSymbol, price decimal.Decimal) {
	switch asset {
	case AssetBTC:
		p.BTC = price
	case AssetETH:
		p.ETH = price
	case AssetSOL:
		p.SOL = price
	}
}

// AllValid is true when every major price is strictly positive.
func (p Prices) AllValid() bool {
	return p.BTC.IsPositive() && p.ETH.IsPositive() && p.SOL.IsPositive()
}

// AnyPositive is true when at least one price is usable.
func (p Prices) AnyPositive() bool {
	return p.BTC.IsPositive() || p.ETH.IsPositive() || p.SOL.IsPositive()
}

// USDValues fiat valuation of each major asset.
type USDValues struct {
	BTC decimal.Decimal `json:"btc"`
	ETH decimal.Decimal `json:"eth"`
	SOL decimal.Decimal `json:"sol"`
}
