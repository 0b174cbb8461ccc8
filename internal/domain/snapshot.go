package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const usdPlaces = 2

// TreasurySnapshot aggregated treasury state produced by one reconciliation cycle.
// Invariant: TotalUSD == USDValues.BTC + USDValues.ETH + USDValues.SOL + TokensUSDValue.
type TreasurySnapshot struct {
	Balances       Balances        `json:"balances"`
	Prices         Prices          `json:"prices"`
	USDValues      USDValues       `json:"usdValues"`
	Tokens         []TokenHolding  `json:"tokens"`
	TokensUSDValue decimal.Decimal `json:"tokensUsdValue"`
	TotalUSD       decimal.Decimal `json:"totalUsd"`
	LastUpdated    time.Time       `json:"lastUpdated"`
	IsFromCache    bool            `json:"isFromCache"`
	IsFetching     bool            `json:"isFetching"`
}

// NewTreasurySnapshot values balances and tokens at the given prices.
//
// When tokens contain a positive net worth pseudo-token, that value replaces the
// SOL-side valuation (native SOL plus SPL tokens) and TokensUSDValue is zero.
func NewTreasurySnapshot(balances Balances, prices Prices, tokens []TokenHolding, lastUpdated time.Time) TreasurySnapshot {
	s := TreasurySnapshot{
		Balances:    balances,
		Prices:      prices,
		Tokens:      append([]TokenHolding(nil), tokens...),
		LastUpdated: lastUpdated,
	}

	s.USDValues = USDValues{
		BTC: valuate(balances.BTC, prices.BTC),
		ETH: valuate(balances.ETH, prices.ETH),
		SOL: valuate(balances.SOL, prices.SOL),
	}

	tokensUSD := decimal.Zero
	for _, t := range s.Tokens {
		if t.IsNetWorth() || !t.USDValue.IsPositive() {
			continue
		}
		tokensUSD = tokensUSD.Add(t.USDValue)
	}
	s.TokensUSDValue = tokensUSD.Round(usdPlaces)

	if netWorth, ok := NetWorth(s.Tokens); ok {
		s.USDValues.SOL = netWorth.Round(usdPlaces)
		s.TokensUSDValue = decimal.Zero
	}

	s.TotalUSD = s.USDValues.BTC.
		Add(s.USDValues.ETH).
		Add(s.USDValues.SOL).
		Add(s.TokensUSDValue)

	return s
}

// Clone returns a deep copy safe to hand out to readers.
func (s TreasurySnapshot) Clone() TreasurySnapshot {
	s.Tokens = append([]TokenHolding(nil), s.Tokens...)
	return s
}

// IsEmpty true when the snapshot carries no balance at all.
func (s TreasurySnapshot) IsEmpty() bool {
	return s.LastUpdated.IsZero() && s.Balances.BTC.IsZero() && s.Balances.ETH.IsZero() && s.Balances.SOL.IsZero()
}

// Age returns time elapsed since the snapshot was produced.
func (s TreasurySnapshot) Age(now time.Time) time.Duration {
	if s.LastUpdated.IsZero() {
		return 0
	}
	return now.Sub(s.LastUpdated)
}

func valuate(amount, price decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || !price.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(price).Round(usdPlaces)
}
