package domain

import (
	"github.com/shopspring/decimal"
)

const (
	// NativeSOLMint wrapped SOL mint, reported by indexers for the native balance.
	NativeSOLMint = "So11111111111111111111111111111111111111112"
	// NetWorthMint identifies the provider computed account net worth pseudo-token.
	NetWorthMint   = "NET_WORTH_TOKEN"
	NetWorthSymbol = "NET_WORTH"
)

// TokenHolding SPL token held by the treasury.
// RawAmount is an integer amount in base units.
type TokenHolding struct {
	Mint      string          `json:"mint"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	RawAmount decimal.Decimal `json:"rawAmount"`
	Decimals  uint8           `json:"decimals"`
	USDValue  decimal.Decimal `json:"usdValue"`
	LogoURI   string          `json:"logoURI,omitempty"`
	PriceID   string          `json:"coingeckoId,omitempty"`
}

// NewTokenHoldingFromUI builds a holding from a display amount, scaling it to base units.
func NewTokenHoldingFromUI(mint, symbol, name string, uiAmount decimal.Decimal, decimals uint8) TokenHolding {
	return TokenHolding{
		Mint:      mint,
		Symbol:    symbol,
		Name:      name,
		RawAmount: uiAmount.Shift(int32(decimals)).Truncate(0),
		Decimals:  decimals,
	}
}

// NewNetWorthToken creates the pseudo-token carrying an account's total USD value.
func NewNetWorthToken(source string, usdValue decimal.Decimal) TokenHolding {
	return TokenHolding{
		Mint:      NetWorthMint,
		Symbol:    NetWorthSymbol,
		Name:      "Total Account Value (" + source + ")",
		RawAmount: decimal.NewFromInt(1),
		USDValue:  usdValue,
	}
}

// UIAmount returns RawAmount scaled by Decimals.
func (t TokenHolding) UIAmount() decimal.Decimal {
	return t.RawAmount.Shift(-int32(t.Decimals))
}

// IsNetWorth reports whether the holding is the net worth pseudo-token.
func (t TokenHolding) IsNetWorth() bool {
	return t.Mint == NetWorthMint
}

// MergeHoldings merges token lists listed in provider priority order.
// Holdings are keyed by mint: the first non-zero amount wins, the last positive
// valuation wins. Amounts of the same mint are never summed.
func MergeHoldings(lists ...[]TokenHolding) []TokenHolding {
	var (
		order  []string
		merged = make(map[string]TokenHolding)
	)

	for _, list := range lists {
		for _, h := range list {
			if h.Mint == "" {
				continue
			}

			cur, ok := merged[h.Mint]
			if !ok {
				merged[h.Mint] = h
				order = append(order, h.Mint)
				continue
			}

			if cur.RawAmount.IsZero() && !h.RawAmount.IsZero() {
				cur.RawAmount = h.RawAmount
				cur.Decimals = h.Decimals
			}
			if h.USDValue.IsPositive() {
				cur.USDValue = h.USDValue
			}
			if cur.Symbol == "" {
				cur.Symbol = h.Symbol
			}
			if cur.Name == "" {
				cur.Name = h.Name
			}
			if cur.LogoURI == "" {
				cur.LogoURI = h.LogoURI
			}
			if cur.PriceID == "" {
				cur.PriceID = h.PriceID
			}
			merged[h.Mint] = cur
		}
	}

	out := make([]TokenHolding, 0, len(order))
	for _, mint := range order {
		out = append(out, merged[mint])
	}

	return out
}

// NetWorth returns the positive value of the net worth pseudo-token, if any.
func NetWorth(tokens []TokenHolding) (decimal.Decimal, bool) {
	for _, t := range tokens {
		if t.IsNetWorth() && t.USDValue.IsPositive() {
			return t.USDValue, true
		}
	}

	return decimal.Zero, false
}
