package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeHoldings(t *testing.T) {
	t.Run("first non-zero amount wins", func(t *testing.T) {
		indexer := []TokenHolding{{Mint: "m1", Symbol: "USDC", RawAmount: decimal.Zero, Decimals: 6}}
		scan := []TokenHolding{{Mint: "m1", Symbol: "USDC", RawAmount: decimal.NewFromInt(5_000_000), Decimals: 6}}
		other := []TokenHolding{{Mint: "m1", Symbol: "USDC", RawAmount: decimal.NewFromInt(7_000_000), Decimals: 6}}

		merged := MergeHoldings(indexer, scan, other)

		require.Len(t, merged, 1)
		assert.True(t, merged[0].RawAmount.Equal(decimal.NewFromInt(5_000_000)))
	})

	t.Run("valuation is last writer and never summed", func(t *testing.T) {
		a := []TokenHolding{{Mint: "m1", RawAmount: decimal.NewFromInt(1), USDValue: decimal.NewFromInt(10)}}
		b := []TokenHolding{{Mint: "m1", RawAmount: decimal.NewFromInt(1), USDValue: decimal.NewFromInt(12)}}

		merged := MergeHoldings(a, b)

		require.Len(t, merged, 1)
		assert.True(t, merged[0].USDValue.Equal(decimal.NewFromInt(12)))
		assert.True(t, merged[0].RawAmount.Equal(decimal.NewFromInt(1)))
	})

	t.Run("keeps first seen order and skips empty mints", func(t *testing.T) {
		merged := MergeHoldings(
			[]TokenHolding{{Mint: "b"}, {Mint: ""}, {Mint: "a"}},
			[]TokenHolding{{Mint: "c"}, {Mint: "b"}},
		)

		require.Len(t, merged, 3)
		assert.Equal(t, "b", merged[0].Mint)
		assert.Equal(t, "a", merged[1].Mint)
		assert.Equal(t, "c", merged[2].Mint)
	})
}

func TestTokenHolding_UIAmount(t *testing.T) {
	h := TokenHolding{RawAmount: decimal.NewFromInt(1_500_000), Decimals: 6}
	assert.True(t, h.UIAmount().Equal(decimal.RequireFromString("1.5")))

	ui := NewTokenHoldingFromUI("m", "USDC", "USD Coin", decimal.RequireFromString("2.25"), 6)
	assert.True(t, ui.RawAmount.Equal(decimal.NewFromInt(2_250_000)))
	assert.True(t, ui.UIAmount().Equal(decimal.RequireFromString("2.25")))
}

func TestNetWorth(t *testing.T) {
	_, ok := NetWorth([]TokenHolding{{Mint: "a", USDValue: decimal.NewFromInt(5)}})
	assert.False(t, ok)

	_, ok = NetWorth([]TokenHolding{NewNetWorthToken("x", decimal.Zero)})
	assert.False(t, ok)

	v, ok := NetWorth([]TokenHolding{NewNetWorthToken("x", decimal.NewFromInt(42))})
	assert.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(42)))
}

func TestUnavailable(t *testing.T) {
	err := Unavailable("blockstream", errors.New("status 502"))

	assert.True(t, errors.Is(err, ErrAdapterUnavailable))
	assert.Contains(t, err.Error(), "blockstream")
	assert.Contains(t, err.Error(), "status 502")
}

func TestAssetSymbol(t *testing.T) {
	assert.True(t, AssetBTC.IsValid())
	assert.False(t, AssetSymbol("DOGE").IsValid())
	assert.Equal(t, "solana", AssetSOL.CoinGeckoID())

	var b Balances
	b.Set(AssetETH, decimal.NewFromInt(3))
	assert.True(t, b.Get(AssetETH).Equal(decimal.NewFromInt(3)))
}
