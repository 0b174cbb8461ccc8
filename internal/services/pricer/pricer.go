// Package pricer provides USD prices of the treasury assets.
package pricer

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/domain"
)

// SpotSource returns USD prices keyed by CoinGecko id.
type SpotSource interface {
	FetchSpotPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

// Pricer returns the USD price of a single major asset.
type Pricer interface {
	Name() string
	GetPrice(ctx context.Context, asset domain.AssetSymbol) (decimal.Decimal, error)
}

func usdtSymbol(asset domain.AssetSymbol) string {
	return asset.String() + "USDT"
}
