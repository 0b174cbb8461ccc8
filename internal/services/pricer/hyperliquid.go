package pricer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/domain"
)

// MidsReader is satisfied by *hyperliquid.Info.
type MidsReader interface {
	AllMids(ctx context.Context) (map[string]string, error)
}

// HyperliquidPricer reads mid prices from the Hyperliquid public Info API.
type HyperliquidPricer struct {
	info MidsReader
}

func NewHyperliquidPricer(info MidsReader) *HyperliquidPricer {
	return &HyperliquidPricer{info: info}
}

func (p *HyperliquidPricer) Name() string { return "hyperliquid" }

func (p *HyperliquidPricer) GetPrice(ctx context.Context, asset domain.AssetSymbol) (decimal.Decimal, error) {
	if p.info == nil {
		return decimal.Zero, fmt.Errorf("hyperliquid info client is nil")
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	// mids are keyed by base coin
	mid, ok := mids[asset.String()]
	if !ok || mid == "" {
		return decimal.Zero, fmt.Errorf("hyperliquid API returned empty mid price for %s", asset)
	}

	return decimal.NewFromString(mid)
}
