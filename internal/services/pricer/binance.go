package pricer

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/domain"
)

// BinancePricer reads prices from the Binance public ticker.
type BinancePricer struct {
	client *binance.Client
}

func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

func (p *BinancePricer) Name() string { return "binance" }

// GetPrice returns the latest price of the asset against USDT.
func (p *BinancePricer) GetPrice(ctx context.Context, asset domain.AssetSymbol) (decimal.Decimal, error) {
	prices, err := p.client.NewListPricesService().Symbol(usdtSymbol(asset)).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, fmt.Errorf("binance API returned empty prices for %s", asset)
	}

	return decimal.NewFromString(prices[0].Price)
}
