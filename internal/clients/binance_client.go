package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient creates a Binance client. Market data endpoints work with empty keys.
func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	client := binance.NewClient(apiKey, apiSecret)
	return client
}
