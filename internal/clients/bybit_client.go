package clients

import (
	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient creates a Bybit client, authenticated only when keys are provided.
func NewBybitClient(apiKey, apiSecret string) *bybit.Client {
	client := bybit.NewClient()
	if apiKey != "" && apiSecret != "" {
		client = client.WithAuth(apiKey, apiSecret)
	}

	return client
}
