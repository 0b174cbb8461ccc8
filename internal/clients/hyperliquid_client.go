package clients

import (
	"context"

	hyperliquid "github.com/sonirico/go-hyperliquid"
)

// DefaultHyperliquidURL is the public mainnet API.
const DefaultHyperliquidURL = "https://api.hyperliquid.xyz"

// NewHyperliquidInfo creates a read-only Info client. No key is needed.
func NewHyperliquidInfo(ctx context.Context, baseURL string) *hyperliquid.Info {
	if baseURL == "" {
		baseURL = DefaultHyperliquidURL
	}

	return hyperliquid.NewInfo(ctx, baseURL, true, nil, nil, nil)
}
