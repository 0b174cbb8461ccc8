package pricer

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/clients"
)

// CoinGecko reads the simple/price endpoint.
type CoinGecko struct {
	http *clients.HTTPClient
}

// NewCoinGecko creates the source. The client is expected to carry the demo API key header when one is configured.
func NewCoinGecko(http *clients.HTTPClient) *CoinGecko {
	return &CoinGecko{http: http}
}

// FetchSpotPrices returns positive USD prices for the requested ids.
// Ids missing from the answer or priced at zero are omitted.
func (c *CoinGecko) FetchSpotPrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	var resp map[string]map[string]decimal.Decimal
	err := c.http.GetJSON(ctx, "/simple/price", map[string]string{
		"ids":           strings.Join(ids, ","),
		"vs_currencies": "usd",
	}, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "coingecko simple price")
	}

	prices := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		quote, ok := resp[id]
		if !ok {
			continue
		}
		if usd, ok := quote["usd"]; ok && usd.IsPositive() {
			prices[id] = usd
		}
	}

	return prices, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)

	return out
}
