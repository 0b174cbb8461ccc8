package treasury

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/clients"
	"github.com/vadiminshakov/treasury/internal/domain"
)

// ProxyAnswer balances and prices reported by an upstream treasury endpoint.
// Nil fields were absent from the payload.
type ProxyAnswer struct {
	Balances struct {
		BTC *decimal.Decimal `json:"btc"`
		ETH *decimal.Decimal `json:"eth"`
		SOL *decimal.Decimal `json:"sol"`
	} `json:"balances"`
	Prices *struct {
		BTC decimal.Decimal `json:"btc"`
		ETH decimal.Decimal `json:"eth"`
		SOL decimal.Decimal `json:"sol"`
	} `json:"prices"`
}

// Apply overlays the answer on current values: present balances replace,
// positive prices replace.
func (p ProxyAnswer) Apply(balances domain.Balances, prices domain.Prices) (domain.Balances, domain.Prices) {
	if p.Balances.BTC != nil {
		balances.BTC = *p.Balances.BTC
	}
	if p.Balances.ETH != nil {
		balances.ETH = *p.Balances.ETH
	}
	if p.Balances.SOL != nil {
		balances.SOL = *p.Balances.SOL
	}

	if p.Prices != nil {
		for asset, v := range map[domain.AssetSymbol]decimal.Decimal{
			domain.AssetBTC: p.Prices.BTC,
			domain.AssetETH: p.Prices.ETH,
			domain.AssetSOL: p.Prices.SOL,
		} {
			if v.IsPositive() {
				prices.Set(asset, v)
			}
		}
	}

	return balances, prices
}

func (p ProxyAnswer) empty() bool {
	return p.Balances.BTC == nil && p.Balances.ETH == nil && p.Balances.SOL == nil
}

// BalanceProxy fetches pre-aggregated treasury data.
type BalanceProxy interface {
	FetchTreasury(ctx context.Context) (ProxyAnswer, error)
}

// HTTPProxy reads a treasury endpoint serving the /api/treasury payload.
type HTTPProxy struct {
	http *clients.HTTPClient
	url  string
}

func NewHTTPProxy(url string, http *clients.HTTPClient) *HTTPProxy {
	return &HTTPProxy{http: http, url: url}
}

func (p *HTTPProxy) FetchTreasury(ctx context.Context) (ProxyAnswer, error) {
	var ans ProxyAnswer
	if err := p.http.GetJSON(ctx, p.url, nil, &ans); err != nil {
		return ProxyAnswer{}, domain.Unavailable(p.http.Source(), err)
	}
	if ans.empty() {
		return ProxyAnswer{}, domain.Unavailable(p.http.Source(), errors.New("no balances in proxy answer"))
	}

	return ans, nil
}
