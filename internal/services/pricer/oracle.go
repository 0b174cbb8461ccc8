package pricer

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/domain"
	"github.com/vadiminshakov/treasury/internal/metrics"
	"go.uber.org/zap"
)

// Source tier that produced major asset prices.
type Source string

const (
	SourceLive     Source = "coingecko"
	SourceExchange Source = "exchange"
	SourceMemory   Source = "memory"
	SourceCache    Source = "cache"
	SourceNone     Source = "none"
)

// Oracle prices major assets with fallbacks and values tokens best effort.
type Oracle struct {
	live      SpotSource
	exchanges []Pricer
	logger    *zap.Logger

	mu   sync.Mutex
	last domain.Prices
}

// NewOracle creates an oracle. exchanges are tried in order when live prices fail.
func NewOracle(live SpotSource, exchanges []Pricer, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Oracle{
		live:      live,
		exchanges: exchanges,
		logger:    logger.With(zap.String("component", "price_oracle")),
	}
}

// MajorPrices returns BTC, ETH and SOL prices. Live tiers must price all three
// assets; otherwise the last in-memory prices, then cached, are returned when any
// of them is positive.
func (o *Oracle) MajorPrices(ctx context.Context, cached domain.Prices) (domain.Prices, Source) {
	prices, err := o.fetchLive(ctx)
	if err == nil {
		o.remember(prices)
		return o.done(prices, SourceLive)
	}
	o.logger.Warn("live prices unavailable", zap.Error(err))

	for _, ex := range o.exchanges {
		prices, err := o.fetchExchange(ctx, ex)
		if err == nil {
			o.remember(prices)
			o.logger.Info("prices taken from exchange", zap.String("exchange", ex.Name()))
			return o.done(prices, SourceExchange)
		}
		o.logger.Warn("exchange prices unavailable", zap.String("exchange", ex.Name()), zap.Error(err))
	}

	if last := o.Last(); last.AnyPositive() {
		o.logger.Warn("using last known prices")
		return o.done(last, SourceMemory)
	}

	if cached.AnyPositive() {
		o.logger.Warn("using cached prices")
		o.remember(cached)
		return o.done(cached, SourceCache)
	}

	o.logger.Error("no prices available")
	return o.done(domain.Prices{}, SourceNone)
}

// TokenPrices returns positive prices for ids. Failures yield an empty map.
func (o *Oracle) TokenPrices(ctx context.Context, ids []string) map[string]decimal.Decimal {
	if o.live == nil || len(ids) == 0 {
		return map[string]decimal.Decimal{}
	}

	prices, err := o.live.FetchSpotPrices(ctx, ids)
	if err != nil {
		o.logger.Warn("token prices unavailable", zap.Error(err))
		return map[string]decimal.Decimal{}
	}

	return prices
}

// Last returns the last accepted prices.
func (o *Oracle) Last() domain.Prices {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.last
}

// Remember stores prices obtained elsewhere, such as a proxy answer.
func (o *Oracle) Remember(p domain.Prices) {
	if p.AnyPositive() {
		o.remember(p)
	}
}

func (o *Oracle) remember(p domain.Prices) {
	o.mu.Lock()
	o.last = p
	o.mu.Unlock()
}

func (o *Oracle) done(p domain.Prices, src Source) (domain.Prices, Source) {
	metrics.PriceSourceTotal.WithLabelValues(string(src)).Inc()
	return p, src
}

func (o *Oracle) fetchLive(ctx context.Context) (domain.Prices, error) {
	if o.live == nil {
		return domain.Prices{}, errors.New("no live price source")
	}

	ids := make([]string, 0, len(domain.MajorAssets))
	for _, a := range domain.MajorAssets {
		ids = append(ids, a.CoinGeckoID())
	}

	quotes, err := o.live.FetchSpotPrices(ctx, ids)
	if err != nil {
		return domain.Prices{}, err
	}

	var p domain.Prices
	for _, a := range domain.MajorAssets {
		p.Set(a, quotes[a.CoinGeckoID()])
	}
	if !p.AllValid() {
		return domain.Prices{}, errors.Wrap(domain.ErrInvalidPriceData, "coingecko")
	}

	return p, nil
}

func (o *Oracle) fetchExchange(ctx context.Context, ex Pricer) (domain.Prices, error) {
	var p domain.Prices
	for _, a := range domain.MajorAssets {
		price, err := ex.GetPrice(ctx, a)
		if err != nil {
			return domain.Prices{}, errors.Wrapf(err, "%s %s", ex.Name(), a)
		}
		if !price.IsPositive() {
			return domain.Prices{}, errors.Wrapf(domain.ErrInvalidPriceData, "%s %s", ex.Name(), a)
		}
		p.Set(a, price)
	}

	return p, nil
}
