// Package tokens enumerates and values SPL token holdings of the treasury.
package tokens

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/domain"
	"go.uber.org/zap"
)

// TokenPricer prices CoinGecko ids, best effort.
type TokenPricer interface {
	TokenPrices(ctx context.Context, ids []string) map[string]decimal.Decimal
}

// NativeReport native SOL balance seen by a holdings source.
type NativeReport struct {
	Source string
	Amount decimal.Decimal
}

// Enumeration result of one enumeration.
type Enumeration struct {
	Tokens []domain.TokenHolding
	// Source names the list that won, or "merged".
	Source string
	Native []NativeReport
}

// Enumerator walks holdings sources in priority order.
type Enumerator struct {
	sources      []Source
	netWorth     NetWorthSource
	pricer       TokenPricer
	mergeSources bool
	logger       *zap.Logger
}

// Option configures Enumerator.
type Option func(*Enumerator)

// WithNetWorth enables the net worth pseudo-token.
func WithNetWorth(s NetWorthSource) Option {
	return func(e *Enumerator) {
		e.netWorth = s
	}
}

// WithMergedSources merges every non-empty list instead of stopping at the first one.
func WithMergedSources(merge bool) Option {
	return func(e *Enumerator) {
		e.mergeSources = merge
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Enumerator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEnumerator creates an enumerator over sources listed by priority.
func NewEnumerator(sources []Source, pricer TokenPricer, opts ...Option) *Enumerator {
	e := &Enumerator{
		sources: sources,
		pricer:  pricer,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "token_enumerator"))

	return e
}

// Enumerate lists, de-duplicates and values holdings of owner. It never fails:
// an empty enumeration is returned when every source is down.
func (e *Enumerator) Enumerate(ctx context.Context, owner string) Enumeration {
	var (
		wg       sync.WaitGroup
		netWorth decimal.Decimal
	)
	if e.netWorth != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := e.netWorth.NetWorth(ctx, owner)
			if err != nil {
				e.logger.Warn("net worth unavailable", zap.String("source", e.netWorth.Name()), zap.Error(err))
				return
			}
			netWorth = v
		}()
	}

	res := e.list(ctx, owner)
	res.Tokens = e.value(ctx, res.Tokens)

	wg.Wait()
	if netWorth.IsPositive() {
		res.Tokens = append(res.Tokens, domain.NewNetWorthToken(e.netWorth.Name(), netWorth))
	}

	e.logger.Info("tokens enumerated",
		zap.String("source", res.Source),
		zap.Int("tokens", len(res.Tokens)),
		zap.String("net_worth", netWorth.String()),
	)

	return res
}

func (e *Enumerator) list(ctx context.Context, owner string) Enumeration {
	var (
		res   Enumeration
		lists [][]domain.TokenHolding
	)

	for _, src := range e.sources {
		listing, err := src.ListHoldings(ctx, owner)
		if err != nil {
			e.logger.Warn("holdings source unavailable", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		if listing.NativeSOL.IsPositive() {
			res.Native = append(res.Native, NativeReport{Source: src.Name(), Amount: listing.NativeSOL})
		}
		if len(listing.Tokens) == 0 {
			continue
		}

		if !e.mergeSources {
			res.Tokens = domain.MergeHoldings(listing.Tokens)
			res.Source = src.Name()
			return res
		}
		lists = append(lists, listing.Tokens)
	}

	if len(lists) > 0 {
		res.Tokens = domain.MergeHoldings(lists...)
		res.Source = "merged"
	}

	return res
}

func (e *Enumerator) value(ctx context.Context, holdings []domain.TokenHolding) []domain.TokenHolding {
	if len(holdings) == 0 {
		return holdings
	}

	var ids []string
	for i := range holdings {
		if id, ok := PriceID(holdings[i].Symbol); ok {
			holdings[i].PriceID = id
			ids = append(ids, id)
		}
	}

	var prices map[string]decimal.Decimal
	if len(ids) > 0 && e.pricer != nil {
		prices = e.pricer.TokenPrices(ctx, ids)
	}

	for i := range holdings {
		price, ok := prices[holdings[i].PriceID]
		if !ok || !price.IsPositive() {
			holdings[i].USDValue = decimal.Zero
			continue
		}
		holdings[i].USDValue = holdings[i].UIAmount().Mul(price).Round(2)
	}

	return holdings
}
