package treasury

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/domain"
	"github.com/vadiminshakov/treasury/internal/metrics"
	"github.com/vadiminshakov/treasury/internal/services/reconciler"
	"github.com/vadiminshakov/treasury/internal/services/tokens"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// cycleData collects partial results of one cycle.
type cycleData struct {
	mu       sync.Mutex
	balances domain.Balances
	resolved map[domain.AssetSymbol]bool
	prices   domain.Prices
	priced   bool
	tokens   []domain.TokenHolding
	listed   bool
}

func (d *cycleData) setBalance(asset domain.AssetSymbol, amount decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.balances.Set(asset, amount)
	d.resolved[asset] = true
}

func (d *cycleData) setPrices(p domain.Prices) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.prices, d.priced = p, true
}

func (d *cycleData) setTokens(t []domain.TokenHolding) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tokens, d.listed = t, true
}

// safeCycle runs a cycle; a panic outside the guarded parts marks the cycle
// failed and republishes the best snapshot known at that point.
func (a *Aggregator) safeCycle(ctx context.Context) (s domain.TreasurySnapshot) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("treasury refresh panicked", zap.Any("panic", r))
			a.fetching.Store(false)
			a.setState(StateFailed)
			metrics.CyclesTotal.WithLabelValues(string(StateFailed)).Inc()
			s = a.Snapshot()
			a.broadcaster.Publish(s)
		}
	}()

	return a.runCycle(ctx)
}

// runCycle fetches everything and publishes the resulting snapshot. It never
// fails: missing parts fall back to previous, cached or zero values.
func (a *Aggregator) runCycle(ctx context.Context) domain.TreasurySnapshot {
	id := uuid.NewString()
	logger := a.logger.With(zap.String("cycle", id))
	start := a.clock.Now()

	a.fetching.Store(true)
	a.setState(StateFetching)
	logger.Info("treasury refresh started")

	cached := a.readCache(ctx, logger)
	data := &cycleData{resolved: make(map[domain.AssetSymbol]bool)}

	proxied := false
	if err := a.guard(logger, "proxy", func() { proxied = a.tryProxy(ctx, logger, data) })(); err != nil {
		data = &cycleData{resolved: make(map[domain.AssetSymbol]bool)}
	}

	failed := false
	if !proxied {
		failed = a.reconcileAll(ctx, logger, cached, data) != nil
	}

	snap := a.assemble(cached, data)

	state := StateSuccess
	if failed {
		state = StateFailed
	}

	a.mu.Lock()
	a.snapshot = snap
	a.state = state
	a.mu.Unlock()
	a.fetching.Store(false)

	if !failed {
		a.persist(ctx, logger, snap)
	}

	metrics.CyclesTotal.WithLabelValues(string(state)).Inc()
	metrics.CycleDuration.Observe(a.clock.Now().Sub(start).Seconds())
	metrics.TotalUSD.Set(snap.TotalUSD.InexactFloat64())

	logger.Info("treasury refresh finished",
		zap.String("state", string(state)),
		zap.String("btc", snap.Balances.BTC.String()),
		zap.String("eth", snap.Balances.ETH.String()),
		zap.String("sol", snap.Balances.SOL.String()),
		zap.String("total_usd", snap.TotalUSD.StringFixed(2)),
		zap.Int("tokens", len(snap.Tokens)),
	)

	out := a.Snapshot()
	a.broadcaster.Publish(out)

	return out
}

// tryProxy applies a pre-aggregated answer; on success direct reconciliation is skipped.
func (a *Aggregator) tryProxy(ctx context.Context, logger *zap.Logger, data *cycleData) bool {
	if a.proxy == nil {
		return false
	}

	pctx, cancel := context.WithTimeout(ctx, a.cfg.ProxyTimeout)
	defer cancel()

	ans, err := a.proxy.FetchTreasury(pctx)
	if err != nil {
		logger.Warn("treasury proxy failed, falling back to direct fetching", zap.Error(err))
		return false
	}

	current := a.Snapshot()
	balances, prices := ans.Apply(current.Balances, a.oracle.Last())
	for _, asset := range domain.MajorAssets {
		data.setBalance(asset, balances.Get(asset))
		a.reconcilers[asset].Remember(balances.Get(asset))
	}
	a.oracle.Remember(prices)
	data.setPrices(prices)
	data.setTokens(current.Tokens)

	logger.Info("treasury taken from proxy")
	return true
}

// reconcileAll fans out prices, balances and tokens. SOL waits for token
// sources because they report native SOL as extra samples.
func (a *Aggregator) reconcileAll(ctx context.Context, logger *zap.Logger, cached domain.CacheEntry, data *cycleData) error {
	var (
		g          errgroup.Group
		tokensDone = make(chan tokens.Enumeration, 1)
	)

	g.Go(a.guard(logger, "prices", func() {
		pctx, cancel := context.WithTimeout(ctx, a.cfg.PriceTimeout)
		defer cancel()

		prices, src := a.oracle.MajorPrices(pctx, cached.Prices)
		logger.Info("prices resolved", zap.String("source", string(src)))
		data.setPrices(prices)
	}))

	g.Go(a.guard(logger, "tokens", func() {
		var enum tokens.Enumeration
		defer func() { tokensDone <- enum }()

		if a.tokens == nil || a.cfg.TreasuryAddress == "" {
			return
		}

		tctx, cancel := context.WithTimeout(ctx, a.cfg.SOLTimeout)
		defer cancel()

		enum = a.tokens.Enumerate(tctx, a.cfg.TreasuryAddress)
		data.setTokens(enum.Tokens)
	}))

	for _, asset := range domain.MajorAssets {
		g.Go(a.guard(logger, asset.String(), func() {
			actx, cancel := context.WithTimeout(ctx, a.cfg.assetTimeout(asset))
			defer cancel()

			rec := a.reconcilers[asset]
			samples := rec.Collect(actx)

			if asset == domain.AssetSOL {
				select {
				case enum := <-tokensDone:
					for _, n := range enum.Native {
						if n.Amount.IsPositive() {
							samples = append(samples, reconciler.Sample{Source: n.Source, Amount: n.Amount})
						}
					}
				case <-actx.Done():
					logger.Warn("token sources did not report native SOL in time")
				}
			}

			res := rec.Resolve(samples, a.cachedBalance(ctx, logger, cached, asset))
			data.setBalance(asset, res.Amount)
		}))
	}

	return g.Wait()
}

// guard turns a panic in fn into an error so one broken part cannot take the
// cycle down.
func (a *Aggregator) guard(logger *zap.Logger, part string, fn func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("treasury refresh part panicked", zap.String("part", part), zap.Any("panic", r))
				err = errors.Errorf("%s panicked: %v", part, r)
			}
		}()
		fn()
		return nil
	}
}

// assemble builds the snapshot, filling parts that did not finish.
func (a *Aggregator) assemble(cached domain.CacheEntry, data *cycleData) domain.TreasurySnapshot {
	data.mu.Lock()
	defer data.mu.Unlock()

	current := a.Snapshot()

	balances := data.balances
	for _, asset := range domain.MajorAssets {
		if data.resolved[asset] {
			continue
		}
		balances.Set(asset, firstPositive(
			a.reconcilers[asset].Previous(),
			current.Balances.Get(asset),
			cached.Balances.Get(asset),
		))
	}

	prices := data.prices
	if !data.priced {
		prices = a.oracle.Last()
		if !prices.AnyPositive() {
			prices = cached.Prices
		}
	}

	holdings := data.tokens
	if !data.listed {
		holdings = current.Tokens
	}

	return domain.NewTreasurySnapshot(balances, prices, holdings, a.clock.Now())
}

func (a *Aggregator) readCache(ctx context.Context, logger *zap.Logger) domain.CacheEntry {
	if a.cache == nil || a.cfg.TreasuryAddress == "" {
		return domain.CacheEntry{}
	}

	cctx, cancel := context.WithTimeout(ctx, a.cfg.CacheTimeout)
	defer cancel()

	entry, err := a.cache.Load(cctx, a.cfg.TreasuryAddress)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Warn("treasury cache unreadable", zap.Error(err))
		}
		return domain.CacheEntry{}
	}

	return entry
}

// cachedBalance is the asset balance of the main entry or, when that holds
// nothing, the per-asset entry.
func (a *Aggregator) cachedBalance(ctx context.Context, logger *zap.Logger, cached domain.CacheEntry, asset domain.AssetSymbol) decimal.Decimal {
	if v := cached.Balances.Get(asset); v.IsPositive() {
		return v
	}

	address := a.assetCacheAddress(asset)
	if a.cache == nil || address == "" {
		return decimal.Zero
	}

	cctx, cancel := context.WithTimeout(ctx, a.cfg.CacheTimeout)
	defer cancel()

	entry, err := a.cache.LoadAsset(cctx, address)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Warn("asset cache unreadable", zap.String("asset", asset.String()), zap.Error(err))
		}
		return decimal.Zero
	}

	return entry.Balance
}

func (a *Aggregator) assetCacheAddress(asset domain.AssetSymbol) string {
	address := a.cfg.AssetAddresses[asset]
	if address == a.cfg.TreasuryAddress {
		return ""
	}
	return address
}

func (a *Aggregator) persist(ctx context.Context, logger *zap.Logger, s domain.TreasurySnapshot) {
	if a.cache == nil || a.cfg.TreasuryAddress == "" {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, a.cfg.CacheTimeout)
	defer cancel()

	if err := a.cache.Save(cctx, a.cfg.TreasuryAddress, s); err != nil {
		logger.Warn("failed to save treasury cache", zap.Error(err))
	}

	for _, asset := range domain.MajorAssets {
		address := a.assetCacheAddress(asset)
		if address == "" {
			continue
		}
		if err := a.cache.SaveAsset(cctx, address, s.Balances.Get(asset)); err != nil {
			logger.Warn("failed to save asset cache", zap.String("asset", asset.String()), zap.Error(err))
		}
	}
}

// loadFromCache seeds the snapshot, previous balances and last prices.
func (a *Aggregator) loadFromCache() {
	if a.cache == nil || a.cfg.TreasuryAddress == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.CacheTimeout)
	defer cancel()

	entry, err := a.cache.Load(ctx, a.cfg.TreasuryAddress)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			a.logger.Warn("treasury cache unreadable", zap.Error(err))
		}
		return
	}

	for _, asset := range domain.MajorAssets {
		entry.Balances.Set(asset, a.cachedBalance(ctx, a.logger, entry, asset))
		a.reconcilers[asset].Remember(entry.Balances.Get(asset))
	}
	a.oracle.Remember(entry.Prices)

	snap := entry.Snapshot()

	a.mu.Lock()
	a.snapshot = snap
	a.mu.Unlock()

	a.broadcaster.Publish(snap.Clone())
	a.logger.Info("treasury loaded from cache",
		zap.Time("last_updated", snap.LastUpdated),
		zap.String("total_usd", snap.TotalUSD.StringFixed(2)),
	)
}

func (a *Aggregator) sweepCache(ctx context.Context) {
	if a.cache == nil {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, a.cfg.CacheTimeout)
	defer cancel()

	removed, err := a.cache.Sweep(cctx, a.cfg.CacheRetention)
	if err != nil {
		a.logger.Warn("cache sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		a.logger.Info("cache swept", zap.Int("removed", removed))
	}
}

func firstPositive(values ...decimal.Decimal) decimal.Decimal {
	for _, v := range values {
		if v.IsPositive() {
			return v
		}
	}
	return decimal.Zero
}
