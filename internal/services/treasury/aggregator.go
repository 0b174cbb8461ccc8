// Package treasury aggregates reconciled balances, prices and tokens into
// treasury snapshots, keeps them cached and publishes them to subscribers.
package treasury

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/domain"
	"github.com/vadiminshakov/treasury/internal/events"
	"github.com/vadiminshakov/treasury/internal/services/pricer"
	"github.com/vadiminshakov/treasury/internal/services/reconciler"
	"github.com/vadiminshakov/treasury/internal/services/tokens"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State of the refresh state machine.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateSuccess  State = "success"
	StateFailed   State = "failed"
)

const refreshKey = "treasury_refresh"

// BalanceReconciler reconciles the balance of one asset.
type BalanceReconciler interface {
	Asset() domain.AssetSymbol
	Collect(ctx context.Context) []reconciler.Sample
	Resolve(samples []reconciler.Sample, cached decimal.Decimal) reconciler.Result
	Previous() decimal.Decimal
	Remember(amount decimal.Decimal)
}

// PriceOracle prices the major assets.
type PriceOracle interface {
	MajorPrices(ctx context.Context, cached domain.Prices) (domain.Prices, pricer.Source)
	Last() domain.Prices
	Remember(p domain.Prices)
}

// TokenEnumerator lists and values token holdings of an owner.
type TokenEnumerator interface {
	Enumerate(ctx context.Context, owner string) tokens.Enumeration
}

// SnapshotCache persists snapshots and per-asset balances.
type SnapshotCache interface {
	Load(ctx context.Context, address string) (domain.CacheEntry, error)
	Save(ctx context.Context, address string, s domain.TreasurySnapshot) error
	LoadAsset(ctx context.Context, address string) (domain.AssetCacheEntry, error)
	SaveAsset(ctx context.Context, address string, balance decimal.Decimal) error
	Sweep(ctx context.Context, retention time.Duration) (int, error)
}

// Config timing and addressing of the aggregator.
type Config struct {
	// TreasuryAddress keys the main cache entry and owns the token holdings.
	TreasuryAddress string
	// AssetAddresses key per-asset last known good balances. Assets whose
	// address equals TreasuryAddress are covered by the main entry.
	AssetAddresses map[domain.AssetSymbol]string

	RefreshInterval time.Duration
	Staleness       time.Duration
	CacheRetention  time.Duration

	PriceTimeout time.Duration
	BTCTimeout   time.Duration
	ETHTimeout   time.Duration
	SOLTimeout   time.Duration
	ProxyTimeout time.Duration
	CacheTimeout time.Duration
}

// DefaultConfig returns production timings.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 5 * time.Minute,
		Staleness:       5 * time.Minute,
		CacheRetention:  24 * time.Hour,
		PriceTimeout:    30 * time.Second,
		BTCTimeout:      45 * time.Second,
		ETHTimeout:      45 * time.Second,
		SOLTimeout:      60 * time.Second,
		ProxyTimeout:    8 * time.Second,
		CacheTimeout:    5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	durations := []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&c.RefreshInterval, def.RefreshInterval},
		{&c.Staleness, def.Staleness},
		{&c.CacheRetention, def.CacheRetention},
		{&c.PriceTimeout, def.PriceTimeout},
		{&c.BTCTimeout, def.BTCTimeout},
		{&c.ETHTimeout, def.ETHTimeout},
		{&c.SOLTimeout, def.SOLTimeout},
		{&c.ProxyTimeout, def.ProxyTimeout},
		{&c.CacheTimeout, def.CacheTimeout},
	}
	for _, d := range durations {
		if *d.v <= 0 {
			*d.v = d.def
		}
	}

	return c
}

func (c Config) assetTimeout(asset domain.AssetSymbol) time.Duration {
	switch asset {
	case domain.AssetBTC:
		return c.BTCTimeout
	case domain.AssetETH:
		return c.ETHTimeout
	default:
		return c.SOLTimeout
	}
}

// Deps collaborators of the aggregator. Reconcilers must cover BTC, ETH and SOL;
// Tokens, Cache, Proxy and Broadcaster are optional.
type Deps struct {
	Reconcilers []BalanceReconciler
	Oracle      PriceOracle
	Tokens      TokenEnumerator
	Cache       SnapshotCache
	Proxy       BalanceProxy
	Broadcaster *events.SnapshotBroadcaster
}

// Option configures Aggregator.
type Option func(*Aggregator)

func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock replaces the wall clock, used by tests.
func WithClock(c Clock) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.clock = c
		}
	}
}

// Aggregator owns the treasury snapshot. Reads never block on upstreams.
type Aggregator struct {
	cfg         Config
	reconcilers map[domain.AssetSymbol]BalanceReconciler
	oracle      PriceOracle
	tokens      TokenEnumerator
	cache       SnapshotCache
	proxy       BalanceProxy
	broadcaster *events.SnapshotBroadcaster
	clock       Clock
	logger      *zap.Logger

	group    singleflight.Group
	fetching atomic.Bool
	stopped  atomic.Bool

	mu       sync.RWMutex
	snapshot domain.TreasurySnapshot
	state    State

	// lifecycle orders cycle registration against Stop.
	lifecycle sync.Mutex
	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	loop      sync.WaitGroup
	cycles    sync.WaitGroup
}

// New creates an aggregator and loads the cached snapshot, if any.
func New(cfg Config, deps Deps, opts ...Option) (*Aggregator, error) {
	if deps.Oracle == nil {
		return nil, errors.New("price oracle is required")
	}

	a := &Aggregator{
		cfg:         cfg.withDefaults(),
		reconcilers: make(map[domain.AssetSymbol]BalanceReconciler, len(deps.Reconcilers)),
		oracle:      deps.Oracle,
		tokens:      deps.Tokens,
		cache:       deps.Cache,
		proxy:       deps.Proxy,
		broadcaster: deps.Broadcaster,
		clock:       realClock{},
		logger:      zap.NewNop(),
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("component", "treasury_aggregator"))

	for _, r := range deps.Reconcilers {
		a.reconcilers[r.Asset()] = r
	}
	for _, asset := range domain.MajorAssets {
		if _, ok := a.reconcilers[asset]; !ok {
			return nil, errors.Errorf("reconciler for %s is required", asset)
		}
	}

	if a.broadcaster == nil {
		a.broadcaster = events.NewSnapshotBroadcaster(0, a.logger)
	}

	a.loadFromCache()

	return a, nil
}

// Start runs an immediate forced refresh and then one every RefreshInterval
// until ctx is done or Stop is called.
func (a *Aggregator) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		a.cancel = cancel

		a.loop.Add(1)
		go a.run(runCtx)
	})
}

// Stop stops the timer and waits for the running cycle, if any.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		a.lifecycle.Lock()
		a.stopped.Store(true)
		a.lifecycle.Unlock()

		if a.cancel != nil {
			a.cancel()
		}
		a.loop.Wait()
		a.cycles.Wait()
	})
}

func (a *Aggregator) run(ctx context.Context) {
	defer a.loop.Done()

	a.sweepCache(ctx)

	ticker := a.clock.NewTicker(a.cfg.RefreshInterval)
	defer ticker.Stop()

	a.Refresh(ctx, true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			a.Refresh(ctx, true)
		}
	}
}

// Snapshot returns the best known snapshot without blocking.
func (a *Aggregator) Snapshot() domain.TreasurySnapshot {
	a.mu.RLock()
	s := a.snapshot.Clone()
	a.mu.RUnlock()

	s.IsFetching = a.fetching.Load()
	return s
}

// State returns the refresh state.
func (a *Aggregator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.state
}

// IsFetching reports whether a cycle is running.
func (a *Aggregator) IsFetching() bool {
	return a.fetching.Load()
}

// Refresh runs a cycle when forced, when there is no snapshot yet or when the
// snapshot is stale; otherwise it returns the current snapshot. Concurrent
// calls share one cycle. A caller whose ctx ends first gets the current
// snapshot while the cycle keeps running.
func (a *Aggregator) Refresh(ctx context.Context, force bool) domain.TreasurySnapshot {
	if !force && !a.stale() {
		return a.Snapshot()
	}
	if a.stopped.Load() {
		return a.Snapshot()
	}

	cycleCtx := context.WithoutCancel(ctx)
	ch := a.group.DoChan(refreshKey, func() (any, error) {
		if !a.beginCycle() {
			return a.Snapshot(), nil
		}
		defer a.cycles.Done()

		return a.safeCycle(cycleCtx), nil
	})

	select {
	case res := <-ch:
		s, _ := res.Val.(domain.TreasurySnapshot)
		return s
	case <-ctx.Done():
		return a.Snapshot()
	}
}

// Subscribe returns a channel receiving every published snapshot; the current
// one is delivered first when available.
func (a *Aggregator) Subscribe() chan domain.TreasurySnapshot {
	return a.broadcaster.Subscribe()
}

// Unsubscribe stops delivery and closes ch.
func (a *Aggregator) Unsubscribe(ch chan domain.TreasurySnapshot) {
	a.broadcaster.Unsubscribe(ch)
}

// SubscribeFunc calls fn for every published snapshot. The returned func unsubscribes.
func (a *Aggregator) SubscribeFunc(fn func(domain.TreasurySnapshot)) func() {
	return a.broadcaster.SubscribeFunc(fn)
}

// beginCycle registers a cycle unless the aggregator is stopped, so Stop never
// returns while a cycle can still touch the cache.
func (a *Aggregator) beginCycle() bool {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if a.stopped.Load() {
		return false
	}
	a.cycles.Add(1)
	return true
}

func (a *Aggregator) stale() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.snapshot.LastUpdated.IsZero() {
		return true
	}

	return a.snapshot.Age(a.clock.Now()) > a.cfg.Staleness
}

func (a *Aggregator) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}
