// Package app wires configuration into a running treasury service.
package app

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/treasury/config"
	"github.com/vadiminshakov/treasury/internal/clients"
	"github.com/vadiminshakov/treasury/internal/domain"
	"github.com/vadiminshakov/treasury/internal/events"
	"github.com/vadiminshakov/treasury/internal/services/providers"
	"github.com/vadiminshakov/treasury/internal/services/reconciler"
	"github.com/vadiminshakov/treasury/internal/services/treasury"
	"github.com/vadiminshakov/treasury/internal/storage/kv"
	"github.com/vadiminshakov/treasury/internal/storage/snapshotcache"
	"github.com/vadiminshakov/treasury/internal/web"
	"github.com/vadiminshakov/treasury/pkg/retrier"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App is the assembled service.
type App struct {
	cfg        config.Config
	store      kv.Store
	aggregator *treasury.Aggregator
	server     *web.Server
	logger     *zap.Logger
}

// New builds every component described by cfg. The cached snapshot, if any, is
// loaded before New returns.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	store, err := OpenStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}

	f := sourceFactory{cfg: cfg, logger: logger}
	rt := retrier.New(
		retrier.WithMaxAttempts(cfg.Retry.MaxAttempts),
		retrier.WithBaseDelay(cfg.Retry.BaseDelay),
		retrier.WithAttemptTimeout(cfg.Retry.AttemptTimeout),
		retrier.WithLogger(logger),
	)
	th := reconciler.Thresholds{
		ZeroQuorum:        cfg.Thresholds.ZeroQuorum,
		StatsMinSamples:   cfg.Thresholds.StatsMinSamples,
		OutlierMinSamples: cfg.Thresholds.OutlierMinSamples,
		OutlierSigma:      cfg.Thresholds.OutlierSigma,
		MinStdDev:         cfg.Thresholds.MinStdDev,
	}
	newReconciler := func(asset domain.AssetSymbol, address string, adapters []providers.Adapter) treasury.BalanceReconciler {
		logger.Info("balance adapters configured", zap.String("asset", asset.String()), zap.Int("count", len(adapters)))
		return reconciler.New(asset, address, adapters,
			reconciler.WithThresholds(th),
			reconciler.WithRetrier(rt),
			reconciler.WithLogger(logger),
		)
	}

	solRPCs := f.solanaRPCs()
	oracle := f.oracle(ctx)
	// BTC balances are summed over every address, keyed by the first one
	btcKey := cfg.BTCAddresses[0]

	deps := treasury.Deps{
		Reconcilers: []treasury.BalanceReconciler{
			newReconciler(domain.AssetBTC, btcKey, f.btcAdapters()),
			newReconciler(domain.AssetETH, cfg.ETHAddress, f.ethAdapters(ctx)),
			newReconciler(domain.AssetSOL, cfg.SOLAddress, f.solAdapters(solRPCs)),
		},
		Oracle:      oracle,
		Tokens:      f.tokenEnumerator(solRPCs, oracle),
		Cache:       snapshotcache.New(store, snapshotcache.WithLogger(logger)),
		Broadcaster: events.NewSnapshotBroadcaster(0, logger),
	}
	if cfg.ProxyURL != "" {
		deps.Proxy = treasury.NewHTTPProxy(cfg.ProxyURL, clients.NewHTTPClient("treasury-proxy", "", clients.WithTimeout(cfg.ProxyTimeout)))
	}

	agg, err := treasury.New(treasury.Config{
		TreasuryAddress: cfg.SOLAddress,
		AssetAddresses: map[domain.AssetSymbol]string{
			domain.AssetBTC: btcKey,
			domain.AssetETH: cfg.ETHAddress,
			domain.AssetSOL: cfg.SOLAddress,
		},
		RefreshInterval: cfg.RefreshInterval,
		Staleness:       cfg.Staleness,
		CacheRetention:  cfg.CacheRetention,
		PriceTimeout:    cfg.PriceTimeout,
		BTCTimeout:      cfg.BTCTimeout,
		ETHTimeout:      cfg.ETHTimeout,
		SOLTimeout:      cfg.SOLTimeout,
		ProxyTimeout:    cfg.ProxyTimeout,
	}, deps, treasury.WithLogger(logger))
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "create aggregator")
	}

	a := &App{cfg: cfg, store: store, aggregator: agg, logger: logger}
	if cfg.Web.Enabled {
		a.server = web.NewServer(cfg.Web.Addr, agg, logger)
		a.server.AllowOrigins = cfg.Web.AllowOrigins
	}

	return a, nil
}

// Aggregator returns the treasury aggregator.
func (a *App) Aggregator() *treasury.Aggregator {
	return a.aggregator
}

// Run starts the refresh loop and the web server and blocks until ctx is done
// or the server fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.aggregator.Start(ctx)
		<-ctx.Done()
		a.aggregator.Stop()
		return nil
	})

	if a.server != nil {
		g.Go(func() error {
			if len(a.cfg.Web.TLSDomains) > 0 {
				return a.server.StartWithAutoTLS(ctx, a.cfg.Web.TLSDomains, a.cfg.Web.CertCacheDir)
			}
			return a.server.Start(ctx)
		})
	}

	return g.Wait()
}

// Close releases the cache store.
func (a *App) Close() error {
	return a.store.Close()
}

// OpenStore opens the configured key-value backend.
func OpenStore(ctx context.Context, c config.Cache) (kv.Store, error) {
	switch c.Backend {
	case config.CacheMemory:
		return kv.NewMemoryStore(), nil
	case config.CacheFile:
		s, err := kv.NewFileStore(c.Path)
		if err != nil {
			return nil, errors.Wrap(err, "open file cache")
		}
		return s, nil
	case config.CacheRedis:
		s, err := kv.NewRedisStore(ctx, kv.RedisOptions{
			Addr:      c.RedisAddr,
			Password:  c.RedisPassword,
			DB:        c.RedisDB,
			KeyPrefix: "treasury:",
		})
		if err != nil {
			return nil, errors.Wrap(err, "open redis cache")
		}
		return s, nil
	case config.CacheWAL, "":
		s, err := kv.NewWALStore(c.Dir)
		if err != nil {
			return nil, errors.Wrap(err, "open wal cache")
		}
		return s, nil
	default:
		return nil, errors.Errorf("unknown cache backend %q", c.Backend)
	}
}
