package reconciler

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/treasury/internal/domain"
	"github.com/vadiminshakov/treasury/internal/metrics"
	"github.com/vadiminshakov/treasury/internal/services/providers"
	"github.com/vadiminshakov/treasury/pkg/retrier"
	"go.uber.org/zap"
)

// AssetReconciler queries every adapter of one asset and reconciles their answers.
// It remembers the last accepted amount between cycles.
type AssetReconciler struct {
	asset      domain.AssetSymbol
	address    string
	adapters   []providers.Adapter
	retrier    *retrier.Retrier
	thresholds Thresholds
	logger     *zap.Logger

	mu       sync.Mutex
	previous decimal.Decimal
}

// Option configures AssetReconciler.
type Option func(*AssetReconciler)

func WithThresholds(th Thresholds) Option {
	return func(r *AssetReconciler) {
		r.thresholds = th.withDefaults()
	}
}

func WithRetrier(rt *retrier.Retrier) Option {
	return func(r *AssetReconciler) {
		if rt != nil {
			r.retrier = rt
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *AssetReconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a reconciler for the asset held at address.
func New(asset domain.AssetSymbol, address string, adapters []providers.Adapter, opts ...Option) *AssetReconciler {
	r := &AssetReconciler{
		asset:      asset,
		address:    address,
		adapters:   adapters,
		retrier:    retrier.New(),
		thresholds: DefaultThresholds(),
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("asset", asset.String()))

	return r
}

// Asset returns the reconciled asset.
func (r *AssetReconciler) Asset() domain.AssetSymbol {
	return r.asset
}

// Collect queries all adapters concurrently, each with its own retries, and
// returns the successful answers. Unavailable adapters are dropped.
func (r *AssetReconciler) Collect(ctx context.Context) []Sample {
	results := make([]*Sample, len(r.adapters))

	var wg sync.WaitGroup
	for i, a := range r.adapters {
		wg.Add(1)
		go func() {
			defer wg.Done()

			label := r.asset.String() + "/" + a.Name()
			amount, err := retrier.DoWithData(r.retrier, ctx, label, func(ctx context.Context) (decimal.Decimal, error) {
				return a.FetchBalance(ctx, r.address)
			})
			if err != nil {
				metrics.AdapterSamplesTotal.WithLabelValues(r.asset.String(), a.Name(), "unavailable").Inc()
				r.logger.Warn("adapter unavailable", zap.String("adapter", a.Name()), zap.Error(err))
				return
			}

			kind := "nonzero"
			if amount.IsZero() {
				kind = "zero"
			}
			metrics.AdapterSamplesTotal.WithLabelValues(r.asset.String(), a.Name(), kind).Inc()
			r.logger.Debug("adapter answered", zap.String("adapter", a.Name()), zap.String("amount", amount.String()))

			results[i] = &Sample{Source: a.Name(), Amount: amount}
		}()
	}
	wg.Wait()

	samples := make([]Sample, 0, len(results))
	for _, s := range results {
		if s != nil {
			samples = append(samples, *s)
		}
	}

	return samples
}

// Resolve reconciles samples, falling back to the previous amount, then cached,
// and records the accepted amount as the new previous value.
func (r *AssetReconciler) Resolve(samples []Sample, cached decimal.Decimal) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(samples) == 0 {
		r.logger.Warn("no adapter answered", zap.Error(domain.ErrAllSourcesExhausted))
	}

	res := Resolve(samples, r.previous, cached, r.thresholds)
	r.previous = res.Amount

	fields := []zap.Field{
		zap.String("outcome", string(res.Outcome)),
		zap.String("amount", res.Amount.String()),
		zap.Int("nonzero", res.NonZero),
		zap.Int("zeros", res.Zeros),
	}
	switch res.Outcome {
	case OutcomeMedian, OutcomeZeroQuorum:
		r.logger.Info("balance reconciled", fields...)
	default:
		r.logger.Warn("balance fell back", fields...)
	}

	if n := len(res.Rejected); n > 0 && res.Outcome == OutcomeMedian {
		for _, s := range res.Rejected {
			r.logger.Info("outlier rejected", zap.String("adapter", s.Source), zap.String("amount", s.Amount.String()))
		}
		metrics.OutliersRejectedTotal.WithLabelValues(r.asset.String()).Add(float64(n))
	}
	metrics.ReconcileOutcomesTotal.WithLabelValues(r.asset.String(), string(res.Outcome)).Inc()
	metrics.ReconciledBalance.WithLabelValues(r.asset.String()).Set(res.Amount.InexactFloat64())

	return res
}

// Reconcile collects samples, appends extra positive samples reported by other
// components and resolves them.
func (r *AssetReconciler) Reconcile(ctx context.Context, cached decimal.Decimal, extra ...Sample) Result {
	samples := r.Collect(ctx)
	for _, s := range extra {
		if s.Amount.IsPositive() {
			samples = append(samples, s)
		}
	}

	return r.Resolve(samples, cached)
}

// Previous returns the last accepted amount.
func (r *AssetReconciler) Previous() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.previous
}

// Remember records an amount accepted outside of Reconcile.
func (r *AssetReconciler) Remember(amount decimal.Decimal) {
	if amount.IsNegative() {
		return
	}

	r.mu.Lock()
	r.previous = amount
	r.mu.Unlock()
}
