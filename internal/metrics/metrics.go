// Package metrics declares Prometheus collectors of the treasury aggregator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "treasury"

var (
	// Upstream HTTP and JSON-RPC calls
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Total upstream requests by source and status class",
	}, []string{"source", "status"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Upstream request duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{"source"})

	RateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "rate_limit_waits_total",
		Help:      "Requests delayed by the client side rate limiter",
	}, []string{"source"})

	// Reconciliation
	AdapterSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "adapter_samples_total",
		Help:      "Adapter answers by asset, adapter and result (nonzero, zero, unavailable)",
	}, []string{"asset", "adapter", "result"})

	ReconcileOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "outcomes_total",
		Help:      "Reconciliation outcomes by asset",
	}, []string{"asset", "outcome"})

	OutliersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "outliers_rejected_total",
		Help:      "Samples dropped by the standard deviation filter",
	}, []string{"asset"})

	ReconciledBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "reconciler",
		Name:      "balance",
		Help:      "Last reconciled balance in whole units",
	}, []string{"asset"})

	// Prices
	PriceSourceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pricer",
		Name:      "source_total",
		Help:      "Price tier used for major assets",
	}, []string{"source"})

	// Aggregator
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "aggregator",
		Name:      "cycles_total",
		Help:      "Reconciliation cycles by final state",
	}, []string{"state"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "aggregator",
		Name:      "cycle_duration_seconds",
		Help:      "Reconciliation cycle duration",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	TotalUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "aggregator",
		Name:      "total_usd",
		Help:      "Total treasury value in USD of the latest snapshot",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "aggregator",
		Name:      "subscribers",
		Help:      "Active snapshot subscribers",
	})

	// Cache
	CacheOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Persistent cache operations by kind and result",
	}, []string{"op", "result"})
)
