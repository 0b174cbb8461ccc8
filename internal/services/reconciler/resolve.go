// Package reconciler turns disagreeing balance answers of independent sources into
// one balance per asset.
package reconciler

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Outcome tells which rule produced the reconciled amount.
type Outcome string

const (
	OutcomeMedian       Outcome = "median"
	OutcomeZeroQuorum   Outcome = "zero_quorum"
	OutcomePrevious     Outcome = "previous"
	OutcomeCached       Outcome = "cached"
	OutcomeZeroFallback Outcome = "zero_fallback"
)

// Thresholds of the reconciliation rules.
type Thresholds struct {
	// ZeroQuorum valid zero answers needed to accept an empty balance.
	ZeroQuorum int
	// StatsMinSamples non-zero answers needed to compute mean and deviation.
	StatsMinSamples int
	// OutlierMinSamples non-zero answers needed before outliers are dropped.
	OutlierMinSamples int
	// OutlierSigma distance from the mean, in standard deviations, past which a sample is dropped.
	OutlierSigma float64
	// MinStdDev deviation below which samples are considered in agreement.
	MinStdDev float64
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ZeroQuorum:        5,
		StatsMinSamples:   3,
		OutlierMinSamples: 5,
		OutlierSigma:      2,
		MinStdDev:         1e-4,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.ZeroQuorum <= 0 {
		t.ZeroQuorum = d.ZeroQuorum
	}
	if t.StatsMinSamples <= 0 {
		t.StatsMinSamples = d.StatsMinSamples
	}
	if t.OutlierMinSamples <= 0 {
		t.OutlierMinSamples = d.OutlierMinSamples
	}
	if t.OutlierSigma <= 0 {
		t.OutlierSigma = d.OutlierSigma
	}
	if t.MinStdDev <= 0 {
		t.MinStdDev = d.MinStdDev
	}
	return t
}

// Sample single successful adapter answer.
type Sample struct {
	Source string
	Amount decimal.Decimal
}

// Result of one reconciliation.
type Result struct {
	Amount   decimal.Decimal
	Outcome  Outcome
	Zeros    int
	NonZero  int
	Accepted []Sample
	Rejected []Sample
}

// Resolve applies the reconciliation rules to samples.
//
// Zero answers reaching ZeroQuorum win before any statistics. With no non-zero
// answer the result falls back to previous, then cached, then zero. Otherwise the
// median of the non-zero answers is reported, after dropping answers further than
// OutlierSigma deviations from the mean when enough samples disagree.
func Resolve(samples []Sample, previous, cached decimal.Decimal, th Thresholds) Result {
	th = th.withDefaults()

	var zeros, nonZero []Sample
	for _, s := range samples {
		if s.Amount.IsZero() {
			zeros = append(zeros, s)
			continue
		}
		nonZero = append(nonZero, s)
	}

	res := Result{Zeros: len(zeros), NonZero: len(nonZero)}

	if len(zeros) >= th.ZeroQuorum {
		res.Amount = decimal.Zero
		res.Outcome = OutcomeZeroQuorum
		res.Accepted = zeros
		res.Rejected = nonZero
		return res
	}

	if len(nonZero) == 0 {
		switch {
		case previous.IsPositive():
			res.Amount, res.Outcome = previous, OutcomePrevious
		case cached.IsPositive():
			res.Amount, res.Outcome = cached, OutcomeCached
		default:
			res.Amount, res.Outcome = decimal.Zero, OutcomeZeroFallback
		}
		return res
	}

	accepted := nonZero
	if len(nonZero) >= th.StatsMinSamples {
		mean, std := meanStdDev(nonZero)
		if len(nonZero) >= th.OutlierMinSamples && std > th.MinStdDev {
			var kept, dropped []Sample
			limit := th.OutlierSigma * std
			for _, s := range nonZero {
				if math.Abs(s.Amount.InexactFloat64()-mean) > limit {
					dropped = append(dropped, s)
					continue
				}
				kept = append(kept, s)
			}
			if len(kept) > 0 {
				accepted, res.Rejected = kept, dropped
			}
		}
	}

	res.Amount = median(accepted)
	res.Outcome = OutcomeMedian
	res.Accepted = accepted

	return res
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(samples []Sample) (float64, float64) {
	n := float64(len(samples))
	if n == 0 {
		return 0, 0
	}

	var sum float64
	for _, s := range samples {
		sum += s.Amount.InexactFloat64()
	}
	mean := sum / n

	var sq float64
	for _, s := range samples {
		d := s.Amount.InexactFloat64() - mean
		sq += d * d
	}

	return mean, math.Sqrt(sq / n)
}

func median(samples []Sample) decimal.Decimal {
	if len(samples) == 0 {
		return decimal.Zero
	}

	values := make([]decimal.Decimal, len(samples))
	for i, s := range samples {
		values[i] = s.Amount
	}
	sort.Slice(values, func(i, j int) bool { return values[i].LessThan(values[j]) })

	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}

	return values[mid-1].Add(values[mid]).Div(decimal.NewFromInt(2))
}
