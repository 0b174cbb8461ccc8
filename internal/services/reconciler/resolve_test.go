package reconciler

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samples(values ...string) []Sample {
	out := make([]Sample, len(values))
	for i, v := range values {
		out[i] = Sample{Source: "s" + string(rune('a'+i)), Amount: decimal.RequireFromString(v)}
	}
	return out
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		samples  []Sample
		previous decimal.Decimal
		cached   decimal.Decimal
		expected string
		outcome  Outcome
		rejected int
	}{
		{
			name:     "median of four, no filtering below five samples",
			samples:  samples("1.0", "1.0", "1.1", "0.9"),
			expected: "1.0",
			outcome:  OutcomeMedian,
		},
		{
			name:     "zero quorum fires before median logic",
			samples:  samples("0", "0", "0", "0", "0", "0.5"),
			expected: "0",
			outcome:  OutcomeZeroQuorum,
			rejected: 1,
		},
		{
			name:     "four zeros are not enough",
			samples:  samples("0", "0", "0", "0", "2"),
			expected: "2",
			outcome:  OutcomeMedian,
		},
		{
			name:     "wild outlier dropped with five samples",
			samples:  samples("10", "10", "10", "10", "10", "10", "1000"),
			expected: "10",
			outcome:  OutcomeMedian,
			rejected: 1,
		},
		{
			name:     "agreeing samples are not filtered",
			samples:  samples("5", "5", "5", "5", "5"),
			expected: "5",
			outcome:  OutcomeMedian,
		},
		{
			name:     "single sample",
			samples:  samples("3.3"),
			expected: "3.3",
			outcome:  OutcomeMedian,
		},
		{
			name:     "odd count median",
			samples:  samples("1", "3", "2"),
			expected: "2",
			outcome:  OutcomeMedian,
		},
		{
			name:     "no answers falls back to previous",
			samples:  nil,
			previous: decimal.NewFromInt(7),
			cached:   decimal.NewFromInt(9),
			expected: "7",
			outcome:  OutcomePrevious,
		},
		{
			name:     "only zeros below quorum falls back to cache",
			samples:  samples("0", "0"),
			cached:   decimal.NewFromInt(9),
			expected: "9",
			outcome:  OutcomeCached,
		},
		{
			name:     "nothing known gives zero",
			samples:  nil,
			expected: "0",
			outcome:  OutcomeZeroFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.samples, tt.previous, tt.cached, DefaultThresholds())

			assert.True(t, decimal.RequireFromString(tt.expected).Equal(res.Amount), "expected %s, got %s", tt.expected, res.Amount)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Len(t, res.Rejected, tt.rejected)
		})
	}
}

func TestResolve_MedianWithinBounds(t *testing.T) {
	sets := [][]Sample{
		samples("1", "2", "3"),
		samples("0.5", "100", "0.7", "0.6"),
		samples("10", "11", "9", "10.5", "9.5", "50"),
		samples("1e-9", "2e-9", "3e-9", "4e-9", "5e-9"),
	}

	for _, set := range sets {
		res := Resolve(set, decimal.Zero, decimal.Zero, DefaultThresholds())
		require.Equal(t, OutcomeMedian, res.Outcome)
		require.NotEmpty(t, res.Accepted)

		lo, hi := res.Accepted[0].Amount, res.Accepted[0].Amount
		for _, s := range res.Accepted {
			lo = decimal.Min(lo, s.Amount)
			hi = decimal.Max(hi, s.Amount)
		}
		assert.True(t, res.Amount.GreaterThanOrEqual(lo) && res.Amount.LessThanOrEqual(hi),
			"median %s outside [%s, %s]", res.Amount, lo, hi)
	}
}

func TestResolve_ZeroQuorumAlwaysZero(t *testing.T) {
	for extra := 0; extra < 6; extra++ {
		values := []string{"0", "0", "0", "0", "0"}
		for i := 0; i < extra; i++ {
			values = append(values, "12.5")
		}

		res := Resolve(samples(values...), decimal.NewFromInt(3), decimal.NewFromInt(4), DefaultThresholds())
		assert.True(t, res.Amount.IsZero())
		assert.Equal(t, OutcomeZeroQuorum, res.Outcome)
	}
}

func TestResolve_CustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.ZeroQuorum = 2

	res := Resolve(samples("0", "0", "1"), decimal.Zero, decimal.Zero, th)
	assert.Equal(t, OutcomeZeroQuorum, res.Outcome)

	zeroed := Resolve(samples("0", "0", "1"), decimal.Zero, decimal.Zero, Thresholds{})
	assert.Equal(t, OutcomeMedian, zeroed.Outcome, "unset thresholds use defaults")
}
