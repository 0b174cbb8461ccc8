package clients

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/treasury/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket rate limiter for upstream calls.
type Limiter struct {
	limiter *rate.Limiter
	source  string
}

// NewLimiter creates a limiter allowing rps requests per second with the given burst.
// A non-positive rps disables limiting.
func NewLimiter(source string, rps float64, burst int) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		source:  source,
	}
}

// Wait blocks until the limiter allows one event, or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	r := l.limiter.Reserve()
	if !r.OK() {
		return errors.New("rate: cannot reserve token")
	}

	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	metrics.RateLimitWaits.WithLabelValues(l.source).Inc()

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
