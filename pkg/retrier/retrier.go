package retrier

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseDelay   = 1 * time.Second
	defaultMaxAttempts = 3
)

// Retrier implements linear backoff: the delay before attempt k is baseDelay*k.
type Retrier struct {
	baseDelay      time.Duration
	maxAttempts    int
	attemptTimeout time.Duration
	logger         *zap.Logger
	sleep          func(ctx context.Context, d time.Duration) error
}

// Option defines a function to configure the Retrier.
type Option func(*Retrier)

// WithBaseDelay sets the delay unit multiplied by the attempt number.
func WithBaseDelay(d time.Duration) Option {
	return func(r *Retrier) {
		r.baseDelay = d
	}
}

// WithMaxAttempts sets the total number of attempts, including the first one.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithAttemptTimeout bounds every single attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(r *Retrier) {
		r.attemptTimeout = d
	}
}

// WithLogger sets the logger used to report failed attempts.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retrier) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a new Retrier with default values and optional overrides.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		baseDelay:   defaultBaseDelay,
		maxAttempts: defaultMaxAttempts,
		logger:      zap.NewNop(),
		sleep:       sleepCtx,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Do executes fn until it succeeds or attempts are exhausted, returning the last error.
func (r *Retrier) Do(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	var err error

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			if serr := r.sleep(ctx, r.Delay(attempt)); serr != nil {
				return serr
			}
		}

		err = r.attempt(ctx, fn)
		if err == nil {
			return nil
		}

		r.logger.Warn("attempt failed",
			zap.String("label", label),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.maxAttempts),
			zap.Error(err),
		)
	}

	return err
}

// Delay returns the pause before the given zero-based attempt.
func (r *Retrier) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return r.baseDelay * time.Duration(attempt)
}

func (r *Retrier) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.attemptTimeout <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	return fn(attemptCtx)
}

// DoWithData executes the given function with retries and returns a value.
func DoWithData[T any](r *Retrier, ctx context.Context, label string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, label, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
