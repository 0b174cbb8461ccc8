package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetrier_Do(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		r := New()
		attempts := 0
		err := r.Do(context.Background(), "first", func(ctx context.Context) error {
			attempts++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("success after retries", func(t *testing.T) {
		r := New(WithMaxAttempts(3), WithBaseDelay(1*time.Millisecond))
		attempts := 0
		err := r.Do(context.Background(), "retry", func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("fail")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("returns last error after max attempts", func(t *testing.T) {
		r := New(WithMaxAttempts(3), WithBaseDelay(1*time.Millisecond), WithLogger(zap.NewNop()))
		attempts := 0
		err := r.Do(context.Background(), "exhaust", func(ctx context.Context) error {
			attempts++
			return errors.New("fail " + string(rune('0'+attempts)))
		})
		require.Error(t, err)
		assert.Equal(t, "fail 3", err.Error())
		assert.Equal(t, 3, attempts)
	})

	t.Run("linear delays between attempts", func(t *testing.T) {
		r := New(WithMaxAttempts(4), WithBaseDelay(time.Second))
		var delays []time.Duration
		r.sleep = func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}

		_ = r.Do(context.Background(), "linear", func(ctx context.Context) error {
			return errors.New("fail")
		})

		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, delays)
	})

	t.Run("each attempt has its own deadline", func(t *testing.T) {
		r := New(WithMaxAttempts(2), WithBaseDelay(time.Millisecond), WithAttemptTimeout(5*time.Millisecond))
		attempts := 0
		err := r.Do(context.Background(), "timeout", func(ctx context.Context) error {
			attempts++
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			<-ctx.Done()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 2, attempts)
	})

	t.Run("context cancellation", func(t *testing.T) {
		r := New(WithMaxAttempts(5), WithBaseDelay(100*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())

		attempts := 0
		err := r.Do(ctx, "cancel", func(ctx context.Context) error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, attempts)
	})
}

func TestRetrier_Delay(t *testing.T) {
	r := New(WithBaseDelay(500 * time.Millisecond))

	assert.Equal(t, time.Duration(0), r.Delay(0))
	assert.Equal(t, 500*time.Millisecond, r.Delay(1))
	assert.Equal(t, 1500*time.Millisecond, r.Delay(3))
}

func TestRetrier_DoWithData(t *testing.T) {
	t.Run("success returns data", func(t *testing.T) {
		r := New()
		val, err := DoWithData(r, context.Background(), "data", func(ctx context.Context) (string, error) {
			return "success", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "success", val)
	})

	t.Run("fail returns error", func(t *testing.T) {
		r := New(WithMaxAttempts(2), WithBaseDelay(1*time.Millisecond))
		val, err := DoWithData(r, context.Background(), "data", func(ctx context.Context) (string, error) {
			return "", errors.New("fail")
		})
		assert.Error(t, err)
		assert.Empty(t, val)
	})
}
