package domain

import "github.com/pkg/errors"

var (
	// ErrAdapterUnavailable a single source failed to answer or answered garbage.
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	// ErrAllSourcesExhausted every source of an asset failed in one cycle.
	ErrAllSourcesExhausted = errors.New("all sources exhausted")
	// ErrInvalidPriceData price is missing or not strictly positive.
	ErrInvalidPriceData = errors.New("invalid price data")
	// ErrCacheCorrupt persisted entry could not be decoded.
	ErrCacheCorrupt = errors.New("cache entry corrupt")
	// ErrCacheMiss no persisted entry for the key.
	ErrCacheMiss = errors.New("cache miss")
)

// Unavailable wraps err so that it matches ErrAdapterUnavailable.
func Unavailable(source string, err error) error {
	if err == nil {
		err = ErrAdapterUnavailable
	}
	return &unavailableError{source: source, err: err}
}

type unavailableError struct {
	source string
	err    error
}

func (e *unavailableError) Error() string {
	return e.source + ": " + ErrAdapterUnavailable.Error() + ": " + e.err.Error()
}

func (e *unavailableError) Unwrap() error { return e.err }

func (e *unavailableError) Is(target error) bool {
	return target == ErrAdapterUnavailable
}
