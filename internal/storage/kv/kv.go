// Package kv provides byte key-value backends for the persistent treasury cache.
package kv

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound returned by Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// Store minimal key-value contract shared by all cache backends.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists keys starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
