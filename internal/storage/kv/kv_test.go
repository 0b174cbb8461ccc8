package kv

import (
	"context"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	backends := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{name: "memory", open: func(t *testing.T) Store { return NewMemoryStore() }},
		{name: "wal", open: func(t *testing.T) Store {
			s, err := NewWALStore(t.TempDir())
			require.NoError(t, err)
			return s
		}},
		{name: "file", open: func(t *testing.T) Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
			require.NoError(t, err)
			return s
		}},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			s := b.open(t)
			defer s.Close()

			_, err := s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "treasury_balance_a", []byte(`{"a":1}`)))
			require.NoError(t, s.Set(ctx, "treasury_balance_b", []byte(`{"b":2}`)))
			require.NoError(t, s.Set(ctx, "other", []byte(`{}`)))
			require.NoError(t, s.Set(ctx, "treasury_balance_a", []byte(`{"a":3}`)))

			v, err := s.Get(ctx, "treasury_balance_a")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":3}`, string(v))

			keys, err := s.Keys(ctx, "treasury_balance_")
			require.NoError(t, err)
			sort.Strings(keys)
			assert.Equal(t, []string{"treasury_balance_a", "treasury_balance_b"}, keys)

			require.NoError(t, s.Delete(ctx, "treasury_balance_a"))
			require.NoError(t, s.Delete(ctx, "never_written"))
			_, err = s.Get(ctx, "treasury_balance_a")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestWALStore_ReplaysOnOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewWALStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k1", []byte("v1")))
	require.NoError(t, s.Set(ctx, "k2", []byte("v2")))
	require.NoError(t, s.Set(ctx, "k1", []byte("v1-new")))
	require.NoError(t, s.Delete(ctx, "k2"))
	require.NoError(t, s.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	v, err := reopened.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1-new", string(v))

	_, err = reopened.Get(ctx, "k2")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, reopened.Set(ctx, walTombstonePrefix+"x", []byte("v")))
}

func TestFileStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "json", []byte(`{"x":1}`)))
	require.NoError(t, s.Set(ctx, "text", []byte("not json")))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	v, err := reopened.Get(ctx, "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(v))

	v, err = reopened.Get(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, `"not json"`, string(v))
}
