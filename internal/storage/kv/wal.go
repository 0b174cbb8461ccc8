package kv

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultWALDir      = "./wal/treasury"
	walSegmentLimit    = 1000
	walMaxSegments     = 100
	walTombstonePrefix = "del:"
)

// WALStore persists entries in an append-only WAL and serves reads from an
// in-memory index rebuilt on open. Deletes are written as tombstones.
type WALStore struct {
	wal   *gowal.Wal
	mu    sync.RWMutex
	index map[string][]byte
}

// NewWALStore opens (or creates) the WAL under dir and replays it.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultWALDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "cache_",
		SegmentThreshold: walSegmentLimit,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init treasury cache WAL")
	}

	s := &WALStore{wal: wal, index: make(map[string][]byte)}
	for msg := range wal.Iterator() {
		if key, ok := strings.CutPrefix(msg.Key, walTombstonePrefix); ok {
			delete(s.index, key)
			continue
		}
		s.index[msg.Key] = msg.Value
	}

	return s, nil
}

func (s *WALStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.index[key]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), v...), nil
}

func (s *WALStore) Set(_ context.Context, key string, value []byte) error {
	if strings.HasPrefix(key, walTombstonePrefix) {
		return errors.Errorf("key %q uses reserved prefix", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.Write(s.wal.CurrentIndex()+1, key, value); err != nil {
		return errors.Wrap(err, "write cache entry to WAL")
	}
	s.index[key] = append([]byte(nil), value...)

	return nil
}

func (s *WALStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[key]; !ok {
		return nil
	}
	if err := s.wal.Write(s.wal.CurrentIndex()+1, walTombstonePrefix+key, []byte("deleted")); err != nil {
		return errors.Wrap(err, "write cache tombstone to WAL")
	}
	delete(s.index, key)

	return nil
}

func (s *WALStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.index))
	for k := range s.index {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}

	return keys, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
