package kv

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const defaultFilePath = "./wal/treasury_cache.json"

// FileStore keeps all entries in a single JSON document rewritten atomically on each change.
type FileStore struct {
	path string
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewFileStore loads the document at path; a missing file is an empty store.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = defaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create cache dir")
	}

	s := &FileStore{path: path, data: make(map[string]json.RawMessage)}

	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, errors.Wrap(err, "read cache file")
	}
	if len(payload) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(payload, &s.data); err != nil {
		return nil, errors.Wrap(err, "decode cache file")
	}

	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	return append([]byte(nil), v...), nil
}

// Set stores value. Values that are not valid JSON are kept as JSON strings.
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	raw := json.RawMessage(append([]byte(nil), value...))
	if !json.Valid(value) {
		encoded, err := json.Marshal(string(value))
		if err != nil {
			return errors.Wrap(err, "encode cache value")
		}
		raw = encoded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.data[key]
	s.data[key] = raw
	if err := s.flush(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}

	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)

	return s.flush()
}

func (s *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}

	return keys, nil
}

func (s *FileStore) Close() error { return nil }

// flush writes the document via a temp file and rename. Caller holds mu.
func (s *FileStore) flush() error {
	payload, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode cache file")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write cache temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist cache file")
	}

	return nil
}
