// Package memory stores assets in-memory for tests and development.
package memory

import (
	"context"
	"sync"

	"github.com/nemo-app/photoingest/internal/assetstore"
)

// ObjectStore keeps objects in a map guarded by a mutex.
type ObjectStore struct {
	mu           sync.RWMutex
	data         map[string][]byte
	contentTypes map[string]string
}

// New creates an empty in-memory object store.
func New() *ObjectStore {
	return &ObjectStore{
		data:         make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

// Put stores a copy of data under key.
func (s *ObjectStore) Put(_ context.Context, key, contentType, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	s.contentTypes[key] = contentType
	return nil
}

// Get returns a copy of the object stored under key.
func (s *ObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, assetstore.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Head returns the stored size of key.
func (s *ObjectStore) Head(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return 0, assetstore.ErrNotFound
	}
	return int64(len(data)), nil
}

// Delete removes key.
func (s *ObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return assetstore.ErrNotFound
	}
	delete(s.data, key)
	delete(s.contentTypes, key)
	return nil
}

// ContentType reports the stored content type for key (test helper).
func (s *ObjectStore) ContentType(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ct, ok := s.contentTypes[key]
	return ct, ok
}

// Keys lists stored keys (test helper).
func (s *ObjectStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}
