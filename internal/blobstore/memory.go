package blobstore

import (
	"context"
	"fmt"
)

// MemoryStore is an in-memory BlobStore used in tests.
type MemoryStore struct {
	objects map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put registers an object's bytes under key.
func (m *MemoryStore) Put(key string, data []byte) {
	m.objects[key] = data
}

// Fetch returns the bytes registered under key, or an error if absent.
func (m *MemoryStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return data, nil
}
