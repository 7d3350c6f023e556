package pkgcache

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store, standing in for the browser's
// IndexedDB-backed sandpack-cdn object store on any platform that is not
// js/wasm. It satisfies the same contract the IndexedDB-backed Store
// does, so package-level tests exercise real code instead of a mock.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemStore creates an empty in-memory persistent store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]Entry)}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) Get(_ context.Context, req string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[req]
	return e, ok, nil
}

func (m *MemStore) Put(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Request] = entry
	return nil
}

func (m *MemStore) IsCached(_ context.Context, req string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[req]
	return ok && len(e.Data) > 0, nil
}
