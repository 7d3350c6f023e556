package previewsw

import "sync"

// MemCache is an in-memory Cache, standing in for BrowserCache, the
// browser Cache API wrapper used under js&&wasm (see cachesapi.go). It lets
// plain `go test` exercise the same repopulate-from-persistent-cache
// path the real service worker takes.
type MemCache struct {
	mu     sync.Mutex
	stores map[string]map[string]File
}

// NewMemCache creates an empty in-memory cache.
func NewMemCache() *MemCache {
	return &MemCache{stores: make(map[string]map[string]File)}
}

var _ Cache = (*MemCache)(nil)

func (c *MemCache) Get(cacheName, path string) (File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	store, ok := c.stores[cacheName]
	if !ok {
		return File{}, false
	}
	f, ok := store[path]
	return f, ok
}

func (c *MemCache) Put(cacheName, path string, f File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	store, ok := c.stores[cacheName]
	if !ok {
		store = make(map[string]File)
		c.stores[cacheName] = store
	}
	store[path] = f
}

func (c *MemCache) Clear(cacheName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stores, cacheName)
}
