// Package pkgcache implements the two-tier memoisation described for the
// dependency installer: a process-local map (the "local tier") and a
// persistent key/value store (the "persistent tier"), both keyed by
// request path.
package pkgcache

import (
	"context"
	"log/slog"
	"sync"
)

// Local is the process-local, in-memory cache tier. It survives for the
// lifetime of the worker that owns it and is never persisted.
type Local struct {
	mu     sync.Mutex
	data   map[string][]byte
	logger *slog.Logger
}

// NewLocal creates an empty local cache tier.
func NewLocal() *Local {
	return &Local{
		data:   make(map[string][]byte),
		logger: slog.New(slog.DiscardHandler),
	}
}

// SetLogger installs a structured logger; the default discards everything.
func (l *Local) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l.logger = logger
}

// Get returns the cached bytes for req, if any.
func (l *Local) Get(req string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.data[req]
	return b, ok
}

// Set stores data under req.
func (l *Local) Set(req string, data []byte) {
	l.mu.Lock()
	l.data[req] = data
	l.mu.Unlock()
}

// WithLocalCacheData returns transform(cached) on a hit; on a miss it
// calls fetch(), stores the result, and returns transform(data). The
// local tier never consults the persistent tier.
func WithLocalCacheData[T any](l *Local, req string, fetch func() ([]byte, error), transform func([]byte) (T, error)) (T, error) {
	var zero T
	if cached, ok := l.Get(req); ok {
		v, err := transform(cached)
		if err == nil {
			l.logger.Debug("local cache hit", "request", req)
			return v, nil
		}
		// A corrupted cache entry triggers a live refetch rather than a
		// hard failure, matching the cache-layer failure-handling policy.
		l.logger.Warn("local cache transform failed, refetching", "request", req, "error", err)
	}
	data, err := fetch()
	if err != nil {
		return zero, err
	}
	l.Set(req, data)
	return transform(data)
}

// Entry is a single record in the persistent tier: the request path and
// its opaque cached byte payload.
type Entry struct {
	Request string
	Data    []byte
}

// Store is the persistent tier's storage contract: a simple get/put/has
// keyed by request path, backing an IndexedDB-style object store
// (ESBUILD-dependencies-cache) in the browser or an in-memory map in
// tests and the CLI harness.
type Store interface {
	// Get returns the entry for req, if present.
	Get(ctx context.Context, req string) (Entry, bool, error)
	// Put writes (or overwrites) the entry for req.
	Put(ctx context.Context, entry Entry) error
	// IsCached reports whether a non-empty entry exists for req.
	IsCached(ctx context.Context, req string) (bool, error)
}

// Persistent is the two-tier cache's persistent half, wrapping a Store.
type Persistent struct {
	store  Store
	logger *slog.Logger
}

// NewPersistent wraps a Store with the withCacheData/isCached contract.
func NewPersistent(store Store) *Persistent {
	return &Persistent{store: store, logger: slog.New(slog.DiscardHandler)}
}

// SetLogger installs a structured logger; the default discards everything.
func (p *Persistent) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p.logger = logger
}

// IsCached reports whether req has a cached, non-empty entry.
func (p *Persistent) IsCached(ctx context.Context, req string) (bool, error) {
	return p.store.IsCached(ctx, req)
}

// WithCacheData consults the store for req; on miss it calls fetch(),
// writes {request, data}, then returns transform(data).
func WithCacheData[T any](ctx context.Context, p *Persistent, req string, fetch func() ([]byte, error), transform func([]byte) (T, error)) (T, error) {
	var zero T
	entry, ok, err := p.store.Get(ctx, req)
	if err != nil {
		return zero, err
	}
	if ok {
		v, terr := transform(entry.Data)
		if terr == nil {
			p.logger.Debug("persistent cache hit", "request", req)
			return v, nil
		}
		p.logger.Warn("persistent cache transform failed, refetching", "request", req, "error", terr)
	}
	data, err := fetch()
	if err != nil {
		return zero, err
	}
	if err := p.store.Put(ctx, Entry{Request: req, Data: data}); err != nil {
		return zero, err
	}
	return transform(data)
}
