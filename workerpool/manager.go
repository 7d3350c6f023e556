package workerpool

import (
	"context"
	"sync/atomic"
)

// EngineFactory builds a fresh Engine handle for one worker.
type EngineFactory func() Engine

// Manager owns the single live Pool generation and performs reloads: the
// active pool pointer is read and replaced with atomic.Pointer so
// submissions never observe a half-built pool.
type Manager struct {
	current atomic.Pointer[Pool]
	min     int
	max     int
}

// NewManager starts the first pool generation.
func NewManager(hardwareConcurrency, min, max int, newEngine EngineFactory) *Manager {
	m := &Manager{min: min, max: max}
	size := ClampPoolSize(hardwareConcurrency, min, max)
	m.current.Store(NewPool(size, newEngine))
	return m
}

// Pool returns the currently active pool generation.
func (m *Manager) Pool() *Pool {
	return m.current.Load()
}

// Submit forwards to the active pool generation.
func (m *Manager) Submit(ctx context.Context, req Request, progress func(payload any)) (any, error) {
	return m.current.Load().Submit(ctx, req, progress)
}

// Reload builds and swaps in a fresh pool generation, then rejects every
// task still waiting on the prior generation and terminates its
// workers. The old pool is rejected and shut down only after the new one
// is already installed, so a caller's next Submit always lands on a
// usable pool.
func (m *Manager) Reload(hardwareConcurrency int, newEngine EngineFactory) {
	old := m.current.Load()

	size := ClampPoolSize(hardwareConcurrency, m.min, m.max)
	next := NewPool(size, newEngine)
	m.current.Store(next)

	old.reject(ErrReload)
	old.shutdown()
}
