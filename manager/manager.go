// Package manager ties the assetq loader to a keyed asset registry.
//
// A Manager deduplicates loads by key, tracks how many callers hold
// each asset through external reference counts, drives the per-frame
// finalize drain, and cancels assets before they are dropped so their
// memory can be reclaimed safely. It is the owning-goroutine
// counterpart of the loader: call every method from the same goroutine
// that runs the frame loop.
package manager

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/assetq"
)

// Manager owns a Loader and a registry of outstanding assets keyed by
// caller-chosen strings (usually asset paths).
type Manager struct {
	loader *assetq.Loader

	mu      sync.Mutex
	entries map[string]*entry
}

// entry tracks one registered asset and the number of callers holding
// it. The ticket identifies this load in logs.
type entry struct {
	asset  assetq.Asset
	refs   int
	ticket uuid.UUID
}

// New creates a Manager with its own started Loader. Call Shutdown
// when done.
func New(opts ...assetq.Option) *Manager {
	m := &Manager{
		loader:  assetq.NewLoader(opts...),
		entries: make(map[string]*entry),
	}
	m.loader.Start()
	return m
}

// Loader exposes the underlying Loader, for callers that need direct
// access (Pause during a loading screen, for example).
func (m *Manager) Loader() *assetq.Loader { return m.loader }

// Load returns the asset registered under key, creating and submitting
// it via factory on first use. A repeated Load of the same key
// increments the reference count and returns the existing asset without
// resubmitting; the factory is not called.
//
// The factory runs under the registry lock; keep it to constructing the
// asset.
func (m *Manager) Load(key string, factory func() assetq.Asset) assetq.Asset {
	m.mu.Lock()
	if e, ok := m.entries[key]; ok {
		e.refs++
		refs := e.refs
		m.mu.Unlock()
		assetq.Logger().Debug("asset ref added", "key", key, "refs", refs)
		return e.asset
	}

	a := factory()
	if a == nil {
		m.mu.Unlock()
		panic("manager: factory returned nil asset for key " + key)
	}
	e := &entry{asset: a, refs: 1, ticket: uuid.New()}
	m.entries[key] = e
	m.mu.Unlock()

	m.loader.Submit(a)
	assetq.Logger().Debug("load requested",
		"key", key, "asset", a.Name(), "ticket", e.ticket)
	return a
}

// Get returns the asset registered under key, if any. The second result
// is false for unknown keys.
func (m *Manager) Get(key string) (assetq.Asset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	return e.asset, true
}

// Refs returns the reference count for key, or 0 for unknown keys.
func (m *Manager) Refs(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Release drops one reference to key. When the count reaches zero the
// asset is removed from the registry and, if it has not finalized yet,
// cancelled. After Release returns, the caller may free anything the
// asset refers to. Release reports whether key was registered.
func (m *Manager) Release(key string) bool {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return false
	}
	e.refs--
	if e.refs > 0 {
		refs := e.refs
		m.mu.Unlock()
		assetq.Logger().Debug("asset ref dropped", "key", key, "refs", refs)
		return true
	}
	delete(m.entries, key)
	m.mu.Unlock()

	if !e.asset.IsFinalized() {
		m.loader.Cancel(e.asset)
	}
	assetq.Logger().Debug("asset released", "key", key, "ticket", e.ticket)
	return true
}

// Tick drains finalized assets. Call once per frame. It reports whether
// every submitted asset has been finalized.
func (m *Manager) Tick() bool { return m.loader.Drain() }

// Len returns the number of registered assets.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Shutdown runs a final Tick and stops the Loader, blocking until the
// worker has exited. Registered assets stay readable afterwards; new
// loads require a new Manager.
func (m *Manager) Shutdown() {
	m.Tick()
	m.loader.Shutdown()
}

// Err values returned by manifest loading.
var (
	// ErrUnknownKind marks a manifest entry whose kind is not one of
	// texture, shader, mesh, file, http.
	ErrUnknownKind = fmt.Errorf("manager: unknown asset kind")
)
