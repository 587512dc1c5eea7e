// Package cache tracks auxiliary read-through caches (catalog search,
// recommendations, curated lists) and invalidates them when the user's
// underlying data changes.
//
// Validity is a double condition: an entry must carry the current global
// version AND be younger than its TTL. Version-based invalidation handles
// "data changed elsewhere"; TTL handles "the upstream source changed with no
// notification available".
package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
)

// Scope tags a registered cache consumer. Invalidation is matched on these
// typed tags, never on key-substring heuristics.
type Scope string

const (
	// ScopeUser covers caches derived from user data (recommendations,
	// preference-filtered lists).
	ScopeUser Scope = "user"
	// ScopeBook covers caches derived from catalog/book data.
	ScopeBook Scope = "book"
	// ScopeAll matches every registered consumer.
	ScopeAll Scope = "all"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeUser, ScopeBook, ScopeAll:
		return true
	}
	return false
}

// Entry is one cached value plus the bookkeeping needed to decide staleness.
type Entry[T any] struct {
	Key       string
	Data      T
	FetchedAt time.Time
	Version   uint64
}

// Manager owns the invalidation registry and the global version counter.
type Manager struct {
	version atomic.Uint64
	logger  *slog.Logger

	mu        sync.RWMutex
	consumers map[int]consumer
	nextID    int
}

type consumer struct {
	name  string
	scope Scope
	fn    func()
}

// NewManager creates an empty cache manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:    logger,
		consumers: make(map[int]consumer),
	}
}

// Version returns the current global cache version.
func (m *Manager) Version() uint64 {
	return m.version.Load()
}

// NewEntry stamps a freshly fetched value with the current version.
func NewEntry[T any](m *Manager, key string, data T) Entry[T] {
	return Entry[T]{
		Key:       key,
		Data:      data,
		FetchedAt: time.Now(),
		Version:   m.Version(),
	}
}

// Valid reports whether the entry may still be served. An invalidation voids
// the entry immediately even inside its TTL; the TTL expires it naturally
// even with no invalidation event.
func (e Entry[T]) Valid(m *Manager, ttl time.Duration) bool {
	if e.Version != m.Version() {
		return false
	}
	return time.Since(e.FetchedAt) < ttl
}

// Register adds an invalidation callback for a named consumer with a typed
// scope. The callback runs on the invalidating goroutine and must not block.
// The returned function removes the registration.
func (m *Manager) Register(name string, scope Scope, fn func()) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.consumers[id] = consumer{name: name, scope: scope, fn: fn}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.consumers, id)
		m.mu.Unlock()
	}
}

// Invalidate walks the registry and invokes every consumer matching the
// scope. ScopeAll also bumps the global version, voiding every outstanding
// Entry regardless of TTL.
func (m *Manager) Invalidate(scope Scope) {
	if scope == ScopeAll {
		m.version.Add(1)
	}

	m.mu.RLock()
	matched := make([]consumer, 0, len(m.consumers))
	for _, c := range m.consumers {
		if scope == ScopeAll || c.scope == scope {
			matched = append(matched, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range matched {
		c.fn()
	}

	if m.logger != nil {
		m.logger.Debug("cache invalidated",
			"scope", string(scope),
			"consumers", len(matched),
			"version", m.Version())
	}
}

// OnRemoteSnapshot is the event-bus subscriber for remote pushes. Any push
// touching preference- or library-derived data voids user-scoped caches and
// bumps the version.
func (m *Manager) OnRemoteSnapshot(_ string, snap *domain.UserSnapshot) {
	if snap == nil {
		return
	}
	m.version.Add(1)
	m.Invalidate(ScopeUser)
}
