// Package cache provides the in-memory permission-document cache.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/fieldgate/fieldgate"
)

// Memory is a bounded LRU cache with TTL expiration, keyed by table name.
// Set and Delete take effect synchronously, so a reader immediately after
// a successful write never observes the prior value.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	ttl     time.Duration
	maxSize int
}

type entry struct {
	table     string
	perms     *fieldgate.TablePermissions
	expiresAt time.Time
}

// Option configures the memory cache.
type Option func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) Option {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		ttl:     5 * time.Minute,
		maxSize: 500,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached document for table, if present and unexpired.
func (m *Memory) Get(table string) (*fieldgate.TablePermissions, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[table]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		m.lru.Remove(el)
		delete(m.entries, table)
		return nil, false
	}
	m.lru.MoveToFront(el)
	return e.perms, true
}

// Set stores the document for table, evicting the least recently used
// entry when at capacity.
func (m *Memory) Set(table string, perms *fieldgate.TablePermissions) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[table]; ok {
		e := el.Value.(*entry)
		e.perms = perms
		e.expiresAt = time.Now().Add(m.ttl)
		m.lru.MoveToFront(el)
		return
	}

	if m.lru.Len() >= m.maxSize {
		oldest := m.lru.Back()
		if oldest != nil {
			m.lru.Remove(oldest)
			delete(m.entries, oldest.Value.(*entry).table)
		}
	}

	m.entries[table] = m.lru.PushFront(&entry{
		table:     table,
		perms:     perms,
		expiresAt: time.Now().Add(m.ttl),
	})
}

// Delete evicts the entry for table.
func (m *Memory) Delete(table string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[table]; ok {
		m.lru.Remove(el)
		delete(m.entries, table)
	}
}

// Purge drops every entry.
func (m *Memory) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*list.Element)
	m.lru.Init()
}

// Len returns the current entry count.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}
