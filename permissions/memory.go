package permissions

import (
	"context"
	"fmt"
	"sync"

	"github.com/fieldgate/fieldgate"
	"github.com/fieldgate/fieldgate/query"
)

// Compile-time interface check.
var _ Backend = (*Memory)(nil)

// Memory is an in-memory Backend for tests and embedded instances.
// The Querier argument is ignored.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]*fieldgate.TablePermissions
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]*fieldgate.TablePermissions)}
}

func (m *Memory) Load(_ context.Context, _ query.Querier, table string) (*fieldgate.TablePermissions, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[table]
	if !ok {
		return nil, fmt.Errorf("table %s: %w", table, fieldgate.ErrNoPermissions)
	}
	return doc, nil
}

func (m *Memory) Save(_ context.Context, _ query.Querier, table string, doc *fieldgate.TablePermissions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[table] = doc
	return nil
}

func (m *Memory) Remove(_ context.Context, _ query.Querier, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, table)
	return nil
}
