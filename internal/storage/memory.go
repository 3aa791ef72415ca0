package storage

import (
	"context"
	"sync"

	"hybridserver/internal/document"
)

// MemoryStore keeps documents in process-local maps. Nothing survives a
// restart.
type MemoryStore struct {
	tables map[document.Type]*memoryTable
}

// NewMemoryStore creates an empty store with one table per document type.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{tables: make(map[document.Type]*memoryTable, len(document.All))}
	for _, t := range document.All {
		s.tables[t] = &memoryTable{docs: make(map[string]memoryDoc)}
	}
	return s
}

// Gateway returns the table for t, or nil for an unknown type.
func (s *MemoryStore) Gateway(t document.Type) Gateway {
	table, ok := s.tables[t]
	if !ok {
		return nil
	}
	return table
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

type memoryDoc struct {
	content   string
	schemaRef string
}

type memoryTable struct {
	mu   sync.RWMutex
	docs map[string]memoryDoc
}

func (m *memoryTable) List(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.docs))
	for id, d := range m.docs {
		out[id] = d.content
	}
	return out, nil
}

func (m *memoryTable) Get(_ context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[id]
	if !ok {
		return "", ErrNotFound
	}
	return d.content, nil
}

func (m *memoryTable) Create(_ context.Context, id, content, schemaRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[id] = memoryDoc{content: content, schemaRef: schemaRef}
	return nil
}

func (m *memoryTable) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return false, nil
	}
	delete(m.docs, id)
	return true, nil
}

func (m *memoryTable) Exists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.docs[id]
	return ok, nil
}

func (m *memoryTable) SchemaRef(_ context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[id]
	if !ok {
		return "", ErrNotFound
	}
	return d.schemaRef, nil
}
