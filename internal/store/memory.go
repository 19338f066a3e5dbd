package store

import (
	"context"
	"sync"

	"bidio/internal/models"
)

// MemoryBackend is a concurrency-safe in-memory Backend
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[int64]models.Doc // key: bid id -> value: stored document
}

// NewMemoryBackend creates an empty in-memory namespace.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs: make(map[int64]models.Doc),
	}
}

// Get returns a copy of the document under id
func (m *MemoryBackend) Get(ctx context.Context, id int64) (models.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docs[id].Clone(), nil
}

// Modify holds the write lock across the whole read-modify-write
func (m *MemoryBackend) Modify(ctx context.Context, id int64, fn ModifyFunc) (models.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fn(m.docs[id].Clone())
	if err != nil || next == nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.docs[id] = next.Clone()
	return next, nil
}

// List returns copies of every stored document
func (m *MemoryBackend) List(ctx context.Context) ([]models.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]models.Doc, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc.Clone())
	}
	return docs, nil
}

// Delete removes the document under id
func (m *MemoryBackend) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

// Clear drops every document
func (m *MemoryBackend) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[int64]models.Doc)
	return nil
}

// Len reports the number of stored documents. This method is intended for tests only.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
