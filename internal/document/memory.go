package document

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/docchat/docchat/internal/log"
)

// Memory is an in-process Registry guarded by a read-write mutex.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]Document
	logger log.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewMemory creates an empty in-memory registry.
func NewMemory(logger log.Logger) *Memory {
	return &Memory{
		docs:   make(map[string]Document),
		logger: logger,
		now:    time.Now,
	}
}

// Register adds a document in StatusProcessing.
func (m *Memory) Register(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[doc.ID]; ok {
		return fmt.Errorf("register %q: %w", doc.ID, ErrExists)
	}

	now := m.now()
	doc.Status = StatusProcessing
	doc.CreatedAt = now
	doc.UpdatedAt = now
	m.docs[doc.ID] = doc

	m.logger.Debug("document registered", "doc_id", doc.ID, "filename", doc.Filename)
	return nil
}

// Get returns the document with the given id.
func (m *Memory) Get(_ context.Context, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return Document{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	return doc, nil
}

// List returns all documents ordered by creation time, oldest first.
func (m *Memory) List(_ context.Context) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

// SetStatus transitions the document to the given status.
func (m *Memory) SetStatus(_ context.Context, id string, status Status, chunks int, failure string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("set status %q: %w", id, ErrNotFound)
	}

	doc.Status = status
	doc.UpdatedAt = m.now()
	switch status {
	case StatusReady:
		doc.Chunks = chunks
		doc.Error = ""
	case StatusFailed:
		doc.Chunks = 0
		doc.Error = failure
	}
	m.docs[id] = doc

	m.logger.Debug("document status changed", "doc_id", id, "status", string(status))
	return nil
}

// Remove deletes the document record. Absent ids are a no-op.
func (m *Memory) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return nil
	}
	delete(m.docs, id)
	m.logger.Debug("document removed", "doc_id", id)
	return nil
}
