package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/docchat/docchat/internal/log"
)

// Memory is an in-process Index implementation. It keeps every collection
// in a map guarded by a read-write mutex, so queries against different
// documents proceed in parallel while Drop takes the collection out
// atomically.
//
// Similarity search is an exact scan. Collections hold one document's
// chunks, typically a few hundred entries, so a linear pass is faster
// than maintaining an approximate structure.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*collection
	logger      log.Logger
}

type collection struct {
	entries []Entry
	ids     map[string]struct{}
}

// NewMemory creates an empty in-memory index.
func NewMemory(logger log.Logger) *Memory {
	return &Memory{
		collections: make(map[string]*collection),
		logger:      logger,
	}
}

// Create creates an empty collection for the document.
func (m *Memory) Create(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[docID]; ok {
		return fmt.Errorf("create collection %q: %w", docID, ErrCollectionExists)
	}

	m.collections[docID] = &collection{
		ids: make(map[string]struct{}),
	}

	m.logger.Debug("collection created", "doc_id", docID)
	return nil
}

// Insert adds entries to the document's collection atomically.
func (m *Memory) Insert(_ context.Context, docID string, entries []Entry) error {
	if err := validateEntries(entries); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[docID]
	if !ok {
		return fmt.Errorf("insert into %q: %w", docID, ErrDocumentNotFound)
	}

	// Validate the whole batch against stored ids before mutating anything
	// so a failed insert leaves the collection untouched.
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := coll.ids[e.ChunkID]; dup {
			return fmt.Errorf("insert into %q: chunk %q: %w", docID, e.ChunkID, ErrDuplicateChunk)
		}
		if _, dup := seen[e.ChunkID]; dup {
			return fmt.Errorf("insert into %q: chunk %q: %w", docID, e.ChunkID, ErrDuplicateChunk)
		}
		seen[e.ChunkID] = struct{}{}
	}

	for _, e := range entries {
		coll.entries = append(coll.entries, e)
		coll.ids[e.ChunkID] = struct{}{}
	}

	m.logger.Debug("entries inserted", "doc_id", docID, "count", len(entries), "total", len(coll.entries))
	return nil
}

// Query scans the document's collection and returns the k most similar
// entries by cosine similarity, ties broken by insertion order.
func (m *Memory) Query(_ context.Context, docID string, vector []float32, k int) ([]Result, error) {
	if len(vector) != VectorDimension {
		return nil, fmt.Errorf("query %q: got %d components, want %d: %w",
			docID, len(vector), VectorDimension, ErrDimensionMismatch)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[docID]
	if !ok {
		return nil, fmt.Errorf("query %q: %w", docID, ErrDocumentNotFound)
	}

	if k <= 0 || len(coll.entries) == 0 {
		return []Result{}, nil
	}

	type scored struct {
		pos int
		sim float64
	}

	scores := make([]scored, len(coll.entries))
	for i, e := range coll.entries {
		scores[i] = scored{pos: i, sim: cosineSimilarity(vector, e.Vector)}
	}

	// Stable sort keeps insertion order among equal similarities.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].sim > scores[j].sim
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]Result, k)
	for i := 0; i < k; i++ {
		results[i] = Result{
			Entry:      coll.entries[scores[i].pos],
			Similarity: scores[i].sim,
		}
	}

	return results, nil
}

// Drop removes the document's collection. Absent collections are a no-op.
func (m *Memory) Drop(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[docID]; !ok {
		return nil
	}

	delete(m.collections, docID)
	m.logger.Debug("collection dropped", "doc_id", docID)
	return nil
}

// Exists reports whether a collection exists for the document.
func (m *Memory) Exists(_ context.Context, docID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.collections[docID]
	return ok, nil
}

// Count returns the number of entries in the document's collection.
func (m *Memory) Count(_ context.Context, docID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[docID]
	if !ok {
		return 0, fmt.Errorf("count %q: %w", docID, ErrDocumentNotFound)
	}
	return len(coll.entries), nil
}

func validateEntries(entries []Entry) error {
	for _, e := range entries {
		if e.ChunkID == "" {
			return fmt.Errorf("entry with empty chunk id")
		}
		if len(e.Vector) != VectorDimension {
			return fmt.Errorf("chunk %q: got %d components, want %d: %w",
				e.ChunkID, len(e.Vector), VectorDimension, ErrDimensionMismatch)
		}
	}
	return nil
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Zero vectors yield similarity 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
