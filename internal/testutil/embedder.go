// Package testutil provides shared testing utilities for the docchat project.
//
// This package contains reusable test infrastructure that can be used across
// multiple packages, following the pattern of Go standard library packages
// like net/http/httptest and testing/iotest.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// VectorEmbedder is a deterministic in-process ai.Embedder for tests.
//
// Each input text is mapped to a unit vector derived from its SHA-256 hash,
// so identical text always embeds to the identical vector (cosine similarity
// 1.0 with itself) while distinct texts land on effectively uncorrelated
// directions. No network access, no API key.
//
// Thread-safe for concurrent use.
type VectorEmbedder struct {
	Dim int // vector dimensionality (defaults to 8 when zero)

	// Err, when set, is returned by every Embed call. Used to simulate an
	// unavailable embedding service.
	Err error

	mu    sync.Mutex
	calls [][]string
}

// Name implements ai.Embedder.
func (e *VectorEmbedder) Name() string {
	return "test/vector-embedder"
}

// Register implements ai.Embedder. No-op for testing.
func (e *VectorEmbedder) Register(_ api.Registry) {}

// Embed implements ai.Embedder with hash-derived deterministic vectors.
func (e *VectorEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if e.Err != nil {
		return nil, e.Err
	}

	texts := make([]string, len(req.Input))
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		text := ""
		if len(doc.Content) > 0 {
			text = doc.Content[0].Text
		}
		texts[i] = text
		embeddings[i] = &ai.Embedding{Embedding: e.vector(text)}
	}

	e.mu.Lock()
	e.calls = append(e.calls, texts)
	e.mu.Unlock()

	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

// Calls returns the batches of texts passed to Embed, in call order.
func (e *VectorEmbedder) Calls() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([][]string, len(e.calls))
	copy(cp, e.calls)
	return cp
}

// vector derives a unit vector from the SHA-256 hash of text.
func (e *VectorEmbedder) vector(text string) []float32 {
	dim := e.Dim
	if dim <= 0 {
		dim = 8
	}

	v := make([]float32, dim)
	seed := sha256.Sum256([]byte(text))
	var norm float64

	for i := range v {
		// Re-hash per component so any dimension is available from one seed.
		var buf [36]byte
		copy(buf[:32], seed[:])
		binary.BigEndian.PutUint32(buf[32:], uint32(i)) // #nosec G115 -- loop index is non-negative
		h := sha256.Sum256(buf[:])

		// Map the first 8 hash bytes onto (-1, 1).
		u := binary.BigEndian.Uint64(h[:8])
		v[i] = float32(u)/float32(math.MaxUint64)*2 - 1
		norm += float64(v[i]) * float64(v[i])
	}

	// Normalize so self-similarity is exactly 1 under cosine scoring.
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
