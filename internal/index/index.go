// Package index provides per-document vector collections with exact
// cosine-similarity retrieval.
//
// Each ingested document gets its own isolated collection of embedded
// chunks. Queries scan a single collection and return the closest chunks
// by cosine similarity; chunks from other documents are never considered.
//
// Two implementations are provided: Memory, an in-process store suited to
// tests and single-node deployments, and Postgres, backed by pgvector for
// durable storage.
package index

import (
	"context"
	"errors"
)

// VectorDimension is the expected dimensionality of all embedding vectors
// stored in the index. Vectors of any other length are rejected.
const VectorDimension = 768

// Sentinel errors returned by Index implementations. Callers should match
// with errors.Is rather than comparing error strings.
var (
	// ErrDocumentNotFound indicates the collection for the given document
	// id does not exist.
	ErrDocumentNotFound = errors.New("index: document not found")

	// ErrDuplicateChunk indicates an insert carried a chunk id already
	// present in the collection.
	ErrDuplicateChunk = errors.New("index: duplicate chunk id")

	// ErrDimensionMismatch indicates a vector whose length differs from
	// VectorDimension.
	ErrDimensionMismatch = errors.New("index: embedding dimension mismatch")

	// ErrCollectionExists indicates Create was called for a document id
	// that already has a collection.
	ErrCollectionExists = errors.New("index: collection already exists")
)

// Entry is a single embedded chunk stored in a collection.
type Entry struct {
	// ChunkID uniquely identifies the chunk within its collection.
	ChunkID string

	// PageNum is the 1-based page the chunk was extracted from.
	PageNum int

	// Seq is the chunk's position within its page.
	Seq int

	// Text is the verbatim chunk text.
	Text string

	// Vector is the chunk's embedding. Must have VectorDimension components.
	Vector []float32
}

// Result is a retrieved chunk with its similarity to the query vector.
type Result struct {
	Entry

	// Similarity is the cosine similarity between the query vector and
	// the entry's vector, in [-1, 1].
	Similarity float64
}

// Index stores embedded chunks grouped into per-document collections and
// answers nearest-neighbor queries against a single collection.
//
// Implementations must serialize Drop against concurrent Insert and Query
// on the same document so that a query never observes a half-removed
// collection.
type Index interface {
	// Create creates an empty collection for the document. Returns
	// ErrCollectionExists if one is already present.
	Create(ctx context.Context, docID string) error

	// Insert adds entries to the document's collection. The insert is
	// atomic: on any error no entry is stored. Returns
	// ErrDocumentNotFound if the collection does not exist,
	// ErrDuplicateChunk if a chunk id collides with a stored entry or
	// another entry in the same batch, and ErrDimensionMismatch for
	// malformed vectors.
	Insert(ctx context.Context, docID string, entries []Entry) error

	// Query returns up to k entries from the document's collection
	// ordered by descending cosine similarity to vector. Ties are broken
	// by insertion order, earliest first. Returns ErrDocumentNotFound if
	// the collection does not exist. k <= 0 yields an empty result.
	Query(ctx context.Context, docID string, vector []float32, k int) ([]Result, error)

	// Drop removes the document's collection and all its entries. Dropping
	// an absent collection is a no-op.
	Drop(ctx context.Context, docID string) error

	// Exists reports whether a collection exists for the document.
	Exists(ctx context.Context, docID string) (bool, error)

	// Count returns the number of entries in the document's collection.
	// Returns ErrDocumentNotFound if the collection does not exist.
	Count(ctx context.Context, docID string) (int, error)
}
