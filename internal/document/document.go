// Package document tracks ingested documents and their lifecycle status.
//
// A document moves through processing to either ready or failed. Only
// ready documents are queryable; a document that failed during ingestion
// never becomes partially visible.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Status is a document's lifecycle state.
type Status string

const (
	// StatusProcessing means ingestion is in flight and the document is
	// not yet queryable.
	StatusProcessing Status = "processing"

	// StatusReady means ingestion completed and the document can be
	// queried.
	StatusReady Status = "ready"

	// StatusFailed means ingestion aborted; no chunks are queryable.
	StatusFailed Status = "failed"
)

// Sentinel errors for registry operations.
var (
	// ErrNotFound indicates no document with the given id is registered.
	ErrNotFound = errors.New("document: not found")

	// ErrExists indicates a document with the given id is already
	// registered.
	ErrExists = errors.New("document: already exists")
)

// Document is a registered document and its ingestion metadata.
type Document struct {
	// ID uniquely identifies the document.
	ID string `json:"id"`

	// Filename is the original name of the uploaded file.
	Filename string `json:"filename"`

	// Status is the document's lifecycle state.
	Status Status `json:"status"`

	// Pages is the number of pages extracted from the document.
	Pages int `json:"pages"`

	// Chunks is the number of chunks indexed for the document. Zero
	// until the document reaches StatusReady.
	Chunks int `json:"chunks"`

	// SideData holds the per-page structured side-data (tables, forms)
	// the extraction service produced, aligned with page order. Stored
	// untouched and never consumed by retrieval. Nil when the document
	// carries none.
	SideData []json.RawMessage `json:"side_data,omitempty"`

	// Error holds the failure reason when Status is StatusFailed.
	Error string `json:"error,omitempty"`

	// CreatedAt is when ingestion started.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the document last changed state.
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry stores document records keyed by id.
type Registry interface {
	// Register adds a document in StatusProcessing. Returns ErrExists if
	// the id is taken.
	Register(ctx context.Context, doc Document) error

	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Document, error)

	// List returns all documents ordered by creation time, oldest first.
	List(ctx context.Context) ([]Document, error)

	// SetStatus transitions the document to the given status. chunks is
	// recorded on transition to StatusReady; failure is the reason
	// recorded on transition to StatusFailed. Returns ErrNotFound for
	// unknown ids.
	SetStatus(ctx context.Context, id string, status Status, chunks int, failure string) error

	// Remove deletes the document record. Removing an absent id is a
	// no-op.
	Remove(ctx context.Context, id string) error
}
