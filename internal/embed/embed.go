// Package embed adapts an external embedding model to the pipeline.
//
// The adapter is purely functional: identical input text always maps to the
// same fixed-length vector, so re-ingesting a document reproduces its index
// bit for bit. The external call is bounded by a caller-visible timeout and
// any failure surfaces as ErrUnavailable rather than a partial result.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// ErrUnavailable indicates the embedding collaborator failed, timed out, or
// returned a malformed response. Checked with errors.Is.
var ErrUnavailable = errors.New("embedding service unavailable")

const (
	// DefaultBatchSize bounds how many texts are sent per upstream request.
	DefaultBatchSize = 64

	// DefaultTimeout bounds a single upstream embedding call.
	DefaultTimeout = 30 * time.Second
)

// Adapter wraps a Genkit ai.Embedder behind the pipeline's text -> vector
// contract. Safe for concurrent use.
type Adapter struct {
	embedder  ai.Embedder
	dimension int
	batchSize int
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBatchSize overrides the per-request batch size.
func WithBatchSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// New creates an Adapter around a Genkit embedder. dimension is the vector
// length the deployment expects; every returned vector is validated against
// it so a misconfigured model is caught at ingestion, not at query time.
func New(embedder ai.Embedder, dimension int, logger *slog.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Adapter{
		embedder:  embedder,
		dimension: dimension,
		batchSize: DefaultBatchSize,
		timeout:   DefaultTimeout,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Dimension returns the configured vector dimensionality.
func (a *Adapter) Dimension() int {
	return a.dimension
}

// Embed returns one vector per input text, in input order. Inputs are sent
// upstream in batches; results are never reordered relative to the input.
// An empty input yields an empty result without an upstream call.
func (a *Adapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += a.batchSize {
		end := min(start+a.batchSize, len(texts))

		batch, err := a.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// EmbedOne embeds a single text. Used for queries.
func (a *Adapter) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := a.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (a *Adapter) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := a.embedder.Embed(callCtx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s: %w", ErrUnavailable, a.timeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrUnavailable, len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) != a.dimension {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, want %d", ErrUnavailable, i, len(emb.Embedding), a.dimension)
		}
		vectors[i] = emb.Embedding
	}

	a.logger.Debug("embedded batch", "texts", len(texts), "dimension", a.dimension)
	return vectors, nil
}
