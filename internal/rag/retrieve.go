package rag

import (
	"context"
	"fmt"

	"github.com/docchat/docchat/internal/index"
)

// Embedder turns text into vectors. Satisfied by *embed.Adapter.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Searcher answers nearest-neighbor queries against per-document
// collections. Satisfied by index implementations.
type Searcher interface {
	Create(ctx context.Context, docID string) error
	Insert(ctx context.Context, docID string, entries []index.Entry) error
	Query(ctx context.Context, docID string, vector []float32, k int) ([]index.Result, error)
	Drop(ctx context.Context, docID string) error
}

// previewLen is the maximum number of runes carried into a citation
// preview.
const previewLen = 200

// Citation points an answer back at a retrieved chunk.
type Citation struct {
	// ChunkID identifies the cited chunk within the document.
	ChunkID string `json:"chunk_id"`

	// PageNum is the 1-based page the chunk came from.
	PageNum int `json:"page_num"`

	// Similarity is the cosine similarity between the question and the
	// chunk.
	Similarity float64 `json:"similarity"`

	// Preview is the first part of the chunk text, truncated to 200
	// runes.
	Preview string `json:"preview"`
}

// retrieve embeds the question and returns the topK closest chunks from
// the document's collection, most similar first.
func (p *Pipeline) retrieve(ctx context.Context, docID, question string) ([]index.Result, error) {
	vec, err := p.embedder.EmbedOne(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := p.index.Query(ctx, docID, vec, p.topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	p.logger.Debug("chunks retrieved", "doc_id", docID, "count", len(results))
	return results, nil
}

// citationsFrom maps retrieved chunks to citations, preserving rank order.
func citationsFrom(results []index.Result) []Citation {
	citations := make([]Citation, len(results))
	for i, r := range results {
		citations[i] = Citation{
			ChunkID:    r.ChunkID,
			PageNum:    r.PageNum,
			Similarity: r.Similarity,
			Preview:    truncateRunes(r.Text, previewLen),
		}
	}
	return citations
}

// citedChunkIDs extracts the chunk ids for the conversation log.
func citedChunkIDs(citations []Citation) []string {
	if len(citations) == 0 {
		return nil
	}
	ids := make([]string, len(citations))
	for i, c := range citations {
		ids[i] = c.ChunkID
	}
	return ids
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
