package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docchat/docchat/internal/chunk"
	"github.com/docchat/docchat/internal/convo"
	"github.com/docchat/docchat/internal/document"
	"github.com/docchat/docchat/internal/index"
	"github.com/docchat/docchat/internal/log"
)

// Pipeline defaults. Chunk windows are measured in word tokens.
const (
	DefaultChunkSize     = 500
	DefaultOverlap       = 50
	DefaultTopK          = 5
	DefaultHistoryTurns  = 3
	DefaultContextBudget = 12000
)

// Pipeline wires chunking, embedding, indexing, history, and generation
// into the ingest and ask operations.
type Pipeline struct {
	embedder  Embedder
	index     Searcher
	registry  document.Registry
	history   *convo.History
	completer Completer
	logger    log.Logger

	chunkSize     int
	overlap       int
	topK          int
	historyTurns  int
	contextBudget int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithChunking overrides the chunk window size and overlap.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) {
		p.chunkSize = size
		p.overlap = overlap
	}
}

// WithTopK overrides how many chunks are retrieved per question.
func WithTopK(k int) Option {
	return func(p *Pipeline) { p.topK = k }
}

// WithHistoryTurns overrides how many past exchanges feed the prompt.
func WithHistoryTurns(n int) Option {
	return func(p *Pipeline) { p.historyTurns = n }
}

// WithContextBudget overrides the character budget for the prompt's
// excerpt and history sections.
func WithContextBudget(chars int) Option {
	return func(p *Pipeline) { p.contextBudget = chars }
}

// New creates a Pipeline with the given collaborators.
func New(embedder Embedder, idx Searcher, registry document.Registry, history *convo.History, completer Completer, logger log.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		embedder:      embedder,
		index:         idx,
		registry:      registry,
		history:       history,
		completer:     completer,
		logger:        logger,
		chunkSize:     DefaultChunkSize,
		overlap:       DefaultOverlap,
		topK:          DefaultTopK,
		historyTurns:  DefaultHistoryTurns,
		contextBudget: DefaultContextBudget,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest chunks, embeds, and indexes a document's pages. pages are
// 1-based in order; empty pages produce no chunks. Page side-data is
// recorded on the registry record untouched and never indexed.
//
// The document is registered in processing state first, then transitions
// to ready on success or failed on any error. A failed document is never
// partially queryable: the collection is dropped on failure.
func (p *Pipeline) Ingest(ctx context.Context, filename string, pages []Page) (document.Document, error) {
	docID := MakeDocID(filename, pages)

	doc := document.Document{
		ID:       docID,
		Filename: filename,
		Pages:    len(pages),
		SideData: sideData(pages),
	}
	if err := p.registry.Register(ctx, doc); err != nil {
		return document.Document{}, fmt.Errorf("ingest %q: %w", filename, err)
	}

	p.logger.Info("ingestion started", "doc_id", docID, "filename", filename, "pages", len(pages))

	entries, err := p.prepareEntries(ctx, docID, pages)
	if err != nil {
		p.failIngestion(ctx, docID, err)
		return document.Document{}, fmt.Errorf("ingest %q: %w", filename, err)
	}

	if err := p.index.Create(ctx, docID); err != nil {
		p.failIngestion(ctx, docID, err)
		return document.Document{}, fmt.Errorf("ingest %q: %w", filename, err)
	}
	if err := p.index.Insert(ctx, docID, entries); err != nil {
		_ = p.index.Drop(ctx, docID)
		p.failIngestion(ctx, docID, err)
		return document.Document{}, fmt.Errorf("ingest %q: %w", filename, err)
	}

	if err := p.registry.SetStatus(ctx, docID, document.StatusReady, len(entries), ""); err != nil {
		_ = p.index.Drop(ctx, docID)
		return document.Document{}, fmt.Errorf("ingest %q: %w", filename, err)
	}

	p.logger.Info("ingestion completed", "doc_id", docID, "chunks", len(entries))

	return p.registry.Get(ctx, docID)
}

// prepareEntries chunks every page and embeds the chunk texts, returning
// index entries in page-then-sequence order.
func (p *Pipeline) prepareEntries(ctx context.Context, docID string, pages []Page) ([]index.Entry, error) {
	var chunks []chunk.Chunk
	for i, page := range pages {
		pageChunks, err := chunk.Split(page.Text, i+1, p.chunkSize, p.overlap)
		if err != nil {
			return nil, fmt.Errorf("chunk page %d: %w", i+1, err)
		}
		chunks = append(chunks, pageChunks...)
	}

	if len(chunks) == 0 {
		return nil, ErrNoContent
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = index.Entry{
			ChunkID: ChunkID(docID, c.PageNum, c.Seq),
			PageNum: c.PageNum,
			Seq:     c.Seq,
			Text:    c.Text,
			Vector:  vectors[i],
		}
	}
	return entries, nil
}

func (p *Pipeline) failIngestion(ctx context.Context, docID string, cause error) {
	if err := p.registry.SetStatus(ctx, docID, document.StatusFailed, 0, cause.Error()); err != nil {
		p.logger.Error("failed to record ingestion failure", "doc_id", docID, "error", err)
	}
	p.logger.Warn("ingestion failed", "doc_id", docID, "error", cause)
}

// Ask answers a question about a ready document. The question is embedded
// and the closest chunks retrieved from the document's collection; recent
// history and the excerpts are assembled into a single generation request.
// The exchange is recorded in history only after a successful answer.
func (p *Pipeline) Ask(ctx context.Context, docID, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	doc, err := p.registry.Get(ctx, docID)
	if err != nil {
		return Answer{}, fmt.Errorf("ask %q: %w", docID, err)
	}
	if doc.Status != document.StatusReady {
		return Answer{}, fmt.Errorf("ask %q: status %s: %w", docID, doc.Status, ErrDocumentNotReady)
	}

	results, err := p.retrieve(ctx, docID, question)
	if err != nil {
		return Answer{}, fmt.Errorf("ask %q: %w", docID, err)
	}

	history := p.history.Recent(docID, p.historyTurns)
	prompt, included := assemblePrompt(doc.Filename, question, results, history, p.contextBudget)

	text, err := p.generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("ask %q: %w", docID, err)
	}

	citations := citationsFrom(included)
	p.history.Append(docID, question, text, citedChunkIDs(citations))

	p.logger.Info("question answered", "doc_id", docID, "citations", len(citations))

	return Answer{
		Text:      text,
		Citations: citations,
	}, nil
}

// Get returns a document's registry record.
func (p *Pipeline) Get(ctx context.Context, docID string) (document.Document, error) {
	return p.registry.Get(ctx, docID)
}

// List returns all registered documents, oldest first.
func (p *Pipeline) List(ctx context.Context) ([]document.Document, error) {
	return p.registry.List(ctx)
}

// Delete removes a document's collection, registry record, and
// conversation history. Deleting an unknown document is a no-op, so
// repeated deletes succeed.
func (p *Pipeline) Delete(ctx context.Context, docID string) error {
	if err := p.index.Drop(ctx, docID); err != nil {
		return fmt.Errorf("delete %q: %w", docID, err)
	}
	if err := p.registry.Remove(ctx, docID); err != nil {
		return fmt.Errorf("delete %q: %w", docID, err)
	}
	p.history.Clear(docID)

	p.logger.Info("document deleted", "doc_id", docID)
	return nil
}

// sideData collects the per-page side-data blobs, aligned with page
// order. Returns nil when no page carries any.
func sideData(pages []Page) []json.RawMessage {
	any := false
	for _, page := range pages {
		if len(page.SideData) > 0 {
			any = true
			break
		}
	}
	if !any {
		return nil
	}

	side := make([]json.RawMessage, len(pages))
	for i, page := range pages {
		side[i] = page.SideData
	}
	return side
}

// MakeDocID derives a stable document id from the filename stem and a
// digest of the page texts. The same file uploaded twice maps to the
// same id; side-data does not participate in identity.
func MakeDocID(filename string, pages []Page) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = sanitizeStem(stem)

	h := sha256.New()
	for _, page := range pages {
		h.Write([]byte(page.Text))
		h.Write([]byte{0})
	}
	digest := hex.EncodeToString(h.Sum(nil))[:8]

	return stem + "-" + digest
}

// ChunkID names a chunk within its document: {doc}_p{page}_c{seq}.
func ChunkID(docID string, pageNum, seq int) string {
	return fmt.Sprintf("%s_p%d_c%d", docID, pageNum, seq)
}

// sanitizeStem lowercases the stem and replaces anything outside
// [a-z0-9-] with a hyphen, keeping ids URL- and log-friendly.
func sanitizeStem(stem string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(stem) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "doc"
	}
	return out
}
