package rag

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/docchat/docchat/internal/convo"
	"github.com/docchat/docchat/internal/document"
	"github.com/docchat/docchat/internal/embed"
	"github.com/docchat/docchat/internal/index"
	"github.com/docchat/docchat/internal/testutil"
)

type testPipeline struct {
	*Pipeline
	embedder  *testutil.VectorEmbedder
	completer *testutil.Completer
	registry  *document.Memory
	index     *index.Memory
}

func newTestPipeline(t *testing.T, opts ...Option) *testPipeline {
	t.Helper()

	vecEmb := &testutil.VectorEmbedder{Dim: index.VectorDimension}
	adapter := embed.New(vecEmb, index.VectorDimension, testutil.DiscardLogger())
	idx := index.NewMemory(testutil.DiscardLogger())
	reg := document.NewMemory(testutil.DiscardLogger())
	comp := &testutil.Completer{Response: "The report covers Q3 revenue. (Page 1)"}

	p := New(adapter, idx, reg, convo.NewHistory(), comp, testutil.DiscardLogger(), opts...)

	return &testPipeline{
		Pipeline:  p,
		embedder:  vecEmb,
		completer: comp,
		registry:  reg,
		index:     idx,
	}
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	tp := newTestPipeline(t)

	pages := TextPages(
		"revenue grew twelve percent in the third quarter",
		"operating costs fell due to vendor consolidation",
	)
	doc, err := tp.Ingest(ctx, "q3-report.pdf", pages)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if doc.Status != document.StatusReady {
		t.Errorf("Status = %q, want %q", doc.Status, document.StatusReady)
	}
	if doc.Pages != 2 {
		t.Errorf("Pages = %d, want 2", doc.Pages)
	}
	if doc.Chunks != 2 {
		t.Errorf("Chunks = %d, want 2 (one per short page)", doc.Chunks)
	}
	if !strings.HasPrefix(doc.ID, "q3-report-") {
		t.Errorf("ID = %q, want filename-stem prefix", doc.ID)
	}

	count, err := tp.index.Count(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("index Count() = %d, want 2", count)
	}
}

func TestIngestSameContentTwice(t *testing.T) {
	ctx := context.Background()
	tp := newTestPipeline(t)

	pages := TextPages("some page content here")
	if _, err := tp.Ingest(ctx, "report.pdf", pages); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	// Identical file maps to the identical id, so a second upload is
	// rejected rather than duplicated.
	_, err := tp.Ingest(ctx, "report.pdf", pages)
	if !errors.Is(err, document.ErrExists) {
		t.Errorf("Ingest() twice error = %v, want document.ErrExists", err)
	}
}

func TestIngestNoContent(t *testing.T) {
	ctx := context.Background()
	tp := newTestPipeline(t)

	_, err := tp.Ingest(ctx, "blank.pdf", TextPages("", "   ", "\n\t"))
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("Ingest() error = %v, want ErrNoContent", err)
	}

	// The registry keeps the failed record with the reason.
	docID := MakeDocID("blank.pdf", TextPages("", "   ", "\n\t"))
	doc, err := tp.registry.Get(ctx, docID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Status != document.StatusFailed {
		t.Errorf("Status = %q, want %q", doc.Status, document.StatusFailed)
	}
	if doc.Error == "" {
		t.Error("failure reason not recorded")
	}

	// Failed documents are not queryable.
	_, err = tp.Ask(ctx, docID, "anything")
	if !errors.Is(err, ErrDocumentNotReady) {
		t.Errorf("Ask() on failed document error = %v, want ErrDocumentNotReady", err)
	}
}

func TestIngestEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	tp := newTestPipeline(t)
	tp.embedder.Err = errors.New("connection refused")

	pages := TextPages("content that will never be embedded")
	_, err := tp.Ingest(ctx, "doomed.pdf", pages)
	if !errors.Is(err, embed.ErrUnavailable) {
		t.Fatalf("Ingest() error = %v, want embed.ErrUnavailable", err)
	}

	docID := MakeDocID("doomed.pdf", pages)
	doc, err := tp.registry.Get(ctx, docID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Status != document.StatusFailed {
		t.Errorf("Status = %q, want %q", doc.Status, document.StatusFailed)
	}

	// No collection was left behind.
	exists, err := tp.index.Exists(ctx, docID)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("index collection exists after failed ingestion")
	}
}

func TestIngestSideData(t *testing.T) {
	ctx := context.Background()
	tp := newTestPipeline(t)

	table := json.RawMessage(`{"tables":[["qty","price"],["2","9.99"]]}`)
	pages := []Page{
		{Text: "invoice line items listed below"},
		{Text: "totals and tax summary", SideData: table},
	}

	doc, err := tp.Ingest(ctx, "invoice.pdf", pages)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	// Side-data rides on the registry record, untouched and aligned
	// with page order.
	if len(doc.SideData) != 2 {
		t.Fatalf("SideData has %d entries, want 2", len(doc.SideData))
	}
	if len(doc.SideData[0]) != 0 {
		t.Errorf("SideData[0] = %q, want empty", doc.SideData[0])
	}
	if string(doc.SideData[1]) != string(table) {
		t.Errorf("SideData[1] = %q, want %q", doc.SideData[1], table)
	}

	// Side-data is never indexed: one chunk per short page, nothing more.
	count, err := tp.index.Count(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("index Count() = %d, want 2", count)
	}

	// Identity comes from the page texts alone.
	textOnly := TextPages("invoice line items listed below", "totals and tax summary")
	if MakeDocID("invoice.pdf", pages) != MakeDocID("invoice.pdf", textOnly) {
		t.Error("MakeDocID changed with side-data")
	}
}

func TestAskSelfRetrieval(t *testing.T) {
	ctx := context.Background()
	tp := newTestPipeline(t)

	// Short pages yield one chunk each whose text is the full page, so a
	// question identical to a page's text must retrieve that chunk first
	// with similarity 1.
	pages := TextPages(
		"the warranty lasts twenty four months from purchase",
		"returns require the original receipt and packaging",
		"support is available on weekdays nine to five",
	)
	doc, err := tp.Ingest(ctx, "policy.pdf", pages)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	ans, err := tp.Ask(ctx, doc.ID, pages[1].Text)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if ans.Text == "" {
		t.Error("Answer.Text is empty")
	}
	if len(ans.Citations) != 3 {
		t.Fatalf("got %d citations, want 3", len(ans.Citations))
	}

	top := ans.Citations[0]
	if top.PageNum != 2 {
		t.Errorf("top citation PageNum = %d, want 2", top.PageNum)
	}
	if top.Similarity < 0.999 {
		t.Errorf("top citation Similarity = %f, want ~1.0", top.Similarity)
	}
	if !strings.HasPrefix(pages[1].Text, top.Preview) {
		t.Errorf("Preview = %q is not a prefix of the chunk text", top.Preview)
	}

	for i := 1; i < len(ans.Citations); i++ {
		if ans.Citations[i].Similarity > ans.Citations[i-1].Similarity {
			t.Errorf("citations not in descending similarity order at %d", i)
		}
	}

	// The prompt sent to the model carries the retrieved excerpt.
	prompt := tp.completer.LastPrompt()
	if !strings.Contains(prompt, pages[1].Text) {
		t.Error("prompt does not contain the best-matching excerpt")
	}
	if !strings.Contains(prompt, pages[1].Text[:20]) {
		t.Error("prompt does not contain the question context")
	}
}

func TestAskCitationsMatchPrompt(t *testing.T) {
	ctx := context.Background()

	pages := TextPages(
		"shipping takes three to five business days",
		"the warranty lasts twenty four months from purchase",
		"support is available on weekdays nine to five",
	)

	// Budget fits exactly one excerpt, so assembly drops the two
	// lower-similarity chunks and only the surviving one may be cited.
	budget := sectionSize([]string{"[Page 2] " + pages[1].Text})
	tp := newTestPipeline(t, WithTopK(3), WithContextBudget(budget))

	doc, err := tp.Ingest(ctx, "policy.pdf", pages)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	ans, err := tp.Ask(ctx, doc.ID, pages[1].Text)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if len(ans.Citations) != 1 {
		t.Fatalf("got %d citations, want 1", len(ans.Citations))
	}
	if ans.Citations[0].PageNum != 2 {
		t.Errorf("citation PageNum = %d, want 2", ans.Citations[0].PageNum)
	}

	prompt := tp.completer.LastPrompt()
	if !strings.Contains(prompt, pages[1].Text) {
		t.Error("prompt does not contain the surviving excerpt")
	}
	if strings.Contains(prompt, pages[0].Text) || strings.Contains(prompt, pages[2].Text) {
		t.Error("prompt contains an excerpt that was dropped for budget")
	}

	// The recorded exchange carries only the surviving chunk's id.
	recent := tp.history.Recent(doc.ID, 1)
	if len(recent) != 1 {
		t.Fatalf("got %d history turns, want 1", len(recent))
	}
	if len(recent[0].Cited) != 1 || recent[0].Cited[0] != ans.Citations[0].ChunkID {
		t.Errorf("Cited = %v, want [%s]", recent[0].Cited, ans.Citations[0].ChunkID)
	}
}

func TestAskErrors(t *testing.T) {
	ctx := context.Background()
	tp := newTestPipeline(t)

	doc, err := tp.Ingest(ctx, "doc.pdf", TextPages("some indexed content"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	t.Run("unknown document", func(t *testing.T) {
		_, err := tp.Ask(ctx, "no-such-doc", "question")
		if !errors.Is(err, document.ErrNotFound) {
			t.Errorf("Ask() error = %v, want document.ErrNotFound", err)
		}
	})

	t.Run("empty question", func(t *testing.T) {
		_, err := tp.Ask(ctx, doc.ID, "   ")
		if !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("Ask() error = %v, want ErrEmptyQuestion", err)
		}
	})

	t.Run("generation unavailable", func(t *testing.T) {
		tp.completer.Err = errors.New("model overloaded")
		defer func() { tp.completer.Err = nil }()

		_, err := tp.Ask(ctx, doc.ID, "a question")
		if !errors.Is(err, ErrGenerationUnavailable) {
			t.Errorf("Ask() error = %v, want ErrGenerationUnavailable", err)
		}
	})

	t.Run("empty model response", func(t *testing.T) {
		tp.completer.Response = "   "
		defer func() { tp.completer.Response = "an answer" }()

		_, err := tp.Ask(ctx, doc.ID, "a question")
		if !errors.Is(err, ErrGenerationUnavailable) {
			t.Errorf("Ask() error = %v, want ErrGenerationUnavailable", err)
		}
	})
}

func TestAskHistoryFlow(t *testing.T) {
	ctx := context.Background()
	tp := newTestPipeline(t, WithHistoryTurns(2))

	doc, err := tp.Ingest(ctx, "doc.pdf", TextPages("chapter one content", "chapter two content"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	questions := []string{"first question", "second question", "third question"}
	for _, q := range questions {
		if _, err := tp.Ask(ctx, doc.ID, q); err != nil {
			t.Fatalf("Ask(%q) error = %v", q, err)
		}
	}

	// The third prompt carries the last two exchanges only.
	prompt := tp.completer.LastPrompt()
	if strings.Contains(prompt, "first question") {
		t.Error("prompt contains an exchange beyond the history window")
	}
	if !strings.Contains(prompt, "second question") {
		t.Error("prompt missing the previous exchange")
	}
	if !strings.Contains(prompt, "Previous conversation:") {
		t.Error("prompt missing the history section")
	}
}

func TestAskFailedGenerationLeavesNoHistory(t *testing.T) {
	ctx := context.Background()
	tp := newTestPipeline(t)

	doc, err := tp.Ingest(ctx, "doc.pdf", TextPages("indexed content"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	tp.completer.Err = errors.New("down")
	if _, err := tp.Ask(ctx, doc.ID, "will fail"); !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("Ask() error = %v, want ErrGenerationUnavailable", err)
	}
	tp.completer.Err = nil

	if _, err := tp.Ask(ctx, doc.ID, "will succeed"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	// The failed exchange must not appear as history.
	prompt := tp.completer.LastPrompt()
	if strings.Contains(prompt, "will fail") {
		t.Error("failed exchange leaked into conversation history")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	tp := newTestPipeline(t)

	pages := TextPages("content to be deleted")
	doc, err := tp.Ingest(ctx, "temp.pdf", pages)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if _, err := tp.Ask(ctx, doc.ID, "a question"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if err := tp.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := tp.Ask(ctx, doc.ID, "a question"); !errors.Is(err, document.ErrNotFound) {
		t.Errorf("Ask() after Delete() error = %v, want document.ErrNotFound", err)
	}

	// Repeated deletes succeed.
	if err := tp.Delete(ctx, doc.ID); err != nil {
		t.Errorf("Delete() twice error = %v, want nil", err)
	}

	// The same content can be re-ingested, with fresh history.
	doc2, err := tp.Ingest(ctx, "temp.pdf", pages)
	if err != nil {
		t.Fatalf("Ingest() after Delete() error = %v", err)
	}
	if doc2.ID != doc.ID {
		t.Errorf("re-ingested id = %q, want %q", doc2.ID, doc.ID)
	}
	if _, err := tp.Ask(ctx, doc2.ID, "another question"); err != nil {
		t.Fatalf("Ask() after re-ingest error = %v", err)
	}
	if strings.Contains(tp.completer.LastPrompt(), "Previous conversation:") {
		t.Error("history survived document deletion")
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	tp := newTestPipeline(t)

	docs, err := tp.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("List() on empty registry returned %d documents", len(docs))
	}

	for _, name := range []string{"a.pdf", "b.pdf"} {
		if _, err := tp.Ingest(ctx, name, TextPages("content of "+name)); err != nil {
			t.Fatalf("Ingest(%q) error = %v", name, err)
		}
	}

	docs, err = tp.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("List() returned %d documents, want 2", len(docs))
	}
}

func TestCrossDocumentIsolation(t *testing.T) {
	ctx := context.Background()
	tp := newTestPipeline(t)

	docA, err := tp.Ingest(ctx, "a.pdf", TextPages("alpha document content"))
	if err != nil {
		t.Fatalf("Ingest(a) error = %v", err)
	}
	if _, err := tp.Ingest(ctx, "b.pdf", TextPages("beta document content")); err != nil {
		t.Fatalf("Ingest(b) error = %v", err)
	}

	// Asking docA with docB's exact text must only surface docA's chunks.
	ans, err := tp.Ask(ctx, docA.ID, "beta document content")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	for _, c := range ans.Citations {
		if !strings.HasPrefix(c.ChunkID, docA.ID) {
			t.Errorf("citation %q crosses document boundary", c.ChunkID)
		}
	}
}

func TestMakeDocID(t *testing.T) {
	pages := TextPages("page one", "page two")

	id1 := MakeDocID("My Report (final).PDF", pages)
	id2 := MakeDocID("My Report (final).PDF", pages)
	if id1 != id2 {
		t.Errorf("MakeDocID not deterministic: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, "my-report--final-") {
		t.Errorf("MakeDocID = %q, want sanitized stem prefix", id1)
	}

	// Different content under the same filename gets a different id.
	id3 := MakeDocID("My Report (final).PDF", TextPages("other content"))
	if id3 == id1 {
		t.Error("MakeDocID ignored page content")
	}

	// Page boundaries matter.
	id4 := MakeDocID("x.pdf", TextPages("ab", "c"))
	id5 := MakeDocID("x.pdf", TextPages("a", "bc"))
	if id4 == id5 {
		t.Error("MakeDocID collides across different page splits")
	}

	if got := MakeDocID("....pdf", pages); !strings.HasPrefix(got, "doc-") {
		t.Errorf("MakeDocID with empty stem = %q, want doc- prefix", got)
	}
}

func TestChunkID(t *testing.T) {
	if got := ChunkID("report-a1b2", 3, 7); got != "report-a1b2_p3_c7" {
		t.Errorf("ChunkID() = %q, want report-a1b2_p3_c7", got)
	}
}
