package convo

import (
	"fmt"
	"sync"
	"testing"
)

func TestHistoryAppendAndRecent(t *testing.T) {
	h := NewHistory()

	if got := h.Recent("doc1", 3); got != nil {
		t.Errorf("Recent() on empty history = %v, want nil", got)
	}

	for i := 1; i <= 5; i++ {
		h.Append("doc1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), nil)
	}

	got := h.Recent("doc1", 3)
	if len(got) != 3 {
		t.Fatalf("Recent(3) returned %d exchanges, want 3", len(got))
	}
	// Oldest of the window first.
	for i, wantQ := range []string{"q3", "q4", "q5"} {
		if got[i].Question != wantQ {
			t.Errorf("Recent(3)[%d].Question = %q, want %q", i, got[i].Question, wantQ)
		}
	}

	if got := h.Recent("doc1", 10); len(got) != 5 {
		t.Errorf("Recent(10) returned %d exchanges, want all 5", len(got))
	}
	if got := h.Recent("doc1", 0); got != nil {
		t.Errorf("Recent(0) = %v, want nil", got)
	}
}

func TestHistoryPerDocument(t *testing.T) {
	h := NewHistory()

	h.Append("docA", "qa", "aa", nil)
	h.Append("docB", "qb", "ab", nil)

	if got := h.Recent("docA", 5); len(got) != 1 || got[0].Question != "qa" {
		t.Errorf("Recent(docA) = %v, want docA's exchange only", got)
	}
	if h.Len("docB") != 1 {
		t.Errorf("Len(docB) = %d, want 1", h.Len("docB"))
	}

	h.Clear("docA")
	if h.Len("docA") != 0 {
		t.Errorf("Len(docA) = %d after Clear(), want 0", h.Len("docA"))
	}
	if h.Len("docB") != 1 {
		t.Errorf("Clear(docA) affected docB, Len = %d", h.Len("docB"))
	}

	// Clearing an absent document is fine.
	h.Clear("never-seen")
}

func TestHistoryRecentReturnsCopy(t *testing.T) {
	h := NewHistory()
	h.Append("doc1", "q1", "a1", nil)

	got := h.Recent("doc1", 1)
	got[0].Question = "mutated"

	again := h.Recent("doc1", 1)
	if again[0].Question != "q1" {
		t.Errorf("stored exchange mutated through returned slice: %q", again[0].Question)
	}
}

func TestHistoryEviction(t *testing.T) {
	h := NewHistory(WithMaxTurns(3))

	for i := 1; i <= 5; i++ {
		h.Append("doc1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i), nil)
	}

	if h.Len("doc1") != 3 {
		t.Fatalf("Len() = %d, want 3 after eviction", h.Len("doc1"))
	}

	// Oldest exchanges are gone; the survivors keep their order.
	got := h.Recent("doc1", 10)
	for i, wantQ := range []string{"q3", "q4", "q5"} {
		if got[i].Question != wantQ {
			t.Errorf("Recent()[%d].Question = %q, want %q", i, got[i].Question, wantQ)
		}
	}
}

func TestHistoryCitedIDs(t *testing.T) {
	h := NewHistory()

	cited := []string{"doc_p1_c0", "doc_p2_c0"}
	h.Append("doc1", "q1", "a1", cited)

	// The stored exchange holds its own copy of the ids.
	cited[0] = "mutated"

	got := h.Recent("doc1", 1)
	if len(got) != 1 || len(got[0].Cited) != 2 {
		t.Fatalf("Recent() = %+v, want one exchange with two cited ids", got)
	}
	if got[0].Cited[0] != "doc_p1_c0" || got[0].Cited[1] != "doc_p2_c0" {
		t.Errorf("Cited = %v, want the ids as appended", got[0].Cited)
	}
}

func TestHistoryConcurrent(t *testing.T) {
	h := NewHistory(WithMaxTurns(200))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			doc := fmt.Sprintf("doc%d", n%2)
			for j := 0; j < 50; j++ {
				h.Append(doc, "q", "a", nil)
				_ = h.Recent(doc, 3)
			}
		}(i)
	}
	wg.Wait()

	if total := h.Len("doc0") + h.Len("doc1"); total != 400 {
		t.Errorf("total exchanges = %d, want 400", total)
	}
}
