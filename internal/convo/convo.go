// Package convo keeps per-document conversation history in memory.
//
// Each document has its own ordered log of question/answer exchanges,
// truncated from the oldest end once it exceeds the configured turn cap.
// History is used to give the answer generator context from earlier turns;
// it is not persisted across restarts.
package convo

import (
	"slices"
	"sync"
	"time"
)

// DefaultMaxTurns bounds how many exchanges are kept per document.
const DefaultMaxTurns = 50

// Exchange is one completed question/answer turn.
type Exchange struct {
	Question string
	Answer   string

	// Cited holds the chunk ids the answer was grounded on.
	Cited []string

	At time.Time
}

// History stores exchange logs keyed by document id. Each log keeps at
// most maxTurns exchanges; older ones are evicted on append.
type History struct {
	mu    sync.RWMutex
	turns map[string][]Exchange

	maxTurns int
	now      func() time.Time
}

// Option configures a History.
type Option func(*History)

// WithMaxTurns overrides how many exchanges are retained per document.
func WithMaxTurns(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.maxTurns = n
		}
	}
}

// NewHistory creates an empty history store.
func NewHistory(opts ...Option) *History {
	h := &History{
		turns:    make(map[string][]Exchange),
		maxTurns: DefaultMaxTurns,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Append records a completed exchange for the document, evicting the
// oldest exchanges once the log exceeds the configured turn cap. cited
// lists the chunk ids the answer was grounded on; the slice is copied.
func (h *History) Append(docID, question, answer string, cited []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	log := append(h.turns[docID], Exchange{
		Question: question,
		Answer:   answer,
		Cited:    slices.Clone(cited),
		At:       h.now(),
	})
	if excess := len(log) - h.maxTurns; excess > 0 {
		log = append(log[:0], log[excess:]...)
	}
	h.turns[docID] = log
}

// Recent returns the last n exchanges for the document, oldest first.
// If fewer than n exist, all are returned. The slice is a copy.
func (h *History) Recent(docID string, n int) []Exchange {
	h.mu.RLock()
	defer h.mu.RUnlock()

	log := h.turns[docID]
	if n <= 0 || len(log) == 0 {
		return nil
	}
	if n > len(log) {
		n = len(log)
	}

	out := make([]Exchange, n)
	copy(out, log[len(log)-n:])
	return out
}

// Len returns the number of exchanges recorded for the document.
func (h *History) Len(docID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns[docID])
}

// Clear discards the document's history. Clearing an absent document is
// a no-op.
func (h *History) Clear(docID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, docID)
}
