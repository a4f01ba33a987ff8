// Package chunk splits extracted page text into overlapping, bounded-size
// retrieval units.
//
// The tokenization unit is the whitespace-delimited word (strings.Fields
// semantics). Chunk windows are expressed in word tokens: with target size C
// and overlap O, chunk i covers tokens [i*(C-O), i*(C-O)+C) clipped to the
// page length. Windows are produced while i*(C-O) is still inside the page,
// so consecutive chunks overlap by exactly O tokens and the final chunk of a
// page may be shorter than C. A chunk never spans pages.
package chunk

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrInvalidConfig indicates the chunk size or overlap parameters are out of
// range. Checked with errors.Is before any chunking work begins.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

// Chunk is a bounded, page-scoped span of document text — the retrievable
// unit of the pipeline. Chunks are immutable once created.
type Chunk struct {
	// Seq is the zero-based position of the chunk within its page.
	// Storage preserves it and retrieval uses it as a tie-break.
	Seq int

	// PageNum is the 1-based page the chunk came from.
	PageNum int

	// Text is the verbatim page substring covered by the window.
	Text string

	// StartToken and EndToken delimit the word-token window [StartToken, EndToken).
	StartToken int
	EndToken   int

	// StartOffset and EndOffset are byte offsets of Text within the page text.
	StartOffset int
	EndOffset   int
}

// token is a word with its byte position in the page text.
type token struct {
	start int // byte offset of first byte
	end   int // byte offset one past last byte
}

// Split splits page text into overlapping chunks of at most chunkSize word
// tokens, consecutive chunks sharing overlap tokens. Empty or whitespace-only
// text yields no chunks. Calling Split twice on identical input yields
// structurally identical chunks.
//
// chunkSize must be positive and overlap must satisfy 0 <= overlap < chunkSize;
// otherwise ErrInvalidConfig is returned before any work is done.
func Split(pageText string, pageNum, chunkSize, overlap int) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidConfig, chunkSize, overlap)
	}

	tokens := tokenize(pageText)
	if len(tokens) == 0 {
		return nil, nil
	}

	stride := chunkSize - overlap
	chunks := make([]Chunk, 0, (len(tokens)+stride-1)/stride)

	for start, seq := 0, 0; start < len(tokens); start, seq = start+stride, seq+1 {
		end := min(start+chunkSize, len(tokens))

		startOff := tokens[start].start
		endOff := tokens[end-1].end

		chunks = append(chunks, Chunk{
			Seq:         seq,
			PageNum:     pageNum,
			Text:        pageText[startOff:endOff],
			StartToken:  start,
			EndToken:    end,
			StartOffset: startOff,
			EndOffset:   endOff,
		})
	}

	return chunks, nil
}

// tokenize scans pageText into word tokens, recording byte offsets so chunk
// text can be sliced verbatim from the page.
func tokenize(s string) []token {
	var tokens []token
	inWord := false
	start := 0

	for i, r := range s {
		if unicode.IsSpace(r) {
			if inWord {
				tokens = append(tokens, token{start: start, end: i})
				inWord = false
			}
			continue
		}
		if !inWord {
			start = i
			inWord = true
		}
	}
	if inWord {
		tokens = append(tokens, token{start: start, end: len(s)})
	}

	return tokens
}
