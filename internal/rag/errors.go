package rag

import "errors"

// Sentinel errors for pipeline operations. Match with errors.Is.
var (
	// ErrGenerationUnavailable indicates the language model could not be
	// reached or did not produce an answer. Retrieval results are
	// discarded; no partial answer is returned.
	ErrGenerationUnavailable = errors.New("rag: generation unavailable")

	// ErrDocumentNotReady indicates the document exists but has not
	// finished ingestion, or ingestion failed.
	ErrDocumentNotReady = errors.New("rag: document not ready")

	// ErrEmptyQuestion indicates the question was empty or whitespace.
	ErrEmptyQuestion = errors.New("rag: empty question")

	// ErrNoContent indicates ingestion found no extractable text in any
	// page of the document.
	ErrNoContent = errors.New("rag: document has no extractable text")
)
