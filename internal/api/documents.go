package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/docchat/docchat/internal/chunk"
	"github.com/docchat/docchat/internal/document"
	"github.com/docchat/docchat/internal/embed"
	"github.com/docchat/docchat/internal/log"
	"github.com/docchat/docchat/internal/rag"
)

// maxUploadBytes bounds the JSON body of a document upload.
const maxUploadBytes = 32 << 20 // 32 MiB

// DocumentService is the pipeline surface the handlers need. Satisfied
// by *rag.Pipeline.
type DocumentService interface {
	Ingest(ctx context.Context, filename string, pages []rag.Page) (document.Document, error)
	Get(ctx context.Context, docID string) (document.Document, error)
	List(ctx context.Context) ([]document.Document, error)
	Delete(ctx context.Context, docID string) error
	Ask(ctx context.Context, docID, question string) (rag.Answer, error)
}

type documentHandler struct {
	service DocumentService
	logger  log.Logger
}

type uploadRequest struct {
	Filename string `json:"filename"`

	// Pages accepts plain strings or {text, side_data} objects.
	Pages []rag.Page `json:"pages"`
}

// upload handles POST /api/v1/documents. The body carries the filename
// and the extracted pages; text extraction happens client-side or in
// the CLI, keeping the server a pure pipeline front.
func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "missing_filename", "filename is required")
		return
	}
	if len(req.Pages) == 0 {
		writeError(w, http.StatusBadRequest, "missing_pages", "at least one page is required")
		return
	}

	doc, err := h.service.Ingest(r.Context(), req.Filename, req.Pages)
	if err != nil {
		h.writeIngestError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *documentHandler) writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, document.ErrExists):
		writeError(w, http.StatusConflict, "document_exists", "this document has already been ingested")
	case errors.Is(err, rag.ErrNoContent):
		writeError(w, http.StatusUnprocessableEntity, "no_content", "document has no extractable text")
	case errors.Is(err, chunk.ErrInvalidConfig):
		writeError(w, http.StatusInternalServerError, "internal_error", "chunking misconfigured")
	case errors.Is(err, embed.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "embedding_unavailable", "embedding service unavailable")
	default:
		h.logger.Error("ingestion failed",
			"error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "ingestion failed")
	}
}

// list handles GET /api/v1/documents.
func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("listing documents failed",
			"error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "listing documents failed")
		return
	}
	if docs == nil {
		docs = []document.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// get handles GET /api/v1/documents/{id}.
func (h *documentHandler) get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document_not_found", "no such document")
			return
		}
		h.logger.Error("fetching document failed",
			"error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "fetching document failed")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// delete handles DELETE /api/v1/documents/{id}. Deletion is idempotent:
// deleting an unknown document returns 204 as well.
func (h *documentHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.logger.Error("deleting document failed",
			"error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "deleting document failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
