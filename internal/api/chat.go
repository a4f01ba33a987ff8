package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/docchat/docchat/internal/document"
	"github.com/docchat/docchat/internal/embed"
	"github.com/docchat/docchat/internal/log"
	"github.com/docchat/docchat/internal/rag"
)

// maxChatBytes bounds the JSON body of a chat request.
const maxChatBytes = 64 << 10 // 64 KiB

type chatHandler struct {
	service DocumentService
	logger  log.Logger
}

type chatRequest struct {
	Question string `json:"question"`
}

// ask handles POST /api/v1/documents/{id}/chat.
func (h *chatHandler) ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	answer, err := h.service.Ask(r.Context(), r.PathValue("id"), req.Question)
	if err != nil {
		h.writeAskError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

func (h *chatHandler) writeAskError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "empty_question", "question is required")
	case errors.Is(err, document.ErrNotFound):
		writeError(w, http.StatusNotFound, "document_not_found", "no such document")
	case errors.Is(err, rag.ErrDocumentNotReady):
		writeError(w, http.StatusConflict, "document_not_ready", "document is still processing or failed ingestion")
	case errors.Is(err, embed.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "embedding_unavailable", "embedding service unavailable")
	case errors.Is(err, rag.ErrGenerationUnavailable):
		writeError(w, http.StatusServiceUnavailable, "generation_unavailable", "answer generation unavailable")
	default:
		h.logger.Error("chat failed",
			"error", err, "request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal_error", "chat failed")
	}
}
