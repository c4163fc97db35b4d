package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/cheque-tally/internal/api/middleware"
)

// DocumentsHandler serves stored documents to their owner.
type DocumentsHandler struct {
	documents DocumentReader
	log       zerolog.Logger
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(documents DocumentReader, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{documents: documents, log: log}
}

// GetDocument handles GET /api/documents/{id}
func (h *DocumentsHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	doc, err := h.documents.FetchOwned(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, doc)
}
