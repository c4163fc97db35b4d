package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/cheque-tally/internal/api/middleware"
	"github.com/dvloznov/cheque-tally/internal/document"
	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/gcsuploader"
	"github.com/dvloznov/cheque-tally/internal/pipeline"
)

// pdfMagic opens every PDF file.
var pdfMagic = []byte("%PDF")

// DocumentCreator is the document lifecycle API the upload endpoints need.
type DocumentCreator interface {
	CheckSlot(ctx context.Context, sessionID, userID string, kind domain.DocumentKind) error
	Create(ctx context.Context, in document.CreateInput) (*domain.Document, error)
}

// UploadsHandler accepts company and bank PDFs for a session.
type UploadsHandler struct {
	documents DocumentCreator
	extractor pipeline.TextExtractor
	// storage is optional; without it uploads are not archived.
	storage  gcsuploader.StorageService
	maxBytes int64
	log      zerolog.Logger
}

// NewUploadsHandler creates a new uploads handler. storage may be nil.
func NewUploadsHandler(documents DocumentCreator, extractor pipeline.TextExtractor, storage gcsuploader.StorageService, maxBytes int64, log zerolog.Logger) *UploadsHandler {
	return &UploadsHandler{
		documents: documents,
		extractor: extractor,
		storage:   storage,
		maxBytes:  maxBytes,
		log:       log,
	}
}

// UploadCompany handles POST /api/sessions/{id}/upload-company
func (h *UploadsHandler) UploadCompany(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, domain.DocumentKindCompany)
}

// UploadBank handles POST /api/sessions/{id}/upload-bank
func (h *UploadsHandler) UploadBank(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, domain.DocumentKindBank)
}

func (h *UploadsHandler) upload(w http.ResponseWriter, r *http.Request, kind domain.DocumentKind) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	sessionID := r.PathValue("id")
	log := h.log.With().
		Str("request_id", middleware.RequestIDFrom(ctx)).
		Str("session_id", sessionID).
		Str("document_type", string(kind)).
		Logger()

	filename, data, err := h.readPDF(w, r)
	if err != nil {
		middleware.WriteDomainError(w, log, err)
		return
	}

	if err := h.documents.CheckSlot(ctx, sessionID, userID, kind); err != nil {
		middleware.WriteDomainError(w, log, err)
		return
	}

	rawText, err := h.extractor.ExtractText(ctx, data)
	if err != nil {
		middleware.WriteDomainError(w, log, err)
		return
	}

	var sourceURI string
	if h.storage != nil {
		object := gcsuploader.ObjectName(userID, sessionID, kind, filename, time.Now().UTC())
		sourceURI, err = h.storage.Upload(ctx, object, bytes.NewReader(data), "application/pdf")
		if err != nil {
			// Archiving is best effort.
			log.Error().Err(err).Str("object", object).Msg("Failed to archive upload")
			sourceURI = ""
		}
	}

	doc, err := h.documents.Create(ctx, document.CreateInput{
		OwnerUserID:      userID,
		SessionID:        sessionID,
		Kind:             kind,
		RawText:          rawText,
		OriginalFilename: filename,
		SourceURI:        sourceURI,
	})
	if err != nil {
		middleware.WriteDomainError(w, log, err)
		return
	}

	log.Info().
		Str("document_id", doc.DocumentID).
		Int("bytes", len(data)).
		Int("text_length", len(rawText)).
		Msg("Document uploaded and extracted")

	middleware.WriteJSON(w, http.StatusCreated, map[string]string{
		"document_id":   doc.DocumentID,
		"session_id":    sessionID,
		"document_type": string(kind),
		"status":        "uploaded_and_extracted",
	})
}

// readPDF pulls the "file" part out of a bounded multipart body and checks
// that it is a PDF by name and by content.
func (h *UploadsHandler) readPDF(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+(1<<20))
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, domain.NewError(domain.KindValidationFailure,
				fmt.Sprintf("file exceeds the %d byte limit", h.maxBytes))
		}
		return "", nil, domain.WrapError(domain.KindValidationFailure, "expected a multipart form with a file field", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, domain.WrapError(domain.KindValidationFailure, "file field is required", err)
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return "", nil, domain.NewError(domain.KindValidationFailure, "only PDF files are allowed")
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		return "", nil, domain.WrapError(domain.KindValidationFailure, "could not read uploaded file", err)
	}
	if int64(len(data)) > h.maxBytes {
		return "", nil, domain.NewError(domain.KindValidationFailure,
			fmt.Sprintf("file exceeds the %d byte limit", h.maxBytes))
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return "", nil, domain.NewError(domain.KindValidationFailure, "file content is not a PDF")
	}
	return filename, data, nil
}
