package handlers

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/cheque-tally/internal/api/middleware"
	"github.com/dvloznov/cheque-tally/internal/document"
	"github.com/dvloznov/cheque-tally/internal/domain"
)

type MockDocumentCreator struct {
	CheckSlotFunc func(ctx context.Context, sessionID, userID string, kind domain.DocumentKind) error
	CreateFunc    func(ctx context.Context, in document.CreateInput) (*domain.Document, error)
}

func (m *MockDocumentCreator) CheckSlot(ctx context.Context, sessionID, userID string, kind domain.DocumentKind) error {
	if m.CheckSlotFunc != nil {
		return m.CheckSlotFunc(ctx, sessionID, userID, kind)
	}
	return nil
}

func (m *MockDocumentCreator) Create(ctx context.Context, in document.CreateInput) (*domain.Document, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, in)
	}
	return &domain.Document{DocumentID: "doc-1", SessionID: in.SessionID, Kind: in.Kind}, nil
}

type MockTextExtractor struct{}

func (MockTextExtractor) ExtractText(ctx context.Context, pdfBytes []byte) (string, error) {
	return "Cheque 001 ACME 100.00", nil
}

func uploadRequest(t *testing.T, sessionID string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "ledger.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.7 test"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/upload-company", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetPathValue("id", sessionID)
	return req.WithContext(middleware.WithUserID(req.Context(), "u1"))
}

func TestUpload_Created(t *testing.T) {
	h := NewUploadsHandler(&MockDocumentCreator{}, MockTextExtractor{}, nil, 1<<20, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.UploadCompany(rec, uploadRequest(t, "s1"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"uploaded_and_extracted"`)
	assert.Contains(t, rec.Body.String(), `"document_type":"company"`)
}

func TestUpload_ErrorLogCarriesRequestFields(t *testing.T) {
	var logs bytes.Buffer
	docs := &MockDocumentCreator{
		CreateFunc: func(ctx context.Context, in document.CreateInput) (*domain.Document, error) {
			return nil, errors.New("store unavailable")
		},
	}
	h := NewUploadsHandler(docs, MockTextExtractor{}, nil, 1<<20, zerolog.New(&logs))

	rec := httptest.NewRecorder()
	h.UploadCompany(rec, uploadRequest(t, "s1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	out := logs.String()
	assert.Contains(t, out, `"session_id":"s1"`)
	assert.Contains(t, out, `"document_type":"company"`)
	assert.Contains(t, out, "store unavailable")
}

func TestUpload_SlotFilledRejected(t *testing.T) {
	docs := &MockDocumentCreator{
		CheckSlotFunc: func(ctx context.Context, sessionID, userID string, kind domain.DocumentKind) error {
			return domain.NewError(domain.KindSlotAlreadyFilled, "session already has a company document")
		},
	}
	h := NewUploadsHandler(docs, MockTextExtractor{}, nil, 1<<20, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.UploadCompany(rec, uploadRequest(t, "s1"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "slot_already_filled")
}
