package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/cheque-tally/internal/api/middleware"
	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/report"
)

// SessionService is the session lifecycle API the endpoints need.
type SessionService interface {
	Create(ctx context.Context, ownerUserID, name string) (*domain.Session, error)
	Get(ctx context.Context, sessionID, userID string) (*domain.Session, error)
	List(ctx context.Context, userID string) ([]*domain.Session, error)
	Delete(ctx context.Context, sessionID, userID string) error
}

// DocumentReader fetches documents for their owner.
type DocumentReader interface {
	FetchOwned(ctx context.Context, documentID, userID string) (*domain.Document, error)
}

// SessionsHandler handles session CRUD and the spreadsheet report.
type SessionsHandler struct {
	sessions  SessionService
	documents DocumentReader
	log       zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(sessions SessionService, documents DocumentReader, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, documents: documents, log: log}
}

// CreateSession handles POST /api/sessions
func (h *SessionsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		SessionName string `json:"session_name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, h.log, err)
		return
	}

	sess, err := h.sessions.Create(r.Context(), userID, req.SessionName)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, sess)
}

// ListSessions handles GET /api/sessions
func (h *SessionsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	sessions, err := h.sessions.List(r.Context(), userID)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.Get(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sess)
}

// DeleteSession handles DELETE /api/sessions/{id}
func (h *SessionsHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Delete(r.Context(), r.PathValue("id"), userID); err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Report handles GET /api/sessions/{id}/report.xlsx
func (h *SessionsHandler) Report(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	sess, err := h.sessions.Get(ctx, r.PathValue("id"), userID)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	if sess.Status != domain.SessionStatusTallied || sess.CompanyDocumentID == nil {
		writeErr(w, r, h.log, domain.NewError(domain.KindSessionNotReady, "session has not been reconciled yet"))
		return
	}

	company, err := h.documents.FetchOwned(ctx, *sess.CompanyDocumentID, userID)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	if company.TallyResult == nil {
		writeErr(w, r, h.log, domain.NewError(domain.KindSessionNotReady, "session has no stored tally result"))
		return
	}

	var result domain.TallyResult
	if err := json.Unmarshal(company.TallyResult, &result); err != nil {
		writeErr(w, r, h.log, fmt.Errorf("decode stored tally result: %w", err))
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(result, &buf); err != nil {
		writeErr(w, r, h.log, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tally-%s.xlsx"`, sess.SessionID))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
