// Package session owns the session state machine: slot filling, status
// derivation and the terminal tallied flag.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/logger"
	"github.com/dvloznov/cheque-tally/internal/store"
)

// MaxNameLength bounds session names, counted in runes.
const MaxNameLength = 200

// Manager applies session transitions through the store's conditional updates.
type Manager struct {
	sessions  store.SessionStore
	documents store.DocumentStore
	now       func() time.Time
}

// NewManager creates a Manager.
func NewManager(sessions store.SessionStore, documents store.DocumentStore) *Manager {
	return &Manager{sessions: sessions, documents: documents, now: time.Now}
}

// Create starts a new session in the created state.
func (m *Manager) Create(ctx context.Context, ownerUserID, name string) (*domain.Session, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > MaxNameLength {
		return nil, domain.NewError(domain.KindValidationFailure,
			fmt.Sprintf("session name must be 1-%d characters", MaxNameLength))
	}

	now := m.now().UTC()
	sess := &domain.Session{
		SessionID:   uuid.NewString(),
		OwnerUserID: ownerUserID,
		Name:        name,
		Status:      domain.SessionStatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.sessions.InsertSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("session_id", sess.SessionID).
		Str("user_id", ownerUserID).
		Msg("Session created")
	return sess, nil
}

// Get returns the session if userID owns it.
func (m *Manager) Get(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	sess, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, translate(err, "session not found")
	}
	if sess.OwnerUserID != userID {
		return nil, domain.NewError(domain.KindNotAuthorized, "session belongs to another user")
	}
	return sess, nil
}

// List returns the user's sessions, newest first.
func (m *Manager) List(ctx context.Context, userID string) ([]*domain.Session, error) {
	sessions, err := m.sessions.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return sessions, nil
}

// AttachCompanyDocument fills the company slot.
func (m *Manager) AttachCompanyDocument(ctx context.Context, sessionID, documentID string) (*domain.Session, error) {
	return m.Attach(ctx, sessionID, domain.DocumentKindCompany, documentID)
}

// AttachBankDocument fills the bank slot.
func (m *Manager) AttachBankDocument(ctx context.Context, sessionID, documentID string) (*domain.Session, error) {
	return m.Attach(ctx, sessionID, domain.DocumentKindBank, documentID)
}

// Attach fills the slot for kind. A filled slot is never replaced: the second
// caller gets SlotAlreadyFilled even when both race.
func (m *Manager) Attach(ctx context.Context, sessionID string, kind domain.DocumentKind, documentID string) (*domain.Session, error) {
	sess, err := m.sessions.AttachDocument(ctx, sessionID, kind, documentID, m.now().UTC())
	if errors.Is(err, store.ErrConflict) {
		return nil, domain.WrapError(domain.KindSlotAlreadyFilled,
			fmt.Sprintf("session already has a %s document", kind), err)
	}
	if err != nil {
		return nil, translate(err, "session not found")
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("session_id", sessionID).
		Str("document_id", documentID).
		Str("document_type", string(kind)).
		Str("status", string(sess.Status)).
		Msg("Document attached to session")
	return sess, nil
}

// MarkTallied moves a complete session to tallied. A session that is already
// tallied stays tallied so reconciliation can be re-run.
func (m *Manager) MarkTallied(ctx context.Context, sessionID string) error {
	err := m.sessions.UpdateSessionStatus(ctx, sessionID,
		[]domain.SessionStatus{domain.SessionStatusComplete, domain.SessionStatusTallied},
		domain.SessionStatusTallied, m.now().UTC())
	if errors.Is(err, store.ErrConflict) {
		return domain.WrapError(domain.KindSessionNotReady,
			"both company and bank documents must be uploaded before reconciliation", err)
	}
	if err != nil {
		return translate(err, "session not found")
	}
	return nil
}

// Delete removes the session's documents and then the session. Valid from any state.
func (m *Manager) Delete(ctx context.Context, sessionID, userID string) error {
	if _, err := m.Get(ctx, sessionID, userID); err != nil {
		return err
	}
	if err := m.documents.DeleteDocumentsBySession(ctx, sessionID); err != nil {
		return fmt.Errorf("Delete: deleting documents: %w", err)
	}
	if err := m.sessions.DeleteSession(ctx, sessionID); err != nil {
		return translate(err, "session not found")
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("session_id", sessionID).
		Str("user_id", userID).
		Msg("Session deleted")
	return nil
}

// translate maps store sentinels onto domain errors.
func translate(err error, notFound string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.WrapError(domain.KindNotFound, notFound, err)
	case errors.Is(err, store.ErrConflict):
		return domain.WrapError(domain.KindConflict, "conflicting update", err)
	}
	return err
}
