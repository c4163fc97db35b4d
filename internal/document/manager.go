// Package document owns document creation, the uploaded → structured → tallied
// progression, and the repair pass for documents left outside their session's slots.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/logger"
	"github.com/dvloznov/cheque-tally/internal/session"
	"github.com/dvloznov/cheque-tally/internal/store"
)

// CreateInput describes an extracted upload.
type CreateInput struct {
	OwnerUserID      string
	SessionID        string
	Kind             domain.DocumentKind
	RawText          string
	OriginalFilename string
	SourceURI        string
}

// Manager is the only writer of document records.
type Manager struct {
	documents store.DocumentStore
	sessions  *session.Manager
	now       func() time.Time
}

// NewManager creates a Manager.
func NewManager(documents store.DocumentStore, sessions *session.Manager) *Manager {
	return &Manager{documents: documents, sessions: sessions, now: time.Now}
}

// CheckSlot fails fast before expensive work: the session must exist, belong
// to userID and have an empty slot for kind.
func (m *Manager) CheckSlot(ctx context.Context, sessionID, userID string, kind domain.DocumentKind) error {
	sess, err := m.sessions.Get(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if sess.Slot(kind) != nil {
		return domain.NewError(domain.KindSlotAlreadyFilled,
			fmt.Sprintf("session already has a %s document", kind))
	}
	return nil
}

// Create persists a new uploaded document and attaches it to its session.
//
// If another upload fills the slot between the check and the attach, the new
// document is removed and SlotAlreadyFilled is returned. A slot that already
// holds this very document (attached by a concurrent RepairOrphans) counts as
// success. Any other attach
// failure leaves an orphan for RepairOrphans.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*domain.Document, error) {
	log := logger.FromContext(ctx)

	if err := m.CheckSlot(ctx, in.SessionID, in.OwnerUserID, in.Kind); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	doc := &domain.Document{
		DocumentID:       uuid.NewString(),
		OwnerUserID:      in.OwnerUserID,
		SessionID:        in.SessionID,
		Kind:             in.Kind,
		RawText:          in.RawText,
		Status:           domain.DocumentStatusUploaded,
		OriginalFilename: in.OriginalFilename,
		SourceURI:        in.SourceURI,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.documents.InsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("Create: inserting document: %w", err)
	}

	if _, err := m.sessions.Attach(ctx, in.SessionID, in.Kind, doc.DocumentID); err != nil {
		if errors.Is(err, domain.ErrSlotAlreadyFilled) {
			if m.slotHolds(ctx, in.SessionID, in.OwnerUserID, in.Kind, doc.DocumentID) {
				log.Info().
					Str("document_id", doc.DocumentID).
					Str("session_id", in.SessionID).
					Msg("Document already attached by repair")
				return doc, nil
			}
			if delErr := m.documents.DeleteDocument(ctx, doc.DocumentID); delErr != nil {
				log.Warn().Err(delErr).Str("document_id", doc.DocumentID).Msg("Failed to remove document after losing slot race")
			}
			return nil, err
		}
		log.Error().Err(err).
			Str("document_id", doc.DocumentID).
			Str("session_id", in.SessionID).
			Msg("Document stored but not attached; left for repair")
		return nil, err
	}

	log.Info().
		Str("document_id", doc.DocumentID).
		Str("session_id", in.SessionID).
		Str("document_type", string(in.Kind)).
		Int("raw_text_len", len(in.RawText)).
		Msg("Document created")
	return doc, nil
}

// slotHolds reports whether the session slot for kind already references documentID.
// Create and RepairOrphans both attach, so the loser of that race re-reads
// before deleting anything.
func (m *Manager) slotHolds(ctx context.Context, sessionID, userID string, kind domain.DocumentKind, documentID string) bool {
	sess, err := m.sessions.Get(ctx, sessionID, userID)
	if err != nil {
		return false
	}
	slot := sess.Slot(kind)
	return slot != nil && *slot == documentID
}

// RecordStructuring stores the structured form and marks the document structured.
func (m *Manager) RecordStructuring(ctx context.Context, documentID string, structured json.RawMessage) error {
	if structured == nil {
		return domain.NewError(domain.KindValidationFailure, "structured data is required")
	}
	err := m.documents.UpdateDocument(ctx, documentID, domain.DocumentUpdate{
		StructuredData: structured,
		Status:         domain.DocumentStatusStructured,
	}, m.now().UTC())
	if err != nil {
		return translate(err)
	}
	return nil
}

// RecordTally stores a tally result on a company document and marks it tallied.
func (m *Manager) RecordTally(ctx context.Context, documentID string, result json.RawMessage) error {
	doc, err := m.Fetch(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Kind != domain.DocumentKindCompany {
		return domain.NewError(domain.KindValidationFailure, "tally results are stored on the company document only")
	}

	err = m.documents.UpdateDocument(ctx, documentID, domain.DocumentUpdate{
		TallyResult: result,
		Status:      domain.DocumentStatusTallied,
	}, m.now().UTC())
	if err != nil {
		return translate(err)
	}
	return nil
}

// Fetch returns the document or NotFound.
func (m *Manager) Fetch(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := m.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, translate(err)
	}
	return doc, nil
}

// FetchOwned returns the document if userID owns it.
func (m *Manager) FetchOwned(ctx context.Context, documentID, userID string) (*domain.Document, error) {
	doc, err := m.Fetch(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerUserID != userID {
		return nil, domain.NewError(domain.KindNotAuthorized, "document belongs to another user")
	}
	return doc, nil
}

func translate(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.WrapError(domain.KindNotFound, "document not found", err)
	}
	return err
}
