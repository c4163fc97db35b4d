package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/logger"
	"github.com/dvloznov/cheque-tally/internal/store"
)

// RepairReport summarises one RepairOrphans pass.
type RepairReport struct {
	Scanned    int `json:"scanned"`
	Reattached int `json:"reattached"`
	Deleted    int `json:"deleted"`
}

// RepairOrphans walks every document of ownerUserID and fixes those the
// session does not reference: it attaches them to an empty slot, or deletes
// them when the slot holds another document or the session is gone.
func (m *Manager) RepairOrphans(ctx context.Context, ownerUserID string) (RepairReport, error) {
	log := logger.FromContext(ctx)
	var report RepairReport

	docs, err := m.documents.ListDocuments(ctx, store.DocumentFilter{OwnerUserID: ownerUserID})
	if err != nil {
		return report, fmt.Errorf("RepairOrphans: listing documents: %w", err)
	}

	for _, doc := range docs {
		report.Scanned++

		sess, err := m.sessions.Get(ctx, doc.SessionID, ownerUserID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			if err := m.remove(ctx, doc); err != nil {
				return report, err
			}
			report.Deleted++
			continue
		case errors.Is(err, domain.ErrNotAuthorized):
			log.Warn().Str("document_id", doc.DocumentID).Str("session_id", doc.SessionID).
				Msg("Document references a session of another user; skipping")
			continue
		case err != nil:
			return report, fmt.Errorf("RepairOrphans: loading session %s: %w", doc.SessionID, err)
		}

		slot := sess.Slot(doc.Kind)
		switch {
		case slot != nil && *slot == doc.DocumentID:
			continue
		case slot == nil:
			_, err := m.sessions.Attach(ctx, doc.SessionID, doc.Kind, doc.DocumentID)
			if errors.Is(err, domain.ErrSlotAlreadyFilled) {
				if m.slotHolds(ctx, doc.SessionID, ownerUserID, doc.Kind, doc.DocumentID) {
					continue
				}
				if err := m.remove(ctx, doc); err != nil {
					return report, err
				}
				report.Deleted++
				continue
			}
			if err != nil {
				return report, fmt.Errorf("RepairOrphans: attaching %s: %w", doc.DocumentID, err)
			}
			report.Reattached++
			log.Info().Str("document_id", doc.DocumentID).Str("session_id", doc.SessionID).Msg("Orphan document reattached")
		default:
			if err := m.remove(ctx, doc); err != nil {
				return report, err
			}
			report.Deleted++
		}
	}

	log.Info().
		Int("scanned", report.Scanned).
		Int("reattached", report.Reattached).
		Int("deleted", report.Deleted).
		Msg("Orphan repair finished")
	return report, nil
}

func (m *Manager) remove(ctx context.Context, doc *domain.Document) error {
	err := m.documents.DeleteDocument(ctx, doc.DocumentID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("RepairOrphans: deleting %s: %w", doc.DocumentID, err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("document_id", doc.DocumentID).Str("session_id", doc.SessionID).Msg("Orphan document deleted")
	return nil
}
