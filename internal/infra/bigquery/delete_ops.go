package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/cheque-tally/internal/store"
)

// DeleteSession implements store.SessionStore. Callers delete the session's
// documents first.
func (r *Repository) DeleteSession(ctx context.Context, sessionID string) error {
	n, err := r.runDML(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE session_id = @session_id
	`, r.table(sessionsTable)), []bigquery.QueryParameter{
		{Name: "session_id", Value: sessionID},
	})
	if err != nil {
		return fmt.Errorf("DeleteSession: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("DeleteSession: %s: %w", sessionID, store.ErrNotFound)
	}
	return nil
}

// DeleteDocument implements store.DocumentStore.
func (r *Repository) DeleteDocument(ctx context.Context, documentID string) error {
	n, err := r.runDML(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE document_id = @document_id
	`, r.table(documentsTable)), []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
	})
	if err != nil {
		return fmt.Errorf("DeleteDocument: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("DeleteDocument: %s: %w", documentID, store.ErrNotFound)
	}
	return nil
}

// DeleteDocumentsBySession implements store.DocumentStore.
func (r *Repository) DeleteDocumentsBySession(ctx context.Context, sessionID string) error {
	_, err := r.runDML(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE session_id = @session_id
	`, r.table(documentsTable)), []bigquery.QueryParameter{
		{Name: "session_id", Value: sessionID},
	})
	if err != nil {
		return fmt.Errorf("DeleteDocumentsBySession: %w", err)
	}
	return nil
}
