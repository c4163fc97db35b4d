package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/store"
)

const documentColumns = `document_id, user_id, session_id, document_type, raw_text, structured_data, tally_result, status, original_filename, source_uri, created_at, updated_at`

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc               domain.Document
		kind, status      string
		structured, tally sql.NullString
		created, updated  string
	)
	err := row.Scan(&doc.DocumentID, &doc.OwnerUserID, &doc.SessionID, &kind, &doc.RawText,
		&structured, &tally, &status, &doc.OriginalFilename, &doc.SourceURI, &created, &updated)
	if err != nil {
		return nil, err
	}
	doc.Kind = domain.DocumentKind(kind)
	doc.Status = domain.DocumentStatus(status)
	if structured.Valid {
		doc.StructuredData = []byte(structured.String)
	}
	if tally.Valid {
		doc.TallyResult = []byte(tally.String)
	}
	if doc.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &doc, nil
}

// InsertDocument implements store.DocumentStore.
func (s *Store) InsertDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.DocumentID, doc.OwnerUserID, doc.SessionID, string(doc.Kind), doc.RawText,
		nullJSON(doc.StructuredData), nullJSON(doc.TallyResult), string(doc.Status),
		doc.OriginalFilename, doc.SourceURI, formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("InsertDocument: %s: %w", doc.DocumentID, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("InsertDocument: %w", err)
	}
	return nil
}

// GetDocument implements store.DocumentStore.
func (s *Store) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE document_id = ?`, documentID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetDocument: %s: %w", documentID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetDocument: %w", err)
	}
	return doc, nil
}

// UpdateDocument implements store.DocumentStore.
func (s *Store) UpdateDocument(ctx context.Context, documentID string, u domain.DocumentUpdate, at time.Time) error {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(at)}
	if u.StructuredData != nil {
		sets = append(sets, "structured_data = ?")
		args = append(args, string(u.StructuredData))
	}
	if u.TallyResult != nil {
		sets = append(sets, "tally_result = ?")
		args = append(args, string(u.TallyResult))
	}
	if u.Status != "" {
		sets = append(sets, "status = ?")
		args = append(args, string(u.Status))
	}
	args = append(args, documentID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE document_id = ?`, args...)
	if err != nil {
		return fmt.Errorf("UpdateDocument: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("UpdateDocument: %s: %w", documentID, store.ErrNotFound)
	}
	return nil
}

// ListDocuments implements store.DocumentStore.
func (s *Store) ListDocuments(ctx context.Context, filter store.DocumentFilter) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE 1 = 1`
	var args []any
	if filter.OwnerUserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.OwnerUserID)
	}
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	query += ` ORDER BY created_at, document_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListDocuments: querying: %w", err)
	}
	defer rows.Close()

	result := []*domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("ListDocuments: scanning: %w", err)
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListDocuments: iterating: %w", err)
	}
	return result, nil
}

// DeleteDocument implements store.DocumentStore.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("DeleteDocument: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("DeleteDocument: %s: %w", documentID, store.ErrNotFound)
	}
	return nil
}

// DeleteDocumentsBySession implements store.DocumentStore.
func (s *Store) DeleteDocumentsBySession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("DeleteDocumentsBySession: %w", err)
	}
	return nil
}
