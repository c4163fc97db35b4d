package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/store"
)

// DocumentRow mirrors the documents table.
type DocumentRow struct {
	DocumentID       string            `bigquery:"document_id"`       // REQUIRED
	UserID           string            `bigquery:"user_id"`           // REQUIRED
	SessionID        string            `bigquery:"session_id"`        // REQUIRED
	DocumentType     string            `bigquery:"document_type"`     // REQUIRED
	RawText          string            `bigquery:"raw_text"`          // REQUIRED
	StructuredData   bigquery.NullJSON `bigquery:"structured_data"`   // NULLABLE
	TallyResult      bigquery.NullJSON `bigquery:"tally_result"`      // NULLABLE
	Status           string            `bigquery:"status"`            // REQUIRED
	OriginalFilename string            `bigquery:"original_filename"` // NULLABLE
	SourceURI        string            `bigquery:"source_uri"`        // NULLABLE
	CreatedAt        time.Time         `bigquery:"created_at"`        // REQUIRED
	UpdatedAt        time.Time         `bigquery:"updated_at"`        // REQUIRED
}

const documentSelect = `document_id, user_id, session_id, document_type, raw_text, structured_data, tally_result, status,
	IFNULL(original_filename, '') AS original_filename, IFNULL(source_uri, '') AS source_uri, created_at, updated_at`

func documentFromRow(row *DocumentRow) *domain.Document {
	doc := &domain.Document{
		DocumentID:       row.DocumentID,
		OwnerUserID:      row.UserID,
		SessionID:        row.SessionID,
		Kind:             domain.DocumentKind(row.DocumentType),
		RawText:          row.RawText,
		Status:           domain.DocumentStatus(row.Status),
		OriginalFilename: row.OriginalFilename,
		SourceURI:        row.SourceURI,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if row.StructuredData.Valid {
		doc.StructuredData = json.RawMessage(row.StructuredData.JSONVal)
	}
	if row.TallyResult.Valid {
		doc.TallyResult = json.RawMessage(row.TallyResult.JSONVal)
	}
	return doc
}

// jsonParam passes raw JSON as a nullable string; the SQL wraps it in PARSE_JSON.
func jsonParam(raw json.RawMessage) bigquery.NullString {
	if raw == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: string(raw), Valid: true}
}

// InsertDocument implements store.DocumentStore.
func (r *Repository) InsertDocument(ctx context.Context, doc *domain.Document) error {
	sql := fmt.Sprintf(`
		INSERT INTO %[1]s (
			document_id, user_id, session_id, document_type, raw_text, structured_data,
			tally_result, status, original_filename, source_uri, created_at, updated_at
		)
		SELECT @document_id, @user_id, @session_id, @document_type, @raw_text, PARSE_JSON(@structured_data),
			PARSE_JSON(@tally_result), @status, @original_filename, @source_uri, @created_at, @updated_at
		FROM (SELECT 1)
		WHERE NOT EXISTS (SELECT 1 FROM %[1]s WHERE document_id = @document_id)
	`, r.table(documentsTable))

	n, err := r.runDML(ctx, sql, []bigquery.QueryParameter{
		{Name: "document_id", Value: doc.DocumentID},
		{Name: "user_id", Value: doc.OwnerUserID},
		{Name: "session_id", Value: doc.SessionID},
		{Name: "document_type", Value: string(doc.Kind)},
		{Name: "raw_text", Value: doc.RawText},
		{Name: "structured_data", Value: jsonParam(doc.StructuredData)},
		{Name: "tally_result", Value: jsonParam(doc.TallyResult)},
		{Name: "status", Value: string(doc.Status)},
		{Name: "original_filename", Value: doc.OriginalFilename},
		{Name: "source_uri", Value: doc.SourceURI},
		{Name: "created_at", Value: doc.CreatedAt},
		{Name: "updated_at", Value: doc.UpdatedAt},
	})
	if err != nil {
		return fmt.Errorf("InsertDocument: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("InsertDocument: %s: %w", doc.DocumentID, store.ErrConflict)
	}
	return nil
}

// GetDocument implements store.DocumentStore.
func (r *Repository) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT `+documentSelect+`
		FROM %s
		WHERE document_id = @document_id
		LIMIT 1
	`, r.table(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "document_id", Value: documentID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetDocument: reading query: %w", err)
	}

	var row DocumentRow
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return nil, fmt.Errorf("GetDocument: %s: %w", documentID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetDocument: iterating: %w", err)
	}
	return documentFromRow(&row), nil
}

// updateDocumentSQL builds the SET list for the fields u actually carries.
func updateDocumentSQL(table string, u domain.DocumentUpdate) (string, []bigquery.QueryParameter) {
	sets := []string{"updated_at = @updated_at"}
	var params []bigquery.QueryParameter
	if u.StructuredData != nil {
		sets = append(sets, "structured_data = PARSE_JSON(@structured_data)")
		params = append(params, bigquery.QueryParameter{Name: "structured_data", Value: string(u.StructuredData)})
	}
	if u.TallyResult != nil {
		sets = append(sets, "tally_result = PARSE_JSON(@tally_result)")
		params = append(params, bigquery.QueryParameter{Name: "tally_result", Value: string(u.TallyResult)})
	}
	if u.Status != "" {
		sets = append(sets, "status = @status")
		params = append(params, bigquery.QueryParameter{Name: "status", Value: string(u.Status)})
	}
	sql := fmt.Sprintf(`UPDATE %s SET %s WHERE document_id = @document_id`, table, strings.Join(sets, ", "))
	return sql, params
}

// UpdateDocument implements store.DocumentStore.
func (r *Repository) UpdateDocument(ctx context.Context, documentID string, u domain.DocumentUpdate, at time.Time) error {
	sql, params := updateDocumentSQL(r.table(documentsTable), u)
	params = append(params,
		bigquery.QueryParameter{Name: "updated_at", Value: at},
		bigquery.QueryParameter{Name: "document_id", Value: documentID},
	)

	n, err := r.runDML(ctx, sql, params)
	if err != nil {
		return fmt.Errorf("UpdateDocument: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateDocument: %s: %w", documentID, store.ErrNotFound)
	}
	return nil
}

// ListDocuments implements store.DocumentStore.
func (r *Repository) ListDocuments(ctx context.Context, filter store.DocumentFilter) ([]*domain.Document, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT `+documentSelect+`
		FROM %s
		WHERE (@user_id = '' OR user_id = @user_id)
			AND (@session_id = '' OR session_id = @session_id)
		ORDER BY created_at, document_id
	`, r.table(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: filter.OwnerUserID},
		{Name: "session_id", Value: filter.SessionID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListDocuments: reading query: %w", err)
	}

	documents := []*domain.Document{}
	for {
		var row DocumentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListDocuments: iterating: %w", err)
		}
		documents = append(documents, documentFromRow(&row))
	}
	return documents, nil
}
