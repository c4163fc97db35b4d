package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/store"
)

// SessionRow mirrors the sessions table.
type SessionRow struct {
	SessionID         string              `bigquery:"session_id"`          // REQUIRED
	UserID            string              `bigquery:"user_id"`             // REQUIRED
	SessionName       string              `bigquery:"session_name"`        // REQUIRED
	CompanyDocumentID bigquery.NullString `bigquery:"company_document_id"` // NULLABLE
	BankDocumentID    bigquery.NullString `bigquery:"bank_document_id"`    // NULLABLE
	Status            string              `bigquery:"status"`              // REQUIRED
	CreatedAt         time.Time           `bigquery:"created_at"`          // REQUIRED
	UpdatedAt         time.Time           `bigquery:"updated_at"`          // REQUIRED
}

const sessionSelect = `session_id, user_id, session_name, company_document_id, bank_document_id, status, created_at, updated_at`

func sessionFromRow(row *SessionRow) *domain.Session {
	sess := &domain.Session{
		SessionID:   row.SessionID,
		OwnerUserID: row.UserID,
		Name:        row.SessionName,
		Status:      domain.SessionStatus(row.Status),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.CompanyDocumentID.Valid {
		id := row.CompanyDocumentID.StringVal
		sess.CompanyDocumentID = &id
	}
	if row.BankDocumentID.Valid {
		id := row.BankDocumentID.StringVal
		sess.BankDocumentID = &id
	}
	return sess
}

func optionalString(p *string) bigquery.NullString {
	if p == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *p, Valid: true}
}

// InsertSession implements store.SessionStore. The insert is skipped when the
// ID already exists, which surfaces as ErrConflict.
func (r *Repository) InsertSession(ctx context.Context, sess *domain.Session) error {
	sql := fmt.Sprintf(`
		INSERT INTO %[1]s (`+sessionSelect+`)
		SELECT @session_id, @user_id, @session_name, @company_document_id, @bank_document_id, @status, @created_at, @updated_at
		FROM (SELECT 1)
		WHERE NOT EXISTS (SELECT 1 FROM %[1]s WHERE session_id = @session_id)
	`, r.table(sessionsTable))

	n, err := r.runDML(ctx, sql, []bigquery.QueryParameter{
		{Name: "session_id", Value: sess.SessionID},
		{Name: "user_id", Value: sess.OwnerUserID},
		{Name: "session_name", Value: sess.Name},
		{Name: "company_document_id", Value: optionalString(sess.CompanyDocumentID)},
		{Name: "bank_document_id", Value: optionalString(sess.BankDocumentID)},
		{Name: "status", Value: string(sess.Status)},
		{Name: "created_at", Value: sess.CreatedAt},
		{Name: "updated_at", Value: sess.UpdatedAt},
	})
	if err != nil {
		return fmt.Errorf("InsertSession: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("InsertSession: %s: %w", sess.SessionID, store.ErrConflict)
	}
	return nil
}

// GetSession implements store.SessionStore.
func (r *Repository) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT `+sessionSelect+`
		FROM %s
		WHERE session_id = @session_id
		LIMIT 1
	`, r.table(sessionsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "session_id", Value: sessionID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetSession: reading query: %w", err)
	}

	var row SessionRow
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return nil, fmt.Errorf("GetSession: %s: %w", sessionID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetSession: iterating: %w", err)
	}
	return sessionFromRow(&row), nil
}

// ListSessionsByUser implements store.SessionStore.
func (r *Repository) ListSessionsByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT `+sessionSelect+`
		FROM %s
		WHERE user_id = @user_id
		ORDER BY created_at DESC, session_id DESC
	`, r.table(sessionsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListSessionsByUser: reading query: %w", err)
	}

	sessions := []*domain.Session{}
	for {
		var row SessionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListSessionsByUser: iterating: %w", err)
		}
		sessions = append(sessions, sessionFromRow(&row))
	}
	return sessions, nil
}

// attachSQL builds the conditional slot update for kind. BigQuery serialises
// mutating DML per table, so the IS NULL guard admits one writer.
func attachSQL(table string, kind domain.DocumentKind) (string, error) {
	var column, other, single string
	switch kind {
	case domain.DocumentKindCompany:
		column, other, single = "company_document_id", "bank_document_id", string(domain.SessionStatusCompanyUploaded)
	case domain.DocumentKindBank:
		column, other, single = "bank_document_id", "company_document_id", string(domain.SessionStatusBankUploaded)
	default:
		return "", fmt.Errorf("unknown document kind %q", kind)
	}

	return fmt.Sprintf(`
		UPDATE %[1]s
		SET %[2]s = @document_id,
			status = CASE
				WHEN status = '%[4]s' THEN status
				WHEN %[3]s IS NOT NULL THEN '%[5]s'
				ELSE '%[6]s'
			END,
			updated_at = @updated_at
		WHERE session_id = @session_id AND %[2]s IS NULL
	`, table, column, other, domain.SessionStatusTallied, domain.SessionStatusComplete, single), nil
}

// AttachDocument implements store.SessionStore.
func (r *Repository) AttachDocument(ctx context.Context, sessionID string, kind domain.DocumentKind, documentID string, at time.Time) (*domain.Session, error) {
	sql, err := attachSQL(r.table(sessionsTable), kind)
	if err != nil {
		return nil, fmt.Errorf("AttachDocument: %w", err)
	}

	n, err := r.runDML(ctx, sql, []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
		{Name: "updated_at", Value: at},
		{Name: "session_id", Value: sessionID},
	})
	if err != nil {
		return nil, fmt.Errorf("AttachDocument: %w", err)
	}

	sess, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("AttachDocument: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("AttachDocument: %s slot of %s: %w", kind, sessionID, store.ErrConflict)
	}
	return sess, nil
}

// UpdateSessionStatus implements store.SessionStore.
func (r *Repository) UpdateSessionStatus(ctx context.Context, sessionID string, from []domain.SessionStatus, to domain.SessionStatus, at time.Time) error {
	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}

	n, err := r.runDML(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = @to_status, updated_at = @updated_at
		WHERE session_id = @session_id AND status IN UNNEST(@from_statuses)
	`, r.table(sessionsTable)), []bigquery.QueryParameter{
		{Name: "to_status", Value: string(to)},
		{Name: "updated_at", Value: at},
		{Name: "session_id", Value: sessionID},
		{Name: "from_statuses", Value: allowed},
	})
	if err != nil {
		return fmt.Errorf("UpdateSessionStatus: %w", err)
	}
	if n > 0 {
		return nil
	}

	sess, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("UpdateSessionStatus: %w", err)
	}
	return fmt.Errorf("UpdateSessionStatus: %s is %s: %w", sessionID, sess.Status, store.ErrConflict)
}
