package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/store"
)

const sessionColumns = `session_id, user_id, session_name, company_document_id, bank_document_id, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		sess             domain.Session
		company, bank    sql.NullString
		status           string
		created, updated string
	)
	if err := row.Scan(&sess.SessionID, &sess.OwnerUserID, &sess.Name, &company, &bank, &status, &created, &updated); err != nil {
		return nil, err
	}
	if company.Valid {
		sess.CompanyDocumentID = &company.String
	}
	if bank.Valid {
		sess.BankDocumentID = &bank.String
	}
	sess.Status = domain.SessionStatus(status)

	var err error
	if sess.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if sess.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &sess, nil
}

// InsertSession implements store.SessionStore.
func (s *Store) InsertSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.SessionID, sess.OwnerUserID, sess.Name,
		nullString(sess.CompanyDocumentID), nullString(sess.BankDocumentID),
		string(sess.Status), formatTime(sess.CreatedAt), formatTime(sess.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("InsertSession: %s: %w", sess.SessionID, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("InsertSession: %w", err)
	}
	return nil
}

// GetSession implements store.SessionStore.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.getSession(ctx, s.db, sessionID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getSession(ctx context.Context, q queryRower, sessionID string) (*domain.Session, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetSession: %s: %w", sessionID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetSession: %w", err)
	}
	return sess, nil
}

// ListSessionsByUser implements store.SessionStore.
func (s *Store) ListSessionsByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY created_at DESC, session_id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListSessionsByUser: querying: %w", err)
	}
	defer rows.Close()

	result := []*domain.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("ListSessionsByUser: scanning: %w", err)
		}
		result = append(result, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListSessionsByUser: iterating: %w", err)
	}
	return result, nil
}

// AttachDocument implements store.SessionStore with a single conditional UPDATE.
func (s *Store) AttachDocument(ctx context.Context, sessionID string, kind domain.DocumentKind, documentID string, at time.Time) (*domain.Session, error) {
	column, err := slotColumn(kind)
	if err != nil {
		return nil, fmt.Errorf("AttachDocument: %w", err)
	}
	other := "bank_document_id"
	single := string(domain.SessionStatusCompanyUploaded)
	if kind == domain.DocumentKindBank {
		other = "company_document_id"
		single = string(domain.SessionStatusBankUploaded)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("AttachDocument: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		UPDATE sessions
		SET %[1]s = ?,
		    status = CASE
		        WHEN status = ? THEN status
		        WHEN %[2]s IS NOT NULL THEN ?
		        ELSE ?
		    END,
		    updated_at = ?
		WHERE session_id = ? AND %[1]s IS NULL`, column, other)

	res, err := tx.ExecContext(ctx, query,
		documentID,
		string(domain.SessionStatusTallied),
		string(domain.SessionStatusComplete),
		single,
		formatTime(at),
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("AttachDocument: updating: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("AttachDocument: rows affected: %w", err)
	}

	sess, err := s.getSession(ctx, tx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("AttachDocument: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("AttachDocument: %s slot of %s: %w", kind, sessionID, store.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("AttachDocument: committing: %w", err)
	}
	return sess, nil
}

// UpdateSessionStatus implements store.SessionStore.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, from []domain.SessionStatus, to domain.SessionStatus, at time.Time) error {
	if len(from) == 0 {
		return fmt.Errorf("UpdateSessionStatus: no source statuses given")
	}

	args := []any{string(to), formatTime(at), sessionID}
	for _, st := range from {
		args = append(args, string(st))
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE session_id = ? AND status IN (`+placeholders(len(from))+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("UpdateSessionStatus: updating: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateSessionStatus: rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("UpdateSessionStatus: %w", err)
	}
	return fmt.Errorf("UpdateSessionStatus: %s is %s: %w", sessionID, sess.Status, store.ErrConflict)
}

// DeleteSession implements store.SessionStore.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("DeleteSession: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("DeleteSession: %s: %w", sessionID, store.ErrNotFound)
	}
	return nil
}
