// Package store defines the persistence contract shared by every backend.
//
// Backends return ErrNotFound and ErrConflict; the lifecycle managers translate
// those into domain errors. Slot filling is a conditional update performed by
// the backend itself so that two concurrent uploads cannot both win.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/cheque-tally/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a uniqueness or conditional-update check fails.
	ErrConflict = errors.New("record conflict")
)

// SessionStore persists sessions.
type SessionStore interface {
	InsertSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	// ListSessionsByUser returns the user's sessions, newest first.
	ListSessionsByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// AttachDocument sets the slot for kind only if it is currently empty and
	// re-derives the status in the same update. Returns ErrConflict when the slot
	// is already filled and ErrNotFound when the session does not exist.
	AttachDocument(ctx context.Context, sessionID string, kind domain.DocumentKind, documentID string, at time.Time) (*domain.Session, error)
	// UpdateSessionStatus moves the session to `to` only if its status is one of `from`.
	UpdateSessionStatus(ctx context.Context, sessionID string, from []domain.SessionStatus, to domain.SessionStatus, at time.Time) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// DocumentFilter narrows ListDocuments. Empty fields match everything.
type DocumentFilter struct {
	OwnerUserID string
	SessionID   string
}

// DocumentStore persists documents.
type DocumentStore interface {
	InsertDocument(ctx context.Context, d *domain.Document) error
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)
	UpdateDocument(ctx context.Context, documentID string, u domain.DocumentUpdate, at time.Time) error
	// ListDocuments returns matching documents ordered by creation time.
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]*domain.Document, error)
	DeleteDocument(ctx context.Context, documentID string) error
	DeleteDocumentsBySession(ctx context.Context, sessionID string) error
}

// UserStore persists user accounts.
type UserStore interface {
	// InsertUser returns ErrConflict when the username or email is taken.
	InsertUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
	// GetUserByLogin looks a user up by username or email.
	GetUserByLogin(ctx context.Context, login string) (*domain.User, error)
}

// Store bundles every repository a backend provides.
type Store interface {
	SessionStore
	DocumentStore
	UserStore
	Close() error
}
