// Package inmemory is a mutex-guarded implementation of store.Store.
// Data is lost on restart; it backs tests and the default dev configuration.
package inmemory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/store"
)

// Store keeps every record in maps and hands out copies.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*domain.Session
	documents map[string]*domain.Document
	users     map[string]*domain.User
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		sessions:  make(map[string]*domain.Session),
		documents: make(map[string]*domain.Document),
		users:     make(map[string]*domain.User),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// InsertSession implements store.SessionStore.
func (s *Store) InsertSession(ctx context.Context, sess *domain.Session) error {
	if sess.SessionID == "" {
		return fmt.Errorf("InsertSession: session ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.SessionID]; exists {
		return fmt.Errorf("InsertSession: %s: %w", sess.SessionID, store.ErrConflict)
	}
	s.sessions[sess.SessionID] = copySession(sess)
	return nil
}

// GetSession implements store.SessionStore.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("GetSession: %s: %w", sessionID, store.ErrNotFound)
	}
	return copySession(sess), nil
}

// ListSessionsByUser implements store.SessionStore.
func (s *Store) ListSessionsByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Session{}
	for _, sess := range s.sessions {
		if sess.OwnerUserID == userID {
			result = append(result, copySession(sess))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].SessionID > result[j].SessionID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// AttachDocument implements store.SessionStore. The slot check and the write
// happen under one lock, so concurrent callers see exactly one winner.
func (s *Store) AttachDocument(ctx context.Context, sessionID string, kind domain.DocumentKind, documentID string, at time.Time) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("AttachDocument: %s: %w", sessionID, store.ErrNotFound)
	}
	if sess.Slot(kind) != nil {
		return nil, fmt.Errorf("AttachDocument: %s slot of %s: %w", kind, sessionID, store.ErrConflict)
	}
	sess.AttachSlot(kind, documentID, at)
	return copySession(sess), nil
}

// UpdateSessionStatus implements store.SessionStore.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, from []domain.SessionStatus, to domain.SessionStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[sessionID]
	if !exists {
		return fmt.Errorf("UpdateSessionStatus: %s: %w", sessionID, store.ErrNotFound)
	}
	if !slices.Contains(from, sess.Status) {
		return fmt.Errorf("UpdateSessionStatus: %s is %s: %w", sessionID, sess.Status, store.ErrConflict)
	}
	sess.Status = to
	sess.UpdatedAt = at
	return nil
}

// DeleteSession implements store.SessionStore.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return fmt.Errorf("DeleteSession: %s: %w", sessionID, store.ErrNotFound)
	}
	delete(s.sessions, sessionID)
	return nil
}

// InsertDocument implements store.DocumentStore.
func (s *Store) InsertDocument(ctx context.Context, doc *domain.Document) error {
	if doc.DocumentID == "" {
		return fmt.Errorf("InsertDocument: document ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[doc.DocumentID]; exists {
		return fmt.Errorf("InsertDocument: %s: %w", doc.DocumentID, store.ErrConflict)
	}
	s.documents[doc.DocumentID] = copyDocument(doc)
	return nil
}

// GetDocument implements store.DocumentStore.
func (s *Store) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.documents[documentID]
	if !exists {
		return nil, fmt.Errorf("GetDocument: %s: %w", documentID, store.ErrNotFound)
	}
	return copyDocument(doc), nil
}

// UpdateDocument implements store.DocumentStore.
func (s *Store) UpdateDocument(ctx context.Context, documentID string, u domain.DocumentUpdate, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, exists := s.documents[documentID]
	if !exists {
		return fmt.Errorf("UpdateDocument: %s: %w", documentID, store.ErrNotFound)
	}
	u.StructuredData = slices.Clone(u.StructuredData)
	u.TallyResult = slices.Clone(u.TallyResult)
	u.Apply(doc, at)
	return nil
}

// ListDocuments implements store.DocumentStore.
func (s *Store) ListDocuments(ctx context.Context, filter store.DocumentFilter) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Document{}
	for _, doc := range s.documents {
		if filter.OwnerUserID != "" && doc.OwnerUserID != filter.OwnerUserID {
			continue
		}
		if filter.SessionID != "" && doc.SessionID != filter.SessionID {
			continue
		}
		result = append(result, copyDocument(doc))
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].DocumentID < result[j].DocumentID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteDocument implements store.DocumentStore.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[documentID]; !exists {
		return fmt.Errorf("DeleteDocument: %s: %w", documentID, store.ErrNotFound)
	}
	delete(s.documents, documentID)
	return nil
}

// DeleteDocumentsBySession implements store.DocumentStore.
func (s *Store) DeleteDocumentsBySession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, doc := range s.documents {
		if doc.SessionID == sessionID {
			delete(s.documents, id)
		}
	}
	return nil
}

// InsertUser implements store.UserStore.
func (s *Store) InsertUser(ctx context.Context, u *domain.User) error {
	if u.UserID == "" {
		return fmt.Errorf("InsertUser: user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.UserID == u.UserID ||
			strings.EqualFold(existing.Username, u.Username) ||
			strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("InsertUser: %s: %w", u.Username, store.ErrConflict)
		}
	}
	userCopy := *u
	s.users[u.UserID] = &userCopy
	return nil
}

// GetUserByID implements store.UserStore.
func (s *Store) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.users[userID]
	if !exists {
		return nil, fmt.Errorf("GetUserByID: %s: %w", userID, store.ErrNotFound)
	}
	userCopy := *u
	return &userCopy, nil
}

// GetUserByLogin implements store.UserStore.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login) {
			userCopy := *u
			return &userCopy, nil
		}
	}
	return nil, fmt.Errorf("GetUserByLogin: %s: %w", login, store.ErrNotFound)
}

func copySession(s *domain.Session) *domain.Session {
	c := *s
	if s.CompanyDocumentID != nil {
		id := *s.CompanyDocumentID
		c.CompanyDocumentID = &id
	}
	if s.BankDocumentID != nil {
		id := *s.BankDocumentID
		c.BankDocumentID = &id
	}
	return &c
}

func copyDocument(d *domain.Document) *domain.Document {
	c := *d
	c.StructuredData = slices.Clone(d.StructuredData)
	c.TallyResult = slices.Clone(d.TallyResult)
	return &c
}

var _ store.Store = (*Store)(nil)
