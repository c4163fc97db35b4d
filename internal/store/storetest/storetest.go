// Package storetest holds a behavioural suite every store.Store backend must pass.
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

var base = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("SessionRoundTrip", func(t *testing.T) { testSessionRoundTrip(t, newStore(t)) })
	t.Run("ListSessionsNewestFirst", func(t *testing.T) { testListSessions(t, newStore(t)) })
	t.Run("AttachDocument", func(t *testing.T) { testAttachDocument(t, newStore(t)) })
	t.Run("AttachDocumentRace", func(t *testing.T) { testAttachRace(t, newStore(t)) })
	t.Run("UpdateSessionStatus", func(t *testing.T) { testUpdateStatus(t, newStore(t)) })
	t.Run("Documents", func(t *testing.T) { testDocuments(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
}

func newSession(id, user string, created time.Time) *domain.Session {
	return &domain.Session{
		SessionID:   id,
		OwnerUserID: user,
		Name:        "name " + id,
		Status:      domain.SessionStatusCreated,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func newDocument(id, session string, kind domain.DocumentKind, created time.Time) *domain.Document {
	return &domain.Document{
		DocumentID:       id,
		OwnerUserID:      "u1",
		SessionID:        session,
		Kind:             kind,
		RawText:          "raw " + id,
		Status:           domain.DocumentStatusUploaded,
		OriginalFilename: id + ".pdf",
		CreatedAt:        created,
		UpdatedAt:        created,
	}
}

func testSessionRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertSession(ctx, newSession("s1", "u1", base)))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OwnerUserID)
	assert.Equal(t, "name s1", got.Name)
	assert.Equal(t, domain.SessionStatusCreated, got.Status)
	assert.Nil(t, got.CompanyDocumentID)
	assert.Nil(t, got.BankDocumentID)
	assert.True(t, base.Equal(got.CreatedAt))

	assert.ErrorIs(t, s.InsertSession(ctx, newSession("s1", "u1", base)), store.ErrConflict)

	_, err = s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteSession(ctx, "s1"))
	_, err = s.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, "s1"), store.ErrNotFound)
}

func testListSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertSession(ctx, newSession("old", "u1", base)))
	require.NoError(t, s.InsertSession(ctx, newSession("new", "u1", base.Add(time.Hour))))
	require.NoError(t, s.InsertSession(ctx, newSession("other", "u2", base.Add(2*time.Hour))))

	list, err := s.ListSessionsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].SessionID)
	assert.Equal(t, "old", list[1].SessionID)

	empty, err := s.ListSessionsByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testAttachDocument(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertSession(ctx, newSession("s1", "u1", base)))

	sess, err := s.AttachDocument(ctx, "s1", domain.DocumentKindBank, "b1", base.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, sess.BankDocumentID)
	assert.Equal(t, "b1", *sess.BankDocumentID)
	assert.Equal(t, domain.SessionStatusBankUploaded, sess.Status)

	_, err = s.AttachDocument(ctx, "s1", domain.DocumentKindBank, "b2", base.Add(time.Minute))
	assert.ErrorIs(t, err, store.ErrConflict)

	sess, err = s.AttachDocument(ctx, "s1", domain.DocumentKindCompany, "c1", base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusComplete, sess.Status)

	stored, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "c1", *stored.CompanyDocumentID)
	assert.Equal(t, "b1", *stored.BankDocumentID)
	assert.Equal(t, domain.SessionStatusComplete, stored.Status)

	_, err = s.AttachDocument(ctx, "missing", domain.DocumentKindCompany, "c9", base)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testAttachRace(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertSession(ctx, newSession("s1", "u1", base)))

	const racers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AttachDocument(ctx, "s1", domain.DocumentKindCompany, string(rune('a'+i)), base)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, store.ErrConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, racers-1, conflicts)
}

func testUpdateStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertSession(ctx, newSession("s1", "u1", base)))

	err := s.UpdateSessionStatus(ctx, "s1", []domain.SessionStatus{domain.SessionStatusComplete}, domain.SessionStatusTallied, base)
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.AttachDocument(ctx, "s1", domain.DocumentKindCompany, "c1", base)
	require.NoError(t, err)
	_, err = s.AttachDocument(ctx, "s1", domain.DocumentKindBank, "b1", base)
	require.NoError(t, err)

	require.NoError(t, s.UpdateSessionStatus(ctx, "s1", []domain.SessionStatus{domain.SessionStatusComplete}, domain.SessionStatusTallied, base.Add(time.Hour)))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusTallied, got.Status)
	assert.True(t, base.Add(time.Hour).Equal(got.UpdatedAt))

	err = s.UpdateSessionStatus(ctx, "missing", []domain.SessionStatus{domain.SessionStatusComplete}, domain.SessionStatusTallied, base)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDocuments(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertDocument(ctx, newDocument("d1", "s1", domain.DocumentKindCompany, base)))
	require.NoError(t, s.InsertDocument(ctx, newDocument("d2", "s1", domain.DocumentKindBank, base.Add(time.Second))))
	require.NoError(t, s.InsertDocument(ctx, newDocument("d3", "s2", domain.DocumentKindBank, base.Add(2*time.Second))))

	assert.ErrorIs(t, s.InsertDocument(ctx, newDocument("d1", "s1", domain.DocumentKindCompany, base)), store.ErrConflict)

	got, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "raw d1", got.RawText)
	assert.Equal(t, domain.DocumentKindCompany, got.Kind)
	assert.Nil(t, got.StructuredData)
	assert.Nil(t, got.TallyResult)

	structured := json.RawMessage(`{"cheques":[]}`)
	require.NoError(t, s.UpdateDocument(ctx, "d1", domain.DocumentUpdate{
		StructuredData: structured,
		Status:         domain.DocumentStatusStructured,
	}, base.Add(time.Minute)))
	require.NoError(t, s.UpdateDocument(ctx, "d1", domain.DocumentUpdate{
		TallyResult: json.RawMessage(`{"summary":{}}`),
		Status:      domain.DocumentStatusTallied,
	}, base.Add(2*time.Minute)))

	got, err = s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cheques":[]}`, string(got.StructuredData))
	assert.JSONEq(t, `{"summary":{}}`, string(got.TallyResult))
	assert.Equal(t, domain.DocumentStatusTallied, got.Status)
	assert.True(t, base.Add(2*time.Minute).Equal(got.UpdatedAt))

	assert.ErrorIs(t, s.UpdateDocument(ctx, "missing", domain.DocumentUpdate{}, base), store.ErrNotFound)

	list, err := s.ListDocuments(ctx, store.DocumentFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "d1", list[0].DocumentID)
	assert.Equal(t, "d2", list[1].DocumentID)

	all, err := s.ListDocuments(ctx, store.DocumentFilter{OwnerUserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.DeleteDocumentsBySession(ctx, "s1"))
	_, err = s.GetDocument(ctx, "d1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetDocument(ctx, "d3")
	assert.NoError(t, err)

	require.NoError(t, s.DeleteDocument(ctx, "d3"))
	assert.ErrorIs(t, s.DeleteDocument(ctx, "d3"), store.ErrNotFound)
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := &domain.User{
		UserID:         "u1",
		Email:          "ada@example.com",
		Username:       "ada",
		HashedPassword: "hash",
		IsActive:       true,
		CreatedAt:      base,
		UpdatedAt:      base,
	}
	require.NoError(t, s.InsertUser(ctx, u))

	dupName := *u
	dupName.UserID, dupName.Email = "u2", "other@example.com"
	assert.ErrorIs(t, s.InsertUser(ctx, &dupName), store.ErrConflict)

	dupEmail := *u
	dupEmail.UserID, dupEmail.Username = "u3", "grace"
	assert.ErrorIs(t, s.InsertUser(ctx, &dupEmail), store.ErrConflict)

	got, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.HashedPassword)
	assert.True(t, got.IsActive)

	byName, err := s.GetUserByLogin(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, "u1", byName.UserID)

	byEmail, err := s.GetUserByLogin(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.UserID)

	_, err = s.GetUserByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetUserByID(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
