package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/store"
	"github.com/dvloznov/cheque-tally/internal/store/inmemory"
)

func newTestManager() (*Manager, *inmemory.Store) {
	st := inmemory.NewStore()
	return NewManager(st, st), st
}

func TestCreate(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	sess, err := m.Create(ctx, "u1", "  March ledger  ")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, "March ledger", sess.Name)
	assert.Equal(t, domain.SessionStatusCreated, sess.Status)
	assert.Nil(t, sess.CompanyDocumentID)
	assert.Nil(t, sess.BankDocumentID)
}

func TestCreate_NameValidation(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	for _, name := range []string{"", "   ", strings.Repeat("x", MaxNameLength+1)} {
		_, err := m.Create(ctx, "u1", name)
		assert.ErrorIs(t, err, domain.ErrValidationFailure)
	}

	_, err := m.Create(ctx, "u1", strings.Repeat("é", MaxNameLength))
	assert.NoError(t, err)
}

func TestGet(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	sess, err := m.Create(ctx, "u1", "s")
	require.NoError(t, err)

	got, err := m.Get(ctx, sess.SessionID, "u1")
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, got.SessionID)

	_, err = m.Get(ctx, sess.SessionID, "u2")
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = m.Get(ctx, "missing", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	first, err := m.Create(ctx, "u1", "first")
	require.NoError(t, err)
	second, err := m.Create(ctx, "u1", "second")
	require.NoError(t, err)
	_, err = m.Create(ctx, "u2", "someone else")
	require.NoError(t, err)

	list, err := m.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.SessionID, list[0].SessionID)
	assert.Equal(t, first.SessionID, list[1].SessionID)
}

func TestStateMachine(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	sess, err := m.Create(ctx, "u1", "s")
	require.NoError(t, err)

	err = m.MarkTallied(ctx, sess.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotReady)

	updated, err := m.AttachCompanyDocument(ctx, sess.SessionID, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusCompanyUploaded, updated.Status)

	err = m.MarkTallied(ctx, sess.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotReady)

	_, err = m.AttachCompanyDocument(ctx, sess.SessionID, "c2")
	assert.ErrorIs(t, err, domain.ErrSlotAlreadyFilled)

	updated, err = m.AttachBankDocument(ctx, sess.SessionID, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusComplete, updated.Status)

	require.NoError(t, m.MarkTallied(ctx, sess.SessionID))
	got, err := m.Get(ctx, sess.SessionID, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusTallied, got.Status)

	// re-running reconciliation keeps the session tallied
	require.NoError(t, m.MarkTallied(ctx, sess.SessionID))

	_, err = m.AttachCompanyDocument(ctx, sess.SessionID, "c3")
	assert.ErrorIs(t, err, domain.ErrSlotAlreadyFilled)
	_, err = m.AttachBankDocument(ctx, sess.SessionID, "b3")
	assert.ErrorIs(t, err, domain.ErrSlotAlreadyFilled)

	got, err = m.Get(ctx, sess.SessionID, "u1")
	require.NoError(t, err)
	assert.Equal(t, "c1", *got.CompanyDocumentID)
	assert.Equal(t, "b1", *got.BankDocumentID)
	assert.Equal(t, domain.SessionStatusTallied, got.Status)
}

func TestStateMachine_BankFirst(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	sess, err := m.Create(ctx, "u1", "s")
	require.NoError(t, err)

	updated, err := m.AttachBankDocument(ctx, sess.SessionID, "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusBankUploaded, updated.Status)

	updated, err = m.AttachCompanyDocument(ctx, sess.SessionID, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusComplete, updated.Status)
}

func TestAttach_MissingSession(t *testing.T) {
	m, _ := newTestManager()

	_, err := m.AttachCompanyDocument(context.Background(), "missing", "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAttachCompanyDocument_Race(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	sess, err := m.Create(ctx, "u1", "s")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.AttachCompanyDocument(ctx, sess.SessionID, []string{"c1", "c2"}[i])
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrSlotAlreadyFilled)
	}
	assert.Equal(t, 1, successes)
}

func TestDelete_Cascades(t *testing.T) {
	m, st := newTestManager()
	ctx := context.Background()
	sess, err := m.Create(ctx, "u1", "s")
	require.NoError(t, err)

	now := time.Now()
	for _, id := range []string{"c1", "b1"} {
		require.NoError(t, st.InsertDocument(ctx, &domain.Document{
			DocumentID: id, OwnerUserID: "u1", SessionID: sess.SessionID,
			Kind: domain.DocumentKindCompany, Status: domain.DocumentStatusUploaded, CreatedAt: now,
		}))
	}

	assert.ErrorIs(t, m.Delete(ctx, sess.SessionID, "u2"), domain.ErrNotAuthorized)

	require.NoError(t, m.Delete(ctx, sess.SessionID, "u1"))

	_, err = m.Get(ctx, sess.SessionID, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	docs, err := st.ListDocuments(ctx, store.DocumentFilter{SessionID: sess.SessionID})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

type failingDocuments struct {
	store.DocumentStore
}

func (failingDocuments) DeleteDocumentsBySession(ctx context.Context, sessionID string) error {
	return errors.New("bigquery unavailable")
}

func TestDelete_KeepsSessionWhenDocumentsFail(t *testing.T) {
	st := inmemory.NewStore()
	m := NewManager(st, failingDocuments{st})
	ctx := context.Background()
	sess, err := m.Create(ctx, "u1", "s")
	require.NoError(t, err)

	err = m.Delete(ctx, sess.SessionID, "u1")
	require.Error(t, err)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))

	_, err = m.Get(ctx, sess.SessionID, "u1")
	assert.NoError(t, err)
}
