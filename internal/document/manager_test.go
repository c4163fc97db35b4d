package document

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/session"
	"github.com/dvloznov/cheque-tally/internal/store"
	"github.com/dvloznov/cheque-tally/internal/store/inmemory"
)

// attachOverride lets a test decide how the slot update behaves.
type attachOverride struct {
	*inmemory.Store
	AttachDocumentFunc func(ctx context.Context, sessionID string, kind domain.DocumentKind, documentID string, at time.Time) (*domain.Session, error)
}

func (a *attachOverride) AttachDocument(ctx context.Context, sessionID string, kind domain.DocumentKind, documentID string, at time.Time) (*domain.Session, error) {
	if a.AttachDocumentFunc != nil {
		return a.AttachDocumentFunc(ctx, sessionID, kind, documentID, at)
	}
	return a.Store.AttachDocument(ctx, sessionID, kind, documentID, at)
}

type fixture struct {
	store    *inmemory.Store
	sessions *session.Manager
	docs     *Manager
	override *attachOverride
}

func newFixture() *fixture {
	st := inmemory.NewStore()
	override := &attachOverride{Store: st}
	sessions := session.NewManager(override, st)
	return &fixture{
		store:    st,
		sessions: sessions,
		docs:     NewManager(st, sessions),
		override: override,
	}
}

func (f *fixture) newSession(t *testing.T, owner string) *domain.Session {
	t.Helper()
	sess, err := f.sessions.Create(context.Background(), owner, "test session")
	require.NoError(t, err)
	return sess
}

func input(sessionID string, kind domain.DocumentKind) CreateInput {
	return CreateInput{
		OwnerUserID:      "u1",
		SessionID:        sessionID,
		Kind:             kind,
		RawText:          "Cheque 001 ACME 100.00",
		OriginalFilename: "ledger.pdf",
	}
}

func TestCreate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.newSession(t, "u1")

	doc, err := f.docs.Create(ctx, input(sess.SessionID, domain.DocumentKindCompany))
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusUploaded, doc.Status)
	assert.Nil(t, doc.StructuredData)
	assert.Nil(t, doc.TallyResult)

	got, err := f.sessions.Get(ctx, sess.SessionID, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.CompanyDocumentID)
	assert.Equal(t, doc.DocumentID, *got.CompanyDocumentID)
	assert.Equal(t, domain.SessionStatusCompanyUploaded, got.Status)
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.newSession(t, "u1")
	_, err := f.docs.Create(ctx, input(sess.SessionID, domain.DocumentKindBank))
	require.NoError(t, err)

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"missing session", input("missing", domain.DocumentKindCompany), domain.ErrNotFound},
		{"other owner", func() CreateInput {
			in := input(sess.SessionID, domain.DocumentKindCompany)
			in.OwnerUserID = "u2"
			return in
		}(), domain.ErrNotAuthorized},
		{"filled slot", input(sess.SessionID, domain.DocumentKindBank), domain.ErrSlotAlreadyFilled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.docs.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	docs, err := f.store.ListDocuments(ctx, store.DocumentFilter{})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestCreate_LostRaceRemovesDocument(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.newSession(t, "u1")
	f.override.AttachDocumentFunc = func(ctx context.Context, sessionID string, kind domain.DocumentKind, documentID string, at time.Time) (*domain.Session, error) {
		return nil, store.ErrConflict
	}

	_, err := f.docs.Create(ctx, input(sess.SessionID, domain.DocumentKindCompany))
	assert.ErrorIs(t, err, domain.ErrSlotAlreadyFilled)

	docs, err := f.store.ListDocuments(ctx, store.DocumentFilter{SessionID: sess.SessionID})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestCreate_RepairAttachedFirstKeepsDocument(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.newSession(t, "u1")

	repaired := false
	f.override.AttachDocumentFunc = func(ctx context.Context, sessionID string, kind domain.DocumentKind, documentID string, at time.Time) (*domain.Session, error) {
		if !repaired {
			// A repair pass runs after the insert and before Create attaches.
			repaired = true
			report, err := f.docs.RepairOrphans(ctx, "u1")
			require.NoError(t, err)
			require.Equal(t, 1, report.Reattached)
		}
		return f.store.AttachDocument(ctx, sessionID, kind, documentID, at)
	}

	doc, err := f.docs.Create(ctx, input(sess.SessionID, domain.DocumentKindCompany))
	require.NoError(t, err)
	require.True(t, repaired)

	got, err := f.sessions.Get(ctx, sess.SessionID, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.CompanyDocumentID)
	assert.Equal(t, doc.DocumentID, *got.CompanyDocumentID)

	_, err = f.docs.Fetch(ctx, doc.DocumentID)
	assert.NoError(t, err)
}

func TestRepairOrphans_CreateAttachedFirstKeepsDocument(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.newSession(t, "u1")

	doc := &domain.Document{
		DocumentID:  "doc-1",
		OwnerUserID: "u1",
		SessionID:   sess.SessionID,
		Kind:        domain.DocumentKindBank,
		Status:      domain.DocumentStatusUploaded,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.store.InsertDocument(ctx, doc))

	attached := false
	f.override.AttachDocumentFunc = func(ctx context.Context, sessionID string, kind domain.DocumentKind, documentID string, at time.Time) (*domain.Session, error) {
		if !attached {
			// The upload attaches between repair's read and repair's attach.
			attached = true
			_, err := f.store.AttachDocument(ctx, sessionID, kind, documentID, at)
			require.NoError(t, err)
		}
		return f.store.AttachDocument(ctx, sessionID, kind, documentID, at)
	}

	report, err := f.docs.RepairOrphans(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, RepairReport{Scanned: 1}, report)

	got, err := f.sessions.Get(ctx, sess.SessionID, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.BankDocumentID)
	assert.Equal(t, "doc-1", *got.BankDocumentID)

	_, err = f.docs.Fetch(ctx, "doc-1")
	assert.NoError(t, err)
}

func TestCreate_AttachFailureLeavesOrphanForRepair(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.newSession(t, "u1")
	f.override.AttachDocumentFunc = func(ctx context.Context, sessionID string, kind domain.DocumentKind, documentID string, at time.Time) (*domain.Session, error) {
		return nil, errors.New("deadline exceeded")
	}

	_, err := f.docs.Create(ctx, input(sess.SessionID, domain.DocumentKindCompany))
	require.Error(t, err)

	docs, err := f.store.ListDocuments(ctx, store.DocumentFilter{SessionID: sess.SessionID})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	f.override.AttachDocumentFunc = nil
	report, err := f.docs.RepairOrphans(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, RepairReport{Scanned: 1, Reattached: 1}, report)

	got, err := f.sessions.Get(ctx, sess.SessionID, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.CompanyDocumentID)
	assert.Equal(t, docs[0].DocumentID, *got.CompanyDocumentID)
}

func TestRepairOrphans(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	now := time.Now().UTC()
	sess := f.newSession(t, "u1")

	attached, err := f.docs.Create(ctx, input(sess.SessionID, domain.DocumentKindCompany))
	require.NoError(t, err)

	orphans := []*domain.Document{
		// session slot already holds another company document
		{DocumentID: "dup", OwnerUserID: "u1", SessionID: sess.SessionID, Kind: domain.DocumentKindCompany},
		// session no longer exists
		{DocumentID: "gone", OwnerUserID: "u1", SessionID: "deleted-session", Kind: domain.DocumentKindBank},
		// bank slot empty
		{DocumentID: "bank", OwnerUserID: "u1", SessionID: sess.SessionID, Kind: domain.DocumentKindBank},
	}
	for i, d := range orphans {
		d.Status = domain.DocumentStatusUploaded
		d.CreatedAt = now.Add(time.Duration(i+1) * time.Second)
		require.NoError(t, f.store.InsertDocument(ctx, d))
	}

	report, err := f.docs.RepairOrphans(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, RepairReport{Scanned: 4, Reattached: 1, Deleted: 2}, report)

	got, err := f.sessions.Get(ctx, sess.SessionID, "u1")
	require.NoError(t, err)
	assert.Equal(t, attached.DocumentID, *got.CompanyDocumentID)
	assert.Equal(t, "bank", *got.BankDocumentID)
	assert.Equal(t, domain.SessionStatusComplete, got.Status)

	remaining, err := f.store.ListDocuments(ctx, store.DocumentFilter{OwnerUserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	again, err := f.docs.RepairOrphans(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, RepairReport{Scanned: 2}, again)
}

func TestRecordStructuringAndTally(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.newSession(t, "u1")
	company, err := f.docs.Create(ctx, input(sess.SessionID, domain.DocumentKindCompany))
	require.NoError(t, err)
	bank, err := f.docs.Create(ctx, input(sess.SessionID, domain.DocumentKindBank))
	require.NoError(t, err)

	require.NoError(t, f.docs.RecordStructuring(ctx, company.DocumentID, json.RawMessage(`{"cheques":[]}`)))
	require.NoError(t, f.docs.RecordTally(ctx, company.DocumentID, json.RawMessage(`{"summary":{}}`)))

	got, err := f.docs.Fetch(ctx, company.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusTallied, got.Status)
	assert.JSONEq(t, `{"cheques":[]}`, string(got.StructuredData))
	assert.JSONEq(t, `{"summary":{}}`, string(got.TallyResult))

	err = f.docs.RecordTally(ctx, bank.DocumentID, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrValidationFailure)

	err = f.docs.RecordStructuring(ctx, "missing", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchOwned(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.newSession(t, "u1")
	doc, err := f.docs.Create(ctx, input(sess.SessionID, domain.DocumentKindCompany))
	require.NoError(t, err)

	_, err = f.docs.FetchOwned(ctx, doc.DocumentID, "u1")
	assert.NoError(t, err)
	_, err = f.docs.FetchOwned(ctx, doc.DocumentID, "u2")
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	_, err = f.docs.FetchOwned(ctx, "missing", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
