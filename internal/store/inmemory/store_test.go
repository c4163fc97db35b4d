package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/store"
	"github.com/dvloznov/cheque-tally/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return NewStore() })
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()
	require.NoError(t, s.InsertSession(ctx, &domain.Session{SessionID: "s1", OwnerUserID: "u1", Status: domain.SessionStatusCreated, CreatedAt: now}))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	id := "sneaky"
	got.CompanyDocumentID = &id
	got.Status = domain.SessionStatusTallied

	again, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, again.CompanyDocumentID)
	assert.Equal(t, domain.SessionStatusCreated, again.Status)
}
