package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		company, bank, tallied bool
		want                   SessionStatus
	}{
		{false, false, false, SessionStatusCreated},
		{true, false, false, SessionStatusCompanyUploaded},
		{false, true, false, SessionStatusBankUploaded},
		{true, true, false, SessionStatusComplete},
		{true, true, true, SessionStatusTallied},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.company, tt.bank, tt.tallied))
		})
	}
}

func TestSession_AttachSlot(t *testing.T) {
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := &Session{SessionID: "s1", Status: SessionStatusCreated}

	s.AttachSlot(DocumentKindBank, "bank-1", at)
	assert.Equal(t, SessionStatusBankUploaded, s.Status)
	require.NotNil(t, s.Slot(DocumentKindBank))
	assert.Equal(t, "bank-1", *s.Slot(DocumentKindBank))
	assert.Nil(t, s.Slot(DocumentKindCompany))
	assert.False(t, s.Ready())

	s.AttachSlot(DocumentKindCompany, "company-1", at)
	assert.Equal(t, SessionStatusComplete, s.Status)
	assert.True(t, s.Ready())
	assert.Equal(t, at, s.UpdatedAt)
}

func TestParseDocumentKind(t *testing.T) {
	kind, err := ParseDocumentKind("company")
	require.NoError(t, err)
	assert.Equal(t, DocumentKindCompany, kind)

	_, err = ParseDocumentKind("Company")
	assert.ErrorIs(t, err, ErrValidationFailure)
}
