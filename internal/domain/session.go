package domain

import "time"

// SessionStatus is derived from which slots are filled, plus the terminal tallied flag.
type SessionStatus string

const (
	SessionStatusCreated         SessionStatus = "created"
	SessionStatusCompanyUploaded SessionStatus = "company_uploaded"
	SessionStatusBankUploaded    SessionStatus = "bank_uploaded"
	SessionStatusComplete        SessionStatus = "complete"
	SessionStatusTallied         SessionStatus = "tallied"
)

// Session pairs exactly one company document with exactly one bank document.
type Session struct {
	SessionID         string        `json:"session_id"`
	OwnerUserID       string        `json:"user_id"`
	Name              string        `json:"session_name"`
	CompanyDocumentID *string       `json:"company_document_id"`
	BankDocumentID    *string       `json:"bank_document_id"`
	Status            SessionStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Slot returns the document attached for kind, or nil.
func (s *Session) Slot(kind DocumentKind) *string {
	if kind == DocumentKindCompany {
		return s.CompanyDocumentID
	}
	return s.BankDocumentID
}

// Ready reports whether both slots are filled.
func (s *Session) Ready() bool {
	return s.CompanyDocumentID != nil && s.BankDocumentID != nil
}

// DeriveStatus computes the status for a given slot occupancy. tallied is sticky.
func DeriveStatus(companyFilled, bankFilled, tallied bool) SessionStatus {
	switch {
	case tallied:
		return SessionStatusTallied
	case companyFilled && bankFilled:
		return SessionStatusComplete
	case companyFilled:
		return SessionStatusCompanyUploaded
	case bankFilled:
		return SessionStatusBankUploaded
	default:
		return SessionStatusCreated
	}
}

// AttachSlot fills the slot for kind and re-derives the status.
// The caller must have checked that the slot is empty.
func (s *Session) AttachSlot(kind DocumentKind, documentID string, at time.Time) {
	id := documentID
	if kind == DocumentKindCompany {
		s.CompanyDocumentID = &id
	} else {
		s.BankDocumentID = &id
	}
	s.Status = DeriveStatus(s.CompanyDocumentID != nil, s.BankDocumentID != nil, s.Status == SessionStatusTallied)
	s.UpdatedAt = at
}
