package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DocumentKind identifies which side of the reconciliation a document belongs to.
type DocumentKind string

const (
	// DocumentKindCompany is the company's issued-cheque ledger.
	DocumentKindCompany DocumentKind = "company"
	// DocumentKindBank is the bank's cleared-cheque statement.
	DocumentKindBank DocumentKind = "bank"
)

// ParseDocumentKind validates a kind received from outside the process.
func ParseDocumentKind(s string) (DocumentKind, error) {
	switch DocumentKind(s) {
	case DocumentKindCompany, DocumentKindBank:
		return DocumentKind(s), nil
	}
	return "", NewError(KindValidationFailure, fmt.Sprintf("unknown document kind %q", s))
}

// DocumentStatus tracks how far a document has progressed.
type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusStructured DocumentStatus = "structured"
	DocumentStatusTallied    DocumentStatus = "tallied"
)

// Document is one uploaded ledger. StructuredData stays nil until a reconciliation
// pass has structured it; TallyResult is only ever set on the company document.
type Document struct {
	DocumentID       string          `json:"document_id"`
	OwnerUserID      string          `json:"user_id"`
	SessionID        string          `json:"session_id"`
	Kind             DocumentKind    `json:"document_type"`
	RawText          string          `json:"raw_text"`
	StructuredData   json.RawMessage `json:"structured_data"`
	TallyResult      json.RawMessage `json:"tally_result"`
	Status           DocumentStatus  `json:"status"`
	OriginalFilename string          `json:"original_filename,omitempty"`
	SourceURI        string          `json:"source_uri,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// DocumentUpdate is a partial update. Nil fields are left untouched.
type DocumentUpdate struct {
	StructuredData json.RawMessage
	TallyResult    json.RawMessage
	Status         DocumentStatus
}

// Apply copies the set fields of u onto d.
func (u DocumentUpdate) Apply(d *Document, at time.Time) {
	if u.StructuredData != nil {
		d.StructuredData = u.StructuredData
	}
	if u.TallyResult != nil {
		d.TallyResult = u.TallyResult
	}
	if u.Status != "" {
		d.Status = u.Status
	}
	d.UpdatedAt = at
}
