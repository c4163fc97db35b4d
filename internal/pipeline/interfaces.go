package pipeline

import (
	"context"
	"encoding/json"

	"github.com/dvloznov/cheque-tally/internal/domain"
)

// Structurer turns extracted document text into model JSON for one schema kind.
// The output is untrusted: it may be malformed, partial or empty.
type Structurer interface {
	Structure(ctx context.Context, rawText string, kind domain.DocumentKind) (string, error)
}

// TextExtractor turns uploaded PDF bytes into plain text. Pages without
// text are emitted as NoTextFound.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdfBytes []byte) (string, error)
}

// SessionService is the part of the session lifecycle the pipeline drives.
type SessionService interface {
	Get(ctx context.Context, sessionID, userID string) (*domain.Session, error)
	MarkTallied(ctx context.Context, sessionID string) error
}

// DocumentService is the part of the document lifecycle the pipeline drives.
type DocumentService interface {
	Fetch(ctx context.Context, documentID string) (*domain.Document, error)
	RecordStructuring(ctx context.Context, documentID string, structured json.RawMessage) error
	RecordTally(ctx context.Context, documentID string, result json.RawMessage) error
}
