package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/logger"
	"github.com/dvloznov/cheque-tally/internal/tally"
)

// PipelineStep represents a single step in the reconciliation pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	SessionID string
	UserID    string

	Session         *domain.Session
	CompanyDocument *domain.Document
	BankDocument    *domain.Document

	CompanyStructured domain.CompanyStructured
	BankStructured    domain.BankStructured

	UsableIssued  []domain.UsableIssued
	UsableCleared []domain.UsableCleared

	TallyResult domain.TallyResult
}

// LoadSessionStep checks ownership and that both slots are filled.
type LoadSessionStep struct {
	Sessions SessionService
}

func (s *LoadSessionStep) Execute(ctx context.Context, state *PipelineState) error {
	sess, err := s.Sessions.Get(ctx, state.SessionID, state.UserID)
	if err != nil {
		return err
	}
	if !sess.Ready() {
		return domain.NewError(domain.KindSessionNotReady,
			"both company and bank documents must be uploaded before reconciliation")
	}
	state.Session = sess
	return nil
}

// LoadDocumentsStep fetches the two documents the session references.
type LoadDocumentsStep struct {
	Documents DocumentService
}

func (s *LoadDocumentsStep) Execute(ctx context.Context, state *PipelineState) error {
	company, err := s.Documents.Fetch(ctx, *state.Session.CompanyDocumentID)
	if err != nil {
		return fmt.Errorf("company document %s: %w", *state.Session.CompanyDocumentID, err)
	}
	bank, err := s.Documents.Fetch(ctx, *state.Session.BankDocumentID)
	if err != nil {
		return fmt.Errorf("bank document %s: %w", *state.Session.BankDocumentID, err)
	}
	state.CompanyDocument = company
	state.BankDocument = bank
	return nil
}

// StructureDocumentsStep structures both documents concurrently, retrying
// each model call a bounded number of times.
type StructureDocumentsStep struct {
	Structurer Structurer
	Attempts   int
	Backoff    time.Duration
}

func (s *StructureDocumentsStep) Execute(ctx context.Context, state *PipelineState) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		out, err := withRetry(gctx, s.Attempts, s.Backoff, func(ctx context.Context) (domain.CompanyStructured, error) {
			raw, err := s.Structurer.Structure(ctx, state.CompanyDocument.RawText, domain.DocumentKindCompany)
			if err != nil {
				return domain.CompanyStructured{}, err
			}
			return DecodeCompany(raw)
		})
		if err != nil {
			return domain.WrapError(domain.KindUpstreamExtractionFailure, "could not structure the company document", err)
		}
		state.CompanyStructured = out
		return nil
	})

	g.Go(func() error {
		out, err := withRetry(gctx, s.Attempts, s.Backoff, func(ctx context.Context) (domain.BankStructured, error) {
			raw, err := s.Structurer.Structure(ctx, state.BankDocument.RawText, domain.DocumentKindBank)
			if err != nil {
				return domain.BankStructured{}, err
			}
			return DecodeBank(raw)
		})
		if err != nil {
			return domain.WrapError(domain.KindUpstreamExtractionFailure, "could not structure the bank document", err)
		}
		state.BankStructured = out
		return nil
	})

	return g.Wait()
}

// FilterRecordsStep drops records missing the fields matching needs.
type FilterRecordsStep struct{}

func (s *FilterRecordsStep) Execute(ctx context.Context, state *PipelineState) error {
	var droppedIssued, droppedCleared int
	state.UsableIssued, droppedIssued = domain.FilterIssued(state.CompanyStructured.Cheques)
	state.UsableCleared, droppedCleared = domain.FilterCleared(state.BankStructured.CashedCheques)

	if droppedIssued > 0 || droppedCleared > 0 {
		log := logger.FromContext(ctx)
		log.Warn().
			Str("session_id", state.SessionID).
			Int("dropped_issued", droppedIssued).
			Int("dropped_cleared", droppedCleared).
			Msg("Dropped cheque records with missing fields")
	}
	return nil
}

// TallyStep runs the reconciliation engine.
type TallyStep struct{}

func (s *TallyStep) Execute(ctx context.Context, state *PipelineState) error {
	state.TallyResult = tally.Tally(state.UsableIssued, state.UsableCleared)
	return nil
}

// PersistStep writes structured data to both documents, the tally result to
// the company document, and marks the session tallied.
type PersistStep struct {
	Sessions  SessionService
	Documents DocumentService
}

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	companyJSON, err := json.Marshal(state.CompanyStructured)
	if err != nil {
		return fmt.Errorf("marshal company structured data: %w", err)
	}
	bankJSON, err := json.Marshal(state.BankStructured)
	if err != nil {
		return fmt.Errorf("marshal bank structured data: %w", err)
	}
	resultJSON, err := json.Marshal(state.TallyResult)
	if err != nil {
		return fmt.Errorf("marshal tally result: %w", err)
	}

	// Company side first: the tally is on disk before anything touches the bank
	// document, and a failure before MarkTallied leaves the session complete.
	if err := s.Documents.RecordStructuring(ctx, state.CompanyDocument.DocumentID, companyJSON); err != nil {
		return fmt.Errorf("record company structuring: %w", err)
	}
	if err := s.Documents.RecordTally(ctx, state.CompanyDocument.DocumentID, resultJSON); err != nil {
		return fmt.Errorf("record tally: %w", err)
	}
	if err := s.Documents.RecordStructuring(ctx, state.BankDocument.DocumentID, bankJSON); err != nil {
		return fmt.Errorf("record bank structuring: %w", err)
	}
	if err := s.Sessions.MarkTallied(ctx, state.SessionID); err != nil {
		return fmt.Errorf("mark session tallied: %w", err)
	}
	return nil
}

// withRetry calls fn up to attempts times with linear backoff between tries.
// Context cancellation stops retrying immediately.
func withRetry[T any](ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, errors.Join(lastErr, ctx.Err())
		}

		log := logger.FromContext(ctx)
		log.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("Structuring attempt failed")

		if attempt == attempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * backoff):
		case <-ctx.Done():
			return zero, errors.Join(lastErr, ctx.Err())
		}
	}
	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
