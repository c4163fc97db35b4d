// Package pipeline sequences a reconciliation run: load the session and its
// documents, structure both through the model, filter, tally and persist.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/logger"
)

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially. Errors carrying a
// domain kind are returned unwrapped so callers see the kind directly.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			if domain.KindOf(err) != domain.KindInternal {
				return err
			}
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Config tunes the structuring retries.
type Config struct {
	Attempts int
	Backoff  time.Duration
}

// Result is what a reconciliation run returns to the caller.
type Result struct {
	CompanyStructured domain.CompanyStructured `json:"company_structured"`
	BankStructured    domain.BankStructured    `json:"bank_structured"`
	TallyResult       domain.TallyResult       `json:"tally_result"`
}

// Reconciler runs the reconciliation pipeline for one session at a time.
// It holds no lock while the model is called; re-running overwrites the
// previous result.
type Reconciler struct {
	pipeline *Pipeline
}

// NewReconciler wires the standard six-step pipeline.
func NewReconciler(sessions SessionService, documents DocumentService, structurer Structurer, cfg Config) *Reconciler {
	return &Reconciler{
		pipeline: NewPipeline(
			&LoadSessionStep{Sessions: sessions},
			&LoadDocumentsStep{Documents: documents},
			&StructureDocumentsStep{Structurer: structurer, Attempts: cfg.Attempts, Backoff: cfg.Backoff},
			&FilterRecordsStep{},
			&TallyStep{},
			&PersistStep{Sessions: sessions, Documents: documents},
		),
	}
}

// Run reconciles the session on behalf of userID.
func (r *Reconciler) Run(ctx context.Context, sessionID, userID string) (*Result, error) {
	log := logger.FromContext(ctx).With().Str("session_id", sessionID).Str("user_id", userID).Logger()
	ctx = logger.WithContext(ctx, log)

	state := &PipelineState{SessionID: sessionID, UserID: userID}
	if err := r.pipeline.Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Reconciliation failed")
		return nil, err
	}

	s := state.TallyResult.Summary
	log.Info().
		Int("total_issued", s.TotalIssued).
		Int("total_cashed", s.TotalCashed).
		Int("total_pending", s.TotalPending).
		Int("total_mismatched", s.TotalMismatched).
		Msg("Reconciliation completed")

	return &Result{
		CompanyStructured: state.CompanyStructured,
		BankStructured:    state.BankStructured,
		TallyResult:       state.TallyResult,
	}, nil
}
