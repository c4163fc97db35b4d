package jobs

import (
	"context"

	"github.com/dvloznov/cheque-tally/internal/pipeline"
)

// Reconciler runs one reconciliation.
type Reconciler interface {
	Run(ctx context.Context, sessionID, userID string) (*pipeline.Result, error)
}

// ReconcileHandler adapts a Reconciler to a JobHandler.
func ReconcileHandler(r Reconciler) JobHandler {
	return func(ctx context.Context, job *ReconcileJob) error {
		result, err := r.Run(ctx, job.SessionID, job.UserID)
		if err != nil {
			return err
		}
		summary := result.TallyResult.Summary
		job.Summary = &summary
		return nil
	}
}
