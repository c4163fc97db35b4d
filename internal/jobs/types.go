// Package jobs runs reconciliations asynchronously behind a queue.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/cheque-tally/internal/domain"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries applies when a job is published without MaxRetries.
const DefaultMaxRetries = 3

// ErrJobNotFound is returned by a JobStore for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// ReconcileJob is a request to reconcile one session on behalf of its owner.
type ReconcileJob struct {
	JobID     string    `json:"job_id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Status    JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the caller-facing message of the last failure.
	Error     string      `json:"error,omitempty"`
	ErrorKind domain.Kind `json:"error_kind,omitempty"`

	// Summary is set once the job completes.
	Summary *domain.TallySummary `json:"summary,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher enqueues reconciliation jobs.
type Publisher interface {
	PublishReconcile(ctx context.Context, job *ReconcileJob) error
	Close() error
}

// Consumer dispatches queued jobs to a handler.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error is retried only when
// Retryable reports whether a failed reconciliation is worth another attempt.
// Only errors of unknown kind are. Upstream model failures have already
// exhausted the pipeline's own structuring retries, and domain rejections
// such as a missing or unready session will not change on a rerun.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return domain.KindOf(err) == domain.KindInternal
}
