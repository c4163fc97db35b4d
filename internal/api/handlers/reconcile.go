package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/cheque-tally/internal/api/middleware"
	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/jobs"
)

// ReconcileHandler runs reconciliations inline or through the job queue.
type ReconcileHandler struct {
	reconciler jobs.Reconciler
	sessions   SessionService
	publisher  jobs.Publisher
	store      jobs.JobStore
	log        zerolog.Logger
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(reconciler jobs.Reconciler, sessions SessionService, publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		reconciler: reconciler,
		sessions:   sessions,
		publisher:  publisher,
		store:      store,
		log:        log,
	}
}

// Reconcile handles POST /api/sessions/{id}/reconcile
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.reconciler.Run(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// EnqueueReconcile handles POST /api/sessions/{id}/reconcile/jobs
func (h *ReconcileHandler) EnqueueReconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	sessionID := r.PathValue("id")

	// Fail fast on sessions a worker would reject.
	sess, err := h.sessions.Get(ctx, sessionID, userID)
	if err != nil {
		writeErr(w, r, h.log, err)
		return
	}
	if !sess.Ready() {
		writeErr(w, r, h.log, domain.NewError(domain.KindSessionNotReady,
			"both company and bank documents must be uploaded before reconciliation"))
		return
	}

	job := &jobs.ReconcileJob{SessionID: sessionID, UserID: userID}
	if err := h.publisher.PublishReconcile(ctx, job); err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to enqueue reconcile job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue reconcile job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("session_id", sessionID).Msg("Reconcile job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"session_id": sessionID,
		"status":     string(jobs.JobStatusPending),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *ReconcileHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	if job.UserID != userID {
		writeErr(w, r, h.log, domain.NewError(domain.KindNotAuthorized, "job belongs to another user"))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *ReconcileHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID:    userID,
		SessionID: query.Get("session_id"),
		Status:    jobs.JobStatus(query.Get("status")),
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil {
		filter.Offset = offset
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
