// Package api assembles the HTTP routes and middleware chain.
package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/cheque-tally/internal/api/handlers"
	"github.com/dvloznov/cheque-tally/internal/api/middleware"
)

// Handlers groups the endpoint handlers the router serves.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Sessions  *handlers.SessionsHandler
	Uploads   *handlers.UploadsHandler
	Reconcile *handlers.ReconcileHandler
	Documents *handlers.DocumentsHandler
}

// NewRouter registers every route and wraps the mux in the middleware chain.
func NewRouter(h Handlers, tokens middleware.TokenValidator, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("GET /api/auth/me", h.Auth.Me)

	mux.HandleFunc("POST /api/sessions", h.Sessions.CreateSession)
	mux.HandleFunc("GET /api/sessions", h.Sessions.ListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.Sessions.GetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.Sessions.DeleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/report.xlsx", h.Sessions.Report)

	mux.HandleFunc("POST /api/sessions/{id}/upload-company", h.Uploads.UploadCompany)
	mux.HandleFunc("POST /api/sessions/{id}/upload-bank", h.Uploads.UploadBank)

	mux.HandleFunc("POST /api/sessions/{id}/reconcile", h.Reconcile.Reconcile)
	mux.HandleFunc("POST /api/sessions/{id}/reconcile/jobs", h.Reconcile.EnqueueReconcile)
	mux.HandleFunc("GET /api/jobs", h.Reconcile.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.Reconcile.GetJob)

	mux.HandleFunc("GET /api/documents/{id}", h.Documents.GetDocument)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(tokens)(mux),
				),
			),
		),
	)
}
