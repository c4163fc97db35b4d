package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/cheque-tally/internal/api"
	"github.com/dvloznov/cheque-tally/internal/api/handlers"
	"github.com/dvloznov/cheque-tally/internal/auth"
	"github.com/dvloznov/cheque-tally/internal/bootstrap"
	"github.com/dvloznov/cheque-tally/internal/config"
	"github.com/dvloznov/cheque-tally/internal/document"
	"github.com/dvloznov/cheque-tally/internal/gcsuploader"
	"github.com/dvloznov/cheque-tally/internal/jobs"
	"github.com/dvloznov/cheque-tally/internal/jobs/inmemory"
	"github.com/dvloznov/cheque-tally/internal/logger"
	"github.com/dvloznov/cheque-tally/internal/pipeline"
	"github.com/dvloznov/cheque-tally/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Command-line flags override the environment.
	var (
		port   = flag.String("port", cfg.Port, "HTTP server port")
		bucket = flag.String("bucket", cfg.Bucket, "GCS bucket for archiving uploads (or set GCS_BUCKET env)")
	)
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel, cfg.LogFormat)
	ctx := logger.WithContext(context.Background(), log)

	st, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	genaiClient, err := pipeline.GeminiClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	var storage gcsuploader.StorageService
	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - uploads will not be archived")
	} else {
		gcs, err := gcsuploader.NewGCSStorageService(ctx, *bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer gcs.Close()
		storage = gcs
	}

	sessions := session.NewManager(st, st)
	documents := document.NewManager(st, sessions)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	authSvc := auth.NewService(st, tokens)

	structurer := pipeline.NewGeminiStructurer(genaiClient, cfg.GeminiModel)
	extractor := pipeline.NewGeminiTextExtractor(genaiClient, cfg.GeminiModel)
	reconciler := pipeline.NewReconciler(sessions, documents, structurer, pipeline.Config{
		Attempts: cfg.StructuringRetries,
		Backoff:  cfg.StructuringBackoff,
	})

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.QueueConfig{
		BufferSize: cfg.JobBuffer,
		Workers:    cfg.JobWorkers,
	}, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, jobs.ReconcileHandler(reconciler)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	handler := api.NewRouter(api.Handlers{
		Auth:      handlers.NewAuthHandler(authSvc, cfg.TokenTTL, log),
		Sessions:  handlers.NewSessionsHandler(sessions, documents, log),
		Uploads:   handlers.NewUploadsHandler(documents, extractor, storage, cfg.MaxUploadBytes, log),
		Reconcile: handlers.NewReconcileHandler(reconciler, sessions, jobQueue, jobStore, log),
		Documents: handlers.NewDocumentsHandler(documents, log),
	}, tokens, log)

	// Reconcile requests block on two model calls.
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("store", cfg.StoreBackend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
