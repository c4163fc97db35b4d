// Package bootstrap builds the runtime dependencies shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dvloznov/cheque-tally/internal/config"
	infraBQ "github.com/dvloznov/cheque-tally/internal/infra/bigquery"
	"github.com/dvloznov/cheque-tally/internal/logger"
	"github.com/dvloznov/cheque-tally/internal/store"
	"github.com/dvloznov/cheque-tally/internal/store/inmemory"
	"github.com/dvloznov/cheque-tally/internal/store/sqlite"
)

// OpenStore opens the store backend named by cfg.StoreBackend.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	log := logger.FromContext(ctx)

	switch cfg.StoreBackend {
	case config.BackendMemory, "":
		log.Warn().Msg("Using the in-memory store; data is lost on restart")
		return inmemory.NewStore(), nil

	case config.BackendSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("Opened SQLite store")
		return st, nil

	case config.BackendBigQuery:
		repo, err := infraBQ.NewRepository(ctx, cfg.ProjectID, cfg.Dataset)
		if err != nil {
			return nil, fmt.Errorf("OpenStore: %w", err)
		}
		log.Info().Str("project", cfg.ProjectID).Str("dataset", cfg.Dataset).Msg("Connected to BigQuery store")
		return repo, nil

	default:
		return nil, fmt.Errorf("OpenStore: unknown backend %q", cfg.StoreBackend)
	}
}
