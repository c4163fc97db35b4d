// Package cli implements the cheque-tally command-line tool.
package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dvloznov/cheque-tally/internal/config"
	"github.com/dvloznov/cheque-tally/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	Backend    string
	SQLitePath string
	ProjectID  string
	Dataset    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cheque-tally",
		Short: "Reconcile issued cheques against a bank statement",
		Long: `cheque-tally matches the cheques a company issued against the cheques
its bank cleared, and reports which were cashed, which are pending and
which cleared for a different amount.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", envOr("STORE_BACKEND", config.BackendSQLite), "store backend (sqlite|bigquery)")
	cmd.PersistentFlags().StringVar(&opts.SQLitePath, "sqlite", envOr("SQLITE_PATH", "cheque-tally.db"), "SQLite database path")
	cmd.PersistentFlags().StringVar(&opts.ProjectID, "project", os.Getenv("GCP_PROJECT_ID"), "GCP project ID")
	cmd.PersistentFlags().StringVar(&opts.Dataset, "dataset", envOr("BQ_DATASET", "cheque_tally"), "BigQuery dataset ID")

	cmd.AddCommand(NewTallyCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewRepairCommand(opts))
	cmd.AddCommand(NewSessionsCommand(opts))
	cmd.AddCommand(NewUploadCommand(opts))

	return cmd
}

// Execute loads an optional .env file and runs the root command.
func Execute() error {
	_ = godotenv.Load()
	return NewRootCommand().Execute()
}

// commandContext attaches a logger that writes to stderr, so JSON on stdout stays clean.
func commandContext(cmd *cobra.Command, opts *RootOptions) context.Context {
	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr()).Level(logger.ParseLevel(level))
	return logger.WithContext(cmd.Context(), log)
}

func (o *RootOptions) storeConfig() *config.Config {
	return &config.Config{
		StoreBackend: o.Backend,
		SQLitePath:   o.SQLitePath,
		ProjectID:    o.ProjectID,
		Dataset:      o.Dataset,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
