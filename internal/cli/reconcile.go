package cli

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/cheque-tally/internal/bootstrap"
	"github.com/dvloznov/cheque-tally/internal/document"
	"github.com/dvloznov/cheque-tally/internal/logger"
	"github.com/dvloznov/cheque-tally/internal/pipeline"
	"github.com/dvloznov/cheque-tally/internal/session"
)

// ReconcileOptions holds the reconcile command flags.
type ReconcileOptions struct {
	SessionID string
	UserID    string
	Model     string
	Attempts  int
	Backoff   time.Duration
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Structure and tally a stored session without the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd, rootOpts)
			client, err := pipeline.GeminiClient(ctx)
			if err != nil {
				return err
			}
			structurer := pipeline.NewGeminiStructurer(client, opts.Model)
			return runReconcile(ctx, rootOpts, opts, cmd.OutOrStdout(), structurer)
		},
	}

	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session ID")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "owner user ID")
	cmd.Flags().StringVar(&opts.Model, "model", envOr("GEMINI_MODEL", "gemini-2.5-flash"), "Gemini model")
	cmd.Flags().IntVar(&opts.Attempts, "attempts", 3, "structuring attempts per document")
	cmd.Flags().DurationVar(&opts.Backoff, "backoff", time.Second, "delay between structuring attempts")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runReconcile(ctx context.Context, rootOpts *RootOptions, opts *ReconcileOptions, out io.Writer, structurer pipeline.Structurer) error {
	st, err := bootstrap.OpenStore(ctx, rootOpts.storeConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	sessions := session.NewManager(st, st)
	documents := document.NewManager(st, sessions)
	reconciler := pipeline.NewReconciler(sessions, documents, structurer, pipeline.Config{
		Attempts: opts.Attempts,
		Backoff:  opts.Backoff,
	})

	result, err := reconciler.Run(ctx, opts.SessionID, opts.UserID)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info().Str("session_id", opts.SessionID).Msg("Session reconciled")

	if rootOpts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeTallyText(out, result.TallyResult)
}
