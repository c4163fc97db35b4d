package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/cheque-tally/internal/bootstrap"
	"github.com/dvloznov/cheque-tally/internal/document"
	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/session"
)

// NewRepairCommand creates the repair command.
func NewRepairCommand(rootOpts *RootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Reattach or delete documents left outside their session's slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd, rootOpts)
			st, err := bootstrap.OpenStore(ctx, rootOpts.storeConfig())
			if err != nil {
				return err
			}
			defer st.Close()

			documents := document.NewManager(st, session.NewManager(st, st))
			rep, err := documents.RepairOrphans(ctx, userID)
			if err != nil {
				return err
			}
			return writeRepairReport(cmd.OutOrStdout(), rootOpts.Format, rep)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owner user ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List a user's reconciliation sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd, rootOpts)
			st, err := bootstrap.OpenStore(ctx, rootOpts.storeConfig())
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := session.NewManager(st, st).List(ctx, userID)
			if err != nil {
				return err
			}
			return writeSessions(cmd.OutOrStdout(), rootOpts.Format, sessions)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owner user ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func writeRepairReport(w io.Writer, format string, rep document.RepairReport) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(rep)
	}
	_, err := fmt.Fprintf(w, "Scanned %d documents: %d reattached, %d deleted\n", rep.Scanned, rep.Reattached, rep.Deleted)
	return err
}

func writeSessions(w io.Writer, format string, sessions []*domain.Session) error {
	if format == "json" {
		if sessions == nil {
			sessions = []*domain.Session{}
		}
		return json.NewEncoder(w).Encode(map[string]interface{}{
			"sessions": sessions,
			"total":    len(sessions),
		})
	}

	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.SessionID, s.Name, s.Status, s.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
