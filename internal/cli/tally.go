package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/gcsuploader"
	"github.com/dvloznov/cheque-tally/internal/logger"
	"github.com/dvloznov/cheque-tally/internal/pipeline"
	"github.com/dvloznov/cheque-tally/internal/report"
	"github.com/dvloznov/cheque-tally/internal/tally"
)

// TallyOptions holds the tally command flags.
type TallyOptions struct {
	Company string
	Bank    string
	XLSX    string
}

// NewTallyCommand creates the tally command.
func NewTallyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TallyOptions{}

	cmd := &cobra.Command{
		Use:   "tally",
		Short: "Reconcile structured cheque lists offline",
		Long: `Reconcile a company cheque list against a bank cleared-cheque list.

Both inputs are JSON in the structured-data shape ({"cheques": [...]} and
{"cashed_cheques": [...]}), read from a local path or a gs:// URI. Records
missing a cheque number, amount or clearing date are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTally(commandContext(cmd, rootOpts), rootOpts, opts, cmd.OutOrStdout(), readInput)
		},
	}

	cmd.Flags().StringVar(&opts.Company, "company", "", "company cheque list (path or gs:// URI)")
	cmd.Flags().StringVar(&opts.Bank, "bank", "", "bank cleared-cheque list (path or gs:// URI)")
	cmd.Flags().StringVar(&opts.XLSX, "xlsx", "", "also write the result as a spreadsheet to this path")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("bank")

	return cmd
}

type inputReader func(ctx context.Context, location string) ([]byte, error)

// readInput reads a local file or, for gs:// URIs, the object bytes.
func readInput(ctx context.Context, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "gs://") {
		return os.ReadFile(location)
	}
	if _, _, err := gcsuploader.ParseGCSURI(location); err != nil {
		return nil, err
	}
	gcs, err := gcsuploader.NewGCSStorageService(ctx, "")
	if err != nil {
		return nil, err
	}
	defer gcs.Close()
	return gcs.FetchFromGCS(ctx, location)
}

func runTally(ctx context.Context, rootOpts *RootOptions, opts *TallyOptions, out io.Writer, read inputReader) error {
	companyRaw, err := read(ctx, opts.Company)
	if err != nil {
		return fmt.Errorf("read company input: %w", err)
	}
	bankRaw, err := read(ctx, opts.Bank)
	if err != nil {
		return fmt.Errorf("read bank input: %w", err)
	}

	company, err := pipeline.DecodeCompany(string(companyRaw))
	if err != nil {
		return fmt.Errorf("decode company input: %w", err)
	}
	bank, err := pipeline.DecodeBank(string(bankRaw))
	if err != nil {
		return fmt.Errorf("decode bank input: %w", err)
	}

	result, droppedIssued, droppedCleared := tally.Records(company.Cheques, bank.CashedCheques)
	if droppedIssued > 0 || droppedCleared > 0 {
		log := logger.FromContext(ctx)
		log.Warn().
			Int("dropped_issued", droppedIssued).
			Int("dropped_cleared", droppedCleared).
			Msg("Dropped cheque records with missing fields")
	}

	if opts.XLSX != "" {
		if err := writeXLSXFile(opts.XLSX, result); err != nil {
			return err
		}
	}

	if rootOpts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return writeTallyText(out, result)
}

func writeXLSXFile(path string, result domain.TallyResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := report.WriteXLSX(result, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeTallyText(w io.Writer, r domain.TallyResult) error {
	s := r.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "Issued:     %d cheques, %s\n", s.TotalIssued, s.AmountIssued.StringFixed(2))
	fmt.Fprintf(&b, "Cashed:     %d cheques, %s\n", s.TotalCashed, s.AmountCashed.StringFixed(2))
	fmt.Fprintf(&b, "Pending:    %d cheques, %s\n", s.TotalPending, s.AmountPending.StringFixed(2))
	fmt.Fprintf(&b, "Mismatched: %d cheques\n", s.TotalMismatched)

	if len(r.Pending) > 0 {
		b.WriteString("\nPending:\n")
		for _, p := range r.Pending {
			fmt.Fprintf(&b, "  %-12s %12s  %s\n", p.ChequeNumber, p.Amount.StringFixed(2), deref(p.PayeeName))
		}
	}
	if len(r.MismatchedAmount) > 0 {
		b.WriteString("\nMismatched:\n")
		for _, m := range r.MismatchedAmount {
			fmt.Fprintf(&b, "  %-12s issued %s, bank %s\n", m.ChequeNumber, m.IssuedAmount.StringFixed(2), m.BankAmount.StringFixed(2))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
