// Package report renders a tally result as a spreadsheet.
package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/cheque-tally/internal/domain"
)

// ContentType is the MIME type of the workbook WriteXLSX produces.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names, in workbook order.
const (
	SheetSummary    = "Summary"
	SheetCashed     = "Cashed"
	SheetPending    = "Pending"
	SheetMismatched = "Mismatched"
)

// WriteXLSX writes result to w as a workbook with one sheet per list plus
// a summary sheet. Rows keep the order of the result lists.
func WriteXLSX(result domain.TallyResult, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("WriteXLSX: rename sheet: %w", err)
	}
	for _, name := range []string{SheetCashed, SheetPending, SheetMismatched} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("WriteXLSX: create sheet %s: %w", name, err)
		}
	}

	s := result.Summary
	summary := [][]interface{}{
		{"Metric", "Value"},
		{"Total issued", s.TotalIssued},
		{"Total cashed", s.TotalCashed},
		{"Total pending", s.TotalPending},
		{"Total mismatched", s.TotalMismatched},
		{"Amount issued", amount(s.AmountIssued)},
		{"Amount cashed", amount(s.AmountCashed)},
		{"Amount pending", amount(s.AmountPending)},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}

	cashed := [][]interface{}{{"Cheque number", "Payee", "Amount", "Issue date", "Clearing date"}}
	for _, c := range result.Cashed {
		cashed = append(cashed, []interface{}{c.ChequeNumber, deref(c.PayeeName), amount(c.Amount), deref(c.IssueDate), c.ClearingDate})
	}
	if err := writeRows(f, SheetCashed, cashed); err != nil {
		return err
	}

	pending := [][]interface{}{{"Cheque number", "Payee", "Amount", "Issue date"}}
	for _, p := range result.Pending {
		pending = append(pending, []interface{}{p.ChequeNumber, deref(p.PayeeName), amount(p.Amount), deref(p.IssueDate)})
	}
	if err := writeRows(f, SheetPending, pending); err != nil {
		return err
	}

	mismatched := [][]interface{}{{"Cheque number", "Issued amount", "Bank amount", "Difference"}}
	for _, m := range result.MismatchedAmount {
		mismatched = append(mismatched, []interface{}{
			m.ChequeNumber, amount(m.IssuedAmount), amount(m.BankAmount), amount(m.BankAmount.Sub(m.IssuedAmount)),
		})
	}
	if err := writeRows(f, SheetMismatched, mismatched); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("WriteXLSX: %s row %d: %w", sheet, i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("WriteXLSX: %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
