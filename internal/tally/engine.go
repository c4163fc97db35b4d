// Package tally matches issued cheques against cleared cheques.
//
// The engine is a pure function: no I/O, no logging, deterministic for a given input.
// Callers drop unusable records (see domain.FilterIssued / domain.FilterCleared)
// before calling Tally, so every record here carries the fields matching needs.
package tally

import (
	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/shopspring/decimal"
)

// Tolerance is the absolute difference above which two amounts are a mismatch.
var Tolerance = decimal.New(1, -2)

// Tally classifies every issued cheque as cashed, pending or mismatched.
//
// Matching is exact string equality on the cheque number. When the cleared list
// holds the same number more than once, the last entry wins. Issued duplicates
// are each matched independently against the same cleared entry.
func Tally(issued []domain.UsableIssued, cleared []domain.UsableCleared) domain.TallyResult {
	lookup := make(map[string]domain.UsableCleared, len(cleared))
	for _, c := range cleared {
		lookup[c.ChequeNumber] = c
	}

	result := domain.TallyResult{
		Cashed:           []domain.CashedCheque{},
		Pending:          []domain.PendingCheque{},
		MismatchedAmount: []domain.MismatchedCheque{},
	}

	amountIssued := decimal.Zero
	amountCashed := decimal.Zero
	amountPending := decimal.Zero

	for _, cheque := range issued {
		amountIssued = amountIssued.Add(cheque.Amount)

		match, ok := lookup[cheque.ChequeNumber]
		if !ok {
			result.Pending = append(result.Pending, domain.PendingCheque{
				ChequeNumber: cheque.ChequeNumber,
				PayeeName:    cheque.PayeeName,
				Amount:       cheque.Amount,
				IssueDate:    cheque.IssueDate,
			})
			amountPending = amountPending.Add(cheque.Amount)
			continue
		}

		if match.Amount.Sub(cheque.Amount).Abs().GreaterThan(Tolerance) {
			// Mismatches count toward neither the cashed nor the pending total.
			result.MismatchedAmount = append(result.MismatchedAmount, domain.MismatchedCheque{
				ChequeNumber: cheque.ChequeNumber,
				IssuedAmount: cheque.Amount,
				BankAmount:   match.Amount,
			})
			continue
		}

		result.Cashed = append(result.Cashed, domain.CashedCheque{
			ChequeNumber: cheque.ChequeNumber,
			PayeeName:    cheque.PayeeName,
			Amount:       cheque.Amount,
			IssueDate:    cheque.IssueDate,
			ClearingDate: match.ClearingDate,
		})
		amountCashed = amountCashed.Add(cheque.Amount)
	}

	result.Summary = domain.TallySummary{
		TotalIssued:     len(issued),
		TotalCashed:     len(result.Cashed),
		TotalPending:    len(result.Pending),
		TotalMismatched: len(result.MismatchedAmount),
		AmountIssued:    amountIssued.Round(2),
		AmountCashed:    amountCashed.Round(2),
		AmountPending:   amountPending.Round(2),
	}

	return result
}

// Records filters raw structured records and tallies the usable ones.
// It also returns how many issued and cleared records were dropped.
func Records(issued []domain.IssuedCheque, cleared []domain.ClearedCheque) (domain.TallyResult, int, int) {
	usableIssued, droppedIssued := domain.FilterIssued(issued)
	usableCleared, droppedCleared := domain.FilterCleared(cleared)
	return Tally(usableIssued, usableCleared), droppedIssued, droppedCleared
}
