package domain

import (
	"github.com/shopspring/decimal"
)

// IssuedCheque is one cheque recorded in the company ledger.
// Every field is optional because the structuring model is best-effort.
type IssuedCheque struct {
	ChequeNumber *string          `json:"cheque_number"`
	PayeeName    *string          `json:"payee_name"`
	Amount       *decimal.Decimal `json:"amount"`
	IssueDate    *string          `json:"issue_date"` // free-form, never parsed
}

// ClearedCheque is one cheque the bank reports as cashed.
type ClearedCheque struct {
	ChequeNumber *string          `json:"cheque_number"`
	ClearingDate *string          `json:"clearing_date"`
	Amount       *decimal.Decimal `json:"amount"`
}

// CompanyStructured is the structured form of a company document.
type CompanyStructured struct {
	Cheques []IssuedCheque `json:"cheques"`
}

// BankStructured is the structured form of a bank document.
type BankStructured struct {
	CashedCheques []ClearedCheque `json:"cashed_cheques"`
}

// UsableIssued is an issued cheque with the fields matching depends on.
type UsableIssued struct {
	ChequeNumber string
	PayeeName    *string
	Amount       decimal.Decimal
	IssueDate    *string
}

// UsableCleared is a cleared cheque with every field present.
type UsableCleared struct {
	ChequeNumber string
	ClearingDate string
	Amount       decimal.Decimal
}

// Usable reports whether the record carries a cheque number and an amount.
func (c IssuedCheque) Usable() (UsableIssued, bool) {
	if c.ChequeNumber == nil || c.Amount == nil {
		return UsableIssued{}, false
	}
	return UsableIssued{
		ChequeNumber: *c.ChequeNumber,
		PayeeName:    c.PayeeName,
		Amount:       *c.Amount,
		IssueDate:    c.IssueDate,
	}, true
}

// Usable reports whether the record carries a cheque number, clearing date and amount.
func (c ClearedCheque) Usable() (UsableCleared, bool) {
	if c.ChequeNumber == nil || c.ClearingDate == nil || c.Amount == nil {
		return UsableCleared{}, false
	}
	return UsableCleared{
		ChequeNumber: *c.ChequeNumber,
		ClearingDate: *c.ClearingDate,
		Amount:       *c.Amount,
	}, true
}

// FilterIssued keeps the usable records in input order and returns how many were dropped.
func FilterIssued(records []IssuedCheque) ([]UsableIssued, int) {
	out := make([]UsableIssued, 0, len(records))
	for _, r := range records {
		if u, ok := r.Usable(); ok {
			out = append(out, u)
		}
	}
	return out, len(records) - len(out)
}

// FilterCleared keeps the usable records in input order and returns how many were dropped.
func FilterCleared(records []ClearedCheque) ([]UsableCleared, int) {
	out := make([]UsableCleared, 0, len(records))
	for _, r := range records {
		if u, ok := r.Usable(); ok {
			out = append(out, u)
		}
	}
	return out, len(records) - len(out)
}
