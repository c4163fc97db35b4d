package domain

import "github.com/shopspring/decimal"

// Money goes over the wire as JSON numbers, not quoted strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// TallySummary holds the counts and rounded amount totals of a reconciliation run.
type TallySummary struct {
	TotalIssued     int             `json:"total_issued"`
	TotalCashed     int             `json:"total_cashed"`
	TotalPending    int             `json:"total_pending"`
	TotalMismatched int             `json:"total_mismatched"`
	AmountIssued    decimal.Decimal `json:"amount_issued"`
	AmountCashed    decimal.Decimal `json:"amount_cashed"`
	AmountPending   decimal.Decimal `json:"amount_pending"`
}

// CashedCheque is an issued cheque the bank cleared for the same amount.
type CashedCheque struct {
	ChequeNumber string          `json:"cheque_number"`
	PayeeName    *string         `json:"payee_name"`
	Amount       decimal.Decimal `json:"amount"`
	IssueDate    *string         `json:"issue_date"`
	ClearingDate string          `json:"clearing_date"`
}

// PendingCheque is an issued cheque with no cleared counterpart.
type PendingCheque struct {
	ChequeNumber string          `json:"cheque_number"`
	PayeeName    *string         `json:"payee_name"`
	Amount       decimal.Decimal `json:"amount"`
	IssueDate    *string         `json:"issue_date"`
}

// MismatchedCheque is a cheque whose cleared amount differs from the issued amount.
type MismatchedCheque struct {
	ChequeNumber string          `json:"cheque_number"`
	IssuedAmount decimal.Decimal `json:"issued_amount"`
	BankAmount   decimal.Decimal `json:"bank_amount"`
}

// TallyResult is the full output of one reconciliation run. A new run replaces the old one.
type TallyResult struct {
	Summary          TallySummary       `json:"summary"`
	Cashed           []CashedCheque     `json:"cashed"`
	Pending          []PendingCheque    `json:"pending"`
	MismatchedAmount []MismatchedCheque `json:"mismatched_amount"`
}
