package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/cheque-tally/internal/domain"
	"github.com/dvloznov/cheque-tally/internal/report"
)

const companyJSON = `{"cheques": [
  {"cheque_number": "1001", "payee_name": "Acme", "amount": "100.00", "issue_date": "01/02/2024"},
  {"cheque_number": "1002", "payee_name": "Globex", "amount": 200, "issue_date": null},
  {"cheque_number": "1003", "payee_name": "Initech", "amount": "50.00", "issue_date": null},
  {"cheque_number": null, "payee_name": "Nobody", "amount": "10.00"}
]}`

const bankJSON = `{"cashed_cheques": [
  {"cheque_number": "1001", "clearing_date": "03/02/2024", "amount": "100.00"},
  {"cheque_number": "1003", "clearing_date": "04/02/2024", "amount": "55.00"}
]}`

func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	company := filepath.Join(dir, "company.json")
	bank := filepath.Join(dir, "bank.json")
	require.NoError(t, os.WriteFile(company, []byte(companyJSON), 0o600))
	require.NoError(t, os.WriteFile(bank, []byte(bankJSON), 0o600))
	return company, bank
}

func TestRunTally_JSON(t *testing.T) {
	company, bank := writeInputs(t)
	var out bytes.Buffer

	err := runTally(context.Background(), &RootOptions{Format: "json"},
		&TallyOptions{Company: company, Bank: bank}, &out, readInput)
	require.NoError(t, err)

	var result domain.TallyResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))

	assert.Equal(t, 3, result.Summary.TotalIssued)
	assert.Equal(t, 1, result.Summary.TotalCashed)
	assert.Equal(t, 1, result.Summary.TotalPending)
	assert.Equal(t, 1, result.Summary.TotalMismatched)
	assert.True(t, decimal.RequireFromString("350").Equal(result.Summary.AmountIssued))
	require.Len(t, result.Pending, 1)
	assert.Equal(t, "1002", result.Pending[0].ChequeNumber)
	require.Len(t, result.MismatchedAmount, 1)
	assert.Equal(t, "1003", result.MismatchedAmount[0].ChequeNumber)
}

func TestRunTally_Text(t *testing.T) {
	company, bank := writeInputs(t)
	var out bytes.Buffer

	err := runTally(context.Background(), &RootOptions{Format: "text"},
		&TallyOptions{Company: company, Bank: bank}, &out, readInput)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Issued:     3 cheques, 350.00")
	assert.Contains(t, text, "Cashed:     1 cheques, 100.00")
	assert.Contains(t, text, "Pending:    1 cheques, 200.00")
	assert.Contains(t, text, "Mismatched: 1 cheques")
	assert.Contains(t, text, "issued 50.00, bank 55.00")
}

func TestRunTally_WritesXLSX(t *testing.T) {
	company, bank := writeInputs(t)
	path := filepath.Join(t.TempDir(), "result.xlsx")

	err := runTally(context.Background(), &RootOptions{Format: "text"},
		&TallyOptions{Company: company, Bank: bank, XLSX: path}, &bytes.Buffer{}, readInput)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), report.SheetSummary)
}

func TestRunTally_ReadError(t *testing.T) {
	failing := func(ctx context.Context, location string) ([]byte, error) {
		return nil, errors.New("boom")
	}

	err := runTally(context.Background(), &RootOptions{Format: "text"},
		&TallyOptions{Company: "c.json", Bank: "b.json"}, &bytes.Buffer{}, failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read company input")
}

func TestRunTally_MissingFile(t *testing.T) {
	_, bank := writeInputs(t)

	err := runTally(context.Background(), &RootOptions{Format: "text"},
		&TallyOptions{Company: filepath.Join(t.TempDir(), "missing.json"), Bank: bank}, &bytes.Buffer{}, readInput)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTallyCommand_RequiresInputs(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"tally", "--company", "c.json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bank")
}

func TestTallyCommand_EndToEnd(t *testing.T) {
	company, bank := writeInputs(t)
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"tally", "--company", company, "--bank", bank, "--format", "json"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `"total_issued": 3`)
}
