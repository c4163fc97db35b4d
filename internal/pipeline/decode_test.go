package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain object", `{"cheques":[]}`, `{"cheques":[]}`},
		{"fenced json", "```json\n{\"cheques\":[]}\n```", `{"cheques":[]}`},
		{"fenced bare", "```\n[1,2]\n```", `[1,2]`},
		{"leading prose", "Here you go:\n{\"a\":1}\nThanks", `{"a":1}`},
		{"array", "  [ {\"a\":1} ]  ", `[ {"a":1} ]`},
		{"no json", "nothing here", "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestDecodeCompany(t *testing.T) {
	raw := "```json\n" + `{"cheques": [
		{"cheque_number": "001", "payee_name": "ACME Ltd", "amount": 1250.50, "issue_date": "2024-01-05"},
		{"cheque_number": 1002, "payee_name": "", "amount": "1,000.00", "issue_date": null},
		{"cheque_number": null, "amount": 5},
		{"cheque_number": "1004", "amount": "n/a"},
		"garbage"
	]}` + "\n```"

	out, err := DecodeCompany(raw)
	require.NoError(t, err)
	require.Len(t, out.Cheques, 5)

	first := out.Cheques[0]
	assert.Equal(t, "001", *first.ChequeNumber)
	assert.Equal(t, "ACME Ltd", *first.PayeeName)
	assert.Equal(t, "1250.5", first.Amount.String())
	assert.Equal(t, "2024-01-05", *first.IssueDate)

	second := out.Cheques[1]
	assert.Equal(t, "1002", *second.ChequeNumber)
	assert.Nil(t, second.PayeeName)
	assert.Equal(t, "1000", second.Amount.String())
	assert.Nil(t, second.IssueDate)

	assert.Nil(t, out.Cheques[2].ChequeNumber)
	assert.Nil(t, out.Cheques[3].Amount)
	assert.Nil(t, out.Cheques[4].ChequeNumber)
	assert.Nil(t, out.Cheques[4].Amount)
}

func TestDecodeBank(t *testing.T) {
	out, err := DecodeBank(`[{"cheque_number": "A1", "clearing_date": "2024-01-02", "amount": "$ 100.00"}]`)
	require.NoError(t, err)
	require.Len(t, out.CashedCheques, 1)

	c := out.CashedCheques[0]
	assert.Equal(t, "A1", *c.ChequeNumber)
	assert.Equal(t, "2024-01-02", *c.ClearingDate)
	assert.Equal(t, "100", c.Amount.String())
}

func TestDecodeBank_NullList(t *testing.T) {
	out, err := DecodeBank(`{"cashed_cheques": null}`)
	require.NoError(t, err)
	assert.Empty(t, out.CashedCheques)
}

func TestDecode_Errors(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"other": []}`, `{"cheques": {"a": 1}}`, `{"cheques": [`} {
		_, err := DecodeCompany(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"100", "100", true},
		{"1,234.56", "1234.56", true},
		{"-20,000", "-20000", true},
		{"GBP 99.90", "99.9", true},
		{"", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}
