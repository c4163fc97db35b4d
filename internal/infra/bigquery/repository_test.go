package bigquery

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/cheque-tally/internal/domain"
)

func TestQualifiedTable(t *testing.T) {
	assert.Equal(t, "`proj.cheque_tally.sessions`", qualifiedTable("proj", "cheque_tally", sessionsTable))
}

func TestAffectedRows(t *testing.T) {
	tests := []struct {
		name   string
		status *bigquery.JobStatus
		want   int64
	}{
		{"nil status", nil, 0},
		{"no statistics", &bigquery.JobStatus{}, 0},
		{"query statistics", &bigquery.JobStatus{Statistics: &bigquery.JobStatistics{
			Details: &bigquery.QueryStatistics{NumDMLAffectedRows: 1},
		}}, 1},
		{"other statistics", &bigquery.JobStatus{Statistics: &bigquery.JobStatistics{
			Details: &bigquery.LoadStatistics{},
		}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, affectedRows(tt.status))
		})
	}
}

func TestAttachSQL(t *testing.T) {
	sql, err := attachSQL("`p.d.sessions`", domain.DocumentKindCompany)
	require.NoError(t, err)
	assert.Contains(t, sql, "SET company_document_id = @document_id")
	assert.Contains(t, sql, "WHEN bank_document_id IS NOT NULL THEN 'complete'")
	assert.Contains(t, sql, "ELSE 'company_uploaded'")
	assert.Contains(t, sql, "WHEN status = 'tallied' THEN status")
	assert.Contains(t, sql, "AND company_document_id IS NULL")

	sql, err = attachSQL("`p.d.sessions`", domain.DocumentKindBank)
	require.NoError(t, err)
	assert.Contains(t, sql, "SET bank_document_id = @document_id")
	assert.Contains(t, sql, "ELSE 'bank_uploaded'")

	_, err = attachSQL("`p.d.sessions`", domain.DocumentKind("receipt"))
	assert.Error(t, err)
}

func TestUpdateDocumentSQL(t *testing.T) {
	sql, params := updateDocumentSQL("`p.d.documents`", domain.DocumentUpdate{
		StructuredData: []byte(`{"cheques":[]}`),
		Status:         domain.DocumentStatusStructured,
	})

	assert.True(t, strings.HasPrefix(sql, "UPDATE `p.d.documents` SET updated_at = @updated_at"))
	assert.Contains(t, sql, "structured_data = PARSE_JSON(@structured_data)")
	assert.NotContains(t, sql, "tally_result")
	require.Len(t, params, 2)
	assert.Equal(t, "structured_data", params[0].Name)
	assert.Equal(t, "status", params[1].Name)
}

func TestSessionFromRow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sess := sessionFromRow(&SessionRow{
		SessionID:         "s1",
		UserID:            "u1",
		SessionName:       "June",
		CompanyDocumentID: bigquery.NullString{StringVal: "c1", Valid: true},
		Status:            "company_uploaded",
		CreatedAt:         now,
		UpdatedAt:         now,
	})

	assert.Equal(t, "June", sess.Name)
	require.NotNil(t, sess.CompanyDocumentID)
	assert.Equal(t, "c1", *sess.CompanyDocumentID)
	assert.Nil(t, sess.BankDocumentID)
	assert.Equal(t, domain.SessionStatusCompanyUploaded, sess.Status)
}

func TestDocumentFromRow(t *testing.T) {
	doc := documentFromRow(&DocumentRow{
		DocumentID:     "d1",
		DocumentType:   "bank",
		StructuredData: bigquery.NullJSON{JSONVal: `{"cashed_cheques":[]}`, Valid: true},
		Status:         "structured",
	})

	assert.Equal(t, domain.DocumentKindBank, doc.Kind)
	assert.JSONEq(t, `{"cashed_cheques":[]}`, string(doc.StructuredData))
	assert.Nil(t, doc.TallyResult)
	assert.Equal(t, domain.DocumentStatusStructured, doc.Status)
}
