package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/cheque-tally/internal/document"
	"github.com/dvloznov/cheque-tally/internal/session"
	"github.com/dvloznov/cheque-tally/internal/store/sqlite"
)

func seedSQLite(t *testing.T, userID string, names ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tally.db")
	st, err := sqlite.Open(path)
	require.NoError(t, err)
	defer st.Close()

	sessions := session.NewManager(st, st)
	for _, name := range names {
		_, err := sessions.Create(context.Background(), userID, name)
		require.NoError(t, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSessionsCommand_Text(t *testing.T) {
	path := seedSQLite(t, "u1", "January", "February")

	out, err := execute(t, "sessions", "--backend", "sqlite", "--sqlite", path, "--user", "u1")
	require.NoError(t, err)

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "January")
	assert.Contains(t, out, "February")
	assert.Contains(t, out, "created")
}

func TestSessionsCommand_JSON(t *testing.T) {
	path := seedSQLite(t, "u1", "January")

	out, err := execute(t, "sessions", "--backend", "sqlite", "--sqlite", path, "--user", "u1", "--format", "json")
	require.NoError(t, err)

	var payload struct {
		Sessions []map[string]interface{} `json:"sessions"`
		Total    int                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, 1, payload.Total)
	assert.Equal(t, "January", payload.Sessions[0]["session_name"])
}

func TestSessionsCommand_OtherUserSeesNothing(t *testing.T) {
	path := seedSQLite(t, "u1", "January")

	out, err := execute(t, "sessions", "--backend", "sqlite", "--sqlite", path, "--user", "u2")
	require.NoError(t, err)
	assert.Equal(t, "No sessions.\n", out)
}

func TestRepairCommand_EmptyStore(t *testing.T) {
	path := seedSQLite(t, "u1")

	out, err := execute(t, "repair", "--backend", "sqlite", "--sqlite", path, "--user", "u1", "--format", "json")
	require.NoError(t, err)

	var rep document.RepairReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, document.RepairReport{}, rep)
}

func TestRepairCommand_Text(t *testing.T) {
	path := seedSQLite(t, "u1", "January")

	out, err := execute(t, "repair", "--backend", "sqlite", "--sqlite", path, "--user", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Scanned 0 documents: 0 reattached, 0 deleted\n", out)
}

func TestRepairCommand_UnknownBackend(t *testing.T) {
	_, err := execute(t, "repair", "--backend", "cassandra", "--user", "u1")
	require.Error(t, err)
}

func TestUploadCommand_Validation(t *testing.T) {
	t.Setenv("GCS_BUCKET", "")

	_, err := execute(t, "upload", "--file", "statement.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--bucket")

	_, err = execute(t, "upload", "--bucket", "b", "--file", "notes.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PDF")
}
