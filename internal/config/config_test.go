package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(mapLookup(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, "cheque_tally", cfg.Dataset)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, 3, cfg.StructuringRetries)
	assert.Equal(t, time.Second, cfg.StructuringBackoff)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 4, cfg.JobWorkers)
	assert.Equal(t, 100, cfg.JobBuffer)
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := FromLookup(mapLookup(map[string]string{
		"PORT":                 "9090",
		"STORE_BACKEND":        "SQLite",
		"SQLITE_PATH":          "/tmp/x.db",
		"JWT_SECRET":           "s3cret",
		"TOKEN_TTL":            "1h",
		"STRUCTURING_ATTEMPTS": "5",
		"STRUCTURING_BACKOFF":  "250ms",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5, cfg.StructuringRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.StructuringBackoff)
}

func TestFromLookup_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad integer", map[string]string{"JOB_WORKERS": "many"}},
		{"bad duration", map[string]string{"TOKEN_TTL": "forever"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "postgres"}},
		{"bigquery without project", map[string]string{"STORE_BACKEND": "bigquery", "JWT_SECRET": "x"}},
		{"sqlite without secret", map[string]string{"STORE_BACKEND": "sqlite"}},
		{"zero attempts", map[string]string{"STRUCTURING_ATTEMPTS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLookup(mapLookup(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GEMINI_MODEL=gemini-test\n"), 0o600))
	t.Setenv("GEMINI_MODEL", "")
	os.Unsetenv("GEMINI_MODEL")
	t.Setenv("PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-test", cfg.GeminiModel)
	assert.Equal(t, "7070", cfg.Port)
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
