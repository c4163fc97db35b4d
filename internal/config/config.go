// Package config loads process configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendBigQuery = "bigquery"
)

// devJWTSecret is only accepted with the memory backend.
const devJWTSecret = "cheque-tally-dev-secret"

// Config holds every setting the binaries read at startup.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	StoreBackend string
	SQLitePath   string
	ProjectID    string
	Dataset      string
	Bucket       string

	JWTSecret string
	TokenTTL  time.Duration

	GeminiModel        string
	StructuringRetries int
	StructuringBackoff time.Duration
	MaxUploadBytes     int64

	JobWorkers int
	JobBuffer  int
}

// Load reads .env files (missing files are ignored) and then the environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("Load: reading %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup}

	cfg := &Config{
		Port:               r.str("PORT", "8080"),
		LogLevel:           r.str("LOG_LEVEL", "info"),
		LogFormat:          r.str("LOG_FORMAT", "console"),
		StoreBackend:       strings.ToLower(r.str("STORE_BACKEND", BackendMemory)),
		SQLitePath:         r.str("SQLITE_PATH", "cheque-tally.db"),
		ProjectID:          r.str("GCP_PROJECT_ID", ""),
		Dataset:            r.str("BQ_DATASET", "cheque_tally"),
		Bucket:             r.str("GCS_BUCKET", ""),
		JWTSecret:          r.str("JWT_SECRET", ""),
		TokenTTL:           r.duration("TOKEN_TTL", 30*time.Minute),
		GeminiModel:        r.str("GEMINI_MODEL", "gemini-2.5-flash"),
		StructuringRetries: r.integer("STRUCTURING_ATTEMPTS", 3),
		StructuringBackoff: r.duration("STRUCTURING_BACKOFF", time.Second),
		MaxUploadBytes:     int64(r.integer("MAX_UPLOAD_BYTES", 20<<20)),
		JobWorkers:         r.integer("JOB_WORKERS", 4),
		JobBuffer:          r.integer("JOB_BUFFER", 100),
	}
	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints and fills the dev JWT secret when allowed.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
		if c.JWTSecret == "" {
			c.JWTSecret = devJWTSecret
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("Validate: SQLITE_PATH is required for the sqlite backend")
		}
	case BackendBigQuery:
		if c.ProjectID == "" {
			return fmt.Errorf("Validate: GCP_PROJECT_ID is required for the bigquery backend")
		}
	default:
		return fmt.Errorf("Validate: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("Validate: JWT_SECRET is required for the %s backend", c.StoreBackend)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("Validate: TOKEN_TTL must be positive")
	}
	if c.StructuringRetries < 1 {
		return fmt.Errorf("Validate: STRUCTURING_ATTEMPTS must be at least 1")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("Validate: MAX_UPLOAD_BYTES must be positive")
	}
	if c.JobWorkers < 1 || c.JobBuffer < 1 {
		return fmt.Errorf("Validate: JOB_WORKERS and JOB_BUFFER must be at least 1")
	}
	return nil
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
