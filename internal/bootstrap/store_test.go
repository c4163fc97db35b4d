package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/cheque-tally/internal/config"
	"github.com/dvloznov/cheque-tally/internal/store/inmemory"
	"github.com/dvloznov/cheque-tally/internal/store/sqlite"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, err := OpenStore(ctx, &config.Config{StoreBackend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &inmemory.Store{}, st)

	st, err = OpenStore(ctx, &config.Config{
		StoreBackend: config.BackendSQLite,
		SQLitePath:   filepath.Join(t.TempDir(), "tally.db"),
	})
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, st)
	require.NoError(t, st.Close())

	_, err = OpenStore(ctx, &config.Config{StoreBackend: "postgres"})
	assert.Error(t, err)
}
