package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrader/internal/config"
)

func TestNewSQLite_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	st, err := NewSQLite(config.DatabaseConfig{Path: path, MaxOpenConns: 2, MaxIdleConns: 2})
	require.NoError(t, err)
	defer st.Close()

	var mode string
	require.NoError(t, st.DB().QueryRow("PRAGMA journal_mode;").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestWithTx(t *testing.T) {
	st, err := NewSQLite(config.DatabaseConfig{InMemory: true, MaxOpenConns: 8})
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, err = st.DB().Exec(`CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)

	require.NoError(t, st.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO kv VALUES ('a', '1')`)
		return err
	}))

	boom := errors.New("boom")
	err = st.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO kv VALUES ('b', '2')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&count))
	assert.Equal(t, 1, count, "rolled back insert is not visible")
}
