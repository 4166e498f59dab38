package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDB(t *testing.T) {
	testDBPath := filepath.Join(t.TempDir(), "nested", "registry.db")

	db, err := InitDBWithPath(testDBPath)
	require.NoError(t, err)
	defer db.Close()

	_, statErr := os.Stat(testDBPath)
	require.NoError(t, statErr, "database file was not created")

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", "registry").Scan(&name)
	require.NoError(t, err)
	require.Equal(t, "registry", name)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	current, latest, err := SchemaVersion(db)
	require.NoError(t, err)
	require.Equal(t, latest, current)
	require.EqualValues(t, 1, latest)
}

func TestInitDB_ReopenIsIdempotent(t *testing.T) {
	testDBPath := filepath.Join(t.TempDir(), "registry.db")

	db, err := InitDBWithPath(testDBPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = InitDBWithPath(testDBPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestNormalizeSQLiteDSN(t *testing.T) {
	require.Equal(t, "file:/tmp/r.db?mode=rwc", normalizeSQLiteDSN("/tmp/r.db"))
	require.Equal(t, "file::memory:?cache=shared", normalizeSQLiteDSN(":memory:"))
	require.Equal(t, "file:x.db?mode=ro", normalizeSQLiteDSN("file:x.db?mode=ro"))
}
