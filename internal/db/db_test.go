package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "skiller.db")

	database, err := OpenAndMigrate(path)
	require.NoError(t, err)
	defer database.Close()

	assert.Equal(t, path, database.Path())
	assert.True(t, Exists(path))

	version, err := database.MigrationStatus()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Migrating again is a no-op.
	require.NoError(t, database.Migrate())
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skiller.db")
	database, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, database.Close())

	require.NoError(t, Delete(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".skiller", "skiller.db"), ResolvePath(""))
	assert.Equal(t, filepath.Join(home, "x"), ExpandPath("~/x"))
	assert.Equal(t, "/abs/x", ExpandPath("/abs/x"))
	assert.Equal(t, "", ExpandPath(""))
}

func TestMigrateReset(t *testing.T) {
	database := NewTestDB(t)
	require.NoError(t, MigrateReset(database.DB))

	_, err := database.Exec(`SELECT 1 FROM installations`)
	assert.Error(t, err)
}
