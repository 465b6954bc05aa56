// ABOUTME: Tests for SQLite database connection and schema initialization
// ABOUTME: Verifies database creation, schema, and in-memory pooling
package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInMemory(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.Equal(t, ":memory:", db.Path())
}

func TestSchemaInitialization(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for _, object := range []string{"turns", "idx_turns_created"} {
		var name string
		err := db.conn.QueryRow("SELECT name FROM sqlite_master WHERE name=?", object).Scan(&name)
		assert.NoError(t, err, "%s should exist", object)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "transcript.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.FileExists(t, dbPath)
}

func TestOpen_ReopensExistingTranscript(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "transcript.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, NewTurnStore(db).Append(testTurn(t, "persisted")))
	_ = db.Close()

	db, err = Open(dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	n, err := NewTurnStore(db).Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCloseMultipleTimes(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)

	assert.NoError(t, db.Close())
	_ = db.Close()
}
