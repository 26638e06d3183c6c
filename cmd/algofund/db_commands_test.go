package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brojonat/algofund/service/db"
)

func setupTestDB(t *testing.T) string {
	t.Helper()

	// Skip by default - require explicit opt-in
	if os.Getenv("RUN_DB_TESTS") == "" {
		t.Skip("Skipping database integration test (set RUN_DB_TESTS=1 to enable)")
	}

	// Migrated and truncated; truncated again on cleanup
	db.NewTestStore(t)

	return db.TestDatabaseURL()
}

func TestDBSeedAndListCommands(t *testing.T) {
	dbURL := setupTestDB(t)

	output, err := runApp(t, "--database-url", dbURL, "db", "migrate")
	require.NoError(t, err)
	assert.Contains(t, output, "schema is up to date")

	output, err = runApp(t, "--database-url", dbURL, "db", "seed")
	require.NoError(t, err)
	assert.Contains(t, output, "Seeded 3 demo campaigns")

	// Seeding twice leaves existing rows untouched
	output, err = runApp(t, "--database-url", dbURL, "db", "seed")
	require.NoError(t, err)
	assert.Contains(t, output, "Seeded 0 demo campaigns")

	output, err = runApp(t, "--database-url", dbURL, "db", "list-campaigns")
	require.NoError(t, err)
	assert.Contains(t, output, "Green Energy Solar Farm")
	assert.Contains(t, output, "Ocean Cleanup Initiative")
}

func TestDBExpireCommand(t *testing.T) {
	dbURL := setupTestDB(t)

	_, err := runApp(t, "--database-url", dbURL, "db", "seed")
	require.NoError(t, err)

	// The demo deadlines are all in the past
	output, err := runApp(t, "--database-url", dbURL, "db", "expire")
	require.NoError(t, err)
	assert.Contains(t, output, "Expired 3 campaigns")

	output, err = runApp(t, "--database-url", dbURL, "db", "expire")
	require.NoError(t, err)
	assert.Contains(t, output, "Expired 0 campaigns")
}

func TestDBCommands_RequireDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	_, err := runApp(t, "--database-url", "", "db", "list-campaigns")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database-url is required")
}
