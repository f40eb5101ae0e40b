package testutil

import (
	"testing"
	"time"

	"workspaces/internal/database"
	"workspaces/internal/database/migrations"
)

// NewTestStore creates an in-memory SQLite store at the latest schema
// version. The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *database.SQLiteStore {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := migrations.Upgrade(sqlDB, ":memory:", time.Now()); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	store := database.NewSQLiteStoreFromDB(sqlDB)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
