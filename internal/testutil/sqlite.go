// ABOUTME: Test helper that opens a migrated SQLite database in the test's temp dir.
// ABOUTME: Fast path for store, retention and API tests; no container runtime needed.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/scarson/board-ops/internal/store"
)

// NewSQLiteDB creates a fresh SQLite file under t.TempDir, applies all
// migrations, and returns a Store backed by it.
func NewSQLiteDB(t *testing.T) *store.Store {
	t.Helper()

	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := store.Migrate(db, store.DialectSQLite); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return store.NewSQLite(db)
}
