package testutil

import (
	"path/filepath"
	"testing"

	"github.com/utakatalp/volley-simulator/internal/store"
)

// NewTestStore creates a temporary SQLite database with migrations applied.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(store.DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
