package testutil

import (
	"testing"

	"github.com/island-mesh/island/internal/island/database"
)

// NewTestDatabase opens an island database in a temporary directory.
// It is closed when the test completes.
func NewTestDatabase(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(t.TempDir(), NewTestLogger(t))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	return db
}
