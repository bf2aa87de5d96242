// Package testutil provides shared fixtures for ofxread tests: a migrated
// archive database and a builder for SGML statements.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/ofxread/internal/model"
	"github.com/Veraticus/ofxread/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	Path    string
}

// SetupTestDB creates a migrated archive in a temporary directory. It is
// closed when the test finishes.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return OpenTestDB(t, filepath.Join(t.TempDir(), "archive.db"))
}

// OpenTestDB opens (and migrates) the archive at path, for example one a
// command under test has written.
func OpenTestDB(t *testing.T, path string) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		Path:    path,
		t:       t,
	}
}

// MustSaveImport archives accounts or fails the test.
func (db *TestDB) MustSaveImport(source, digest string, accounts []model.Account) string {
	db.t.Helper()
	id, err := db.Storage.SaveImport(context.Background(), source, digest, accounts)
	if err != nil {
		db.t.Fatalf("failed to save import %q: %v", source, err)
	}
	return id
}

// MustListImports returns every archived import or fails the test.
func (db *TestDB) MustListImports() []storage.Import {
	db.t.Helper()
	imports, err := db.Storage.ListImports(context.Background())
	if err != nil {
		db.t.Fatalf("failed to list imports: %v", err)
	}
	return imports
}
