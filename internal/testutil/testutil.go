// Package testutil provides shared test helpers for setting up buckets and
// catalogs.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/bucketpress/internal/catalog"
	"github.com/starford/bucketpress/internal/objstore"
)

// TestCatalog creates a temporary SQLite catalog that is automatically
// cleaned up.
func TestCatalog(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "bucketpress-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBucket creates a temporary directory-backed bucket.
func TestBucket(t *testing.T) (string, *objstore.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := objstore.NewFS(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
