package catalog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/bucketpress/internal/apperr"
	"github.com/starford/bucketpress/internal/objstore"
	"github.com/starford/bucketpress/internal/vdir"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "bucketpress-test-*.db")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	require.NoError(t, db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count))
	assert.Zero(t, count)
}

func TestUpsertGetChecksum(t *testing.T) {
	db := testDB(t)
	d := Document{
		Path:      "blog/hello.md",
		Title:     "Hello World",
		Author:    "Ann",
		Category:  "dev",
		Tags:      []string{"go", "test"},
		Checksum:  "abc123",
		UpdatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Upsert(d, "This is a hello world post."))

	got, err := db.Get("blog/hello.md")
	require.NoError(t, err)
	assert.Equal(t, "Hello World", got.Title)
	assert.Equal(t, "Ann", got.Author)
	assert.Equal(t, []string{"go", "test"}, got.Tags)
	assert.True(t, d.UpdatedAt.Equal(got.UpdatedAt))

	cs, err := db.Checksum("blog/hello.md")
	require.NoError(t, err)
	assert.Equal(t, "abc123", cs)

	d.Title, d.Checksum = "Renamed", "def456"
	require.NoError(t, db.Upsert(d, "new body"))
	got, err = db.Get("blog/hello.md")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "def456", got.Checksum)
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.Get("missing.md")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	cs, err := db.Checksum("missing.md")
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestDeleteAndDeletePrefix(t *testing.T) {
	db := testDB(t)
	for _, p := range []string{"a/one.md", "a/b/two.md", "ab/three.md", "top.md"} {
		require.NoError(t, db.Upsert(Document{Path: p, Checksum: p}, "body"))
	}

	require.NoError(t, db.Delete("top.md"))
	n, err := db.DeletePrefix("a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := db.AllChecksums()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ab/three.md": "ab/three.md"}, all)
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.Upsert(Document{Path: "s.md", Title: "Search Me", Checksum: "1"}, "uniqueword appears here"))
	require.NoError(t, db.Upsert(Document{Path: "o.md", Title: "Other", Checksum: "2"}, "nothing to see"))

	results, err := db.Search("uniqueword", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s.md", results[0].Path)

	results, err = db.Search("   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_UsesFrontmatter(t *testing.T) {
	db := testDB(t)
	raw := []byte("---\ntitle: Launch\nauthor: Bo\ncategory: news\ndate: 2024-05-01\ntags: [release]\n---\nWe shipped #today\n")
	require.NoError(t, Index(db, "news/launch.md", raw))

	got, err := db.Get("news/launch.md")
	require.NoError(t, err)
	assert.Equal(t, "Launch", got.Title)
	assert.Equal(t, "Bo", got.Author)
	assert.Equal(t, "news", got.Category)
	assert.Equal(t, "2024-05-01", got.Date)
	assert.Equal(t, []string{"release", "today"}, got.Tags)

	require.NoError(t, Index(db, "notes/untitled-note.md", []byte("plain body")))
	got, err = db.Get("notes/untitled-note.md")
	require.NoError(t, err)
	assert.Equal(t, "untitled-note", got.Title)
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	mem := objstore.NewMemory("")
	put := func(key, data string) {
		require.NoError(t, mem.Upload(ctx, key, []byte(data), objstore.UploadOptions{Overwrite: true}))
	}
	put("docs/a.md", "# A")
	put("docs/deep/b.md", "# B")
	put("docs/img.png", "png")
	put("docs/.empty", "")
	require.NoError(t, db.Upsert(Document{Path: "gone.md", Checksum: "x"}, ""))

	engine := vdir.New(mem)
	require.NoError(t, Sync(ctx, db, engine, quietLogger()))

	all, err := db.AllChecksums()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, all, "docs/a.md")
	assert.Contains(t, all, "docs/deep/b.md")

	got, err := db.Get("docs/deep/b.md")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Title)
}

func TestIsDocument(t *testing.T) {
	assert.True(t, IsDocument("a/b.md"))
	assert.True(t, IsDocument("README.MD"))
	assert.True(t, IsDocument("x.markdown"))
	assert.False(t, IsDocument("a/b.png"))
	assert.False(t, IsDocument("a/.empty"))
}
