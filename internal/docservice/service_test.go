package docservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/bucketpress/internal/apperr"
	"github.com/starford/bucketpress/internal/checksum"
	"github.com/starford/bucketpress/internal/objstore"
	"github.com/starford/bucketpress/internal/publish"
	"github.com/starford/bucketpress/internal/testutil"
	"github.com/starford/bucketpress/internal/vdir"
)

type fakePublisher struct {
	calls int
	err   error
}

func (f *fakePublisher) RequestPublish(context.Context) (publish.Result, error) {
	f.calls++
	if f.err != nil {
		return publish.Result{Snapshot: publish.Snapshot{Phase: publish.PhaseFailed}}, f.err
	}
	return publish.Result{Triggered: true, Snapshot: publish.Snapshot{Phase: publish.PhaseSucceeded}}, nil
}

func (f *fakePublisher) Snapshot() publish.Snapshot {
	return publish.Snapshot{Phase: publish.PhaseIdle}
}

func newService(t *testing.T, pub Publisher) (*Service, *objstore.Memory) {
	t.Helper()
	mem := objstore.NewMemory("http://cdn.test")
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(vdir.New(mem), testutil.TestCatalog(t), pub, logger), mem
}

func seed(t *testing.T, mem *objstore.Memory, key, body string) {
	t.Helper()
	require.NoError(t, mem.Upload(context.Background(), key, []byte(body), objstore.UploadOptions{Overwrite: true}))
}

func TestOpen_ProcessesDocument(t *testing.T) {
	svc, mem := newService(t, nil)
	raw := "---\ntitle: Trip\ntags: [travel]\n---\n# Day one\n\n![map](./img/map.png)\n<strong>bold</strong>\n"
	seed(t, mem, "blog/trip.md", raw)

	doc, err := svc.Open(context.Background(), "blog/trip.md")
	require.NoError(t, err)
	assert.Equal(t, raw, doc.Raw)
	assert.Equal(t, "Trip", doc.Title)
	assert.Equal(t, []string{"travel"}, doc.Tags)
	assert.Equal(t, checksum.Sum([]byte(raw)), doc.Checksum)
	assert.Contains(t, doc.Body, "![map](http://cdn.test/blog/img/map.png)")
	assert.Contains(t, doc.Body, "**bold**")
	assert.NotContains(t, doc.Body, "title: Trip")
	assert.Contains(t, doc.HTML, `<img src="http://cdn.test/blog/img/map.png" alt="map">`)
}

func TestOpen_Errors(t *testing.T) {
	svc, _ := newService(t, nil)

	_, err := svc.Open(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Open(context.Background(), "missing.md")
	assert.True(t, IsNotFound(err))
}

func TestSave_WritesVerbatimAndIndexes(t *testing.T) {
	svc, mem := newService(t, nil)
	ctx := context.Background()
	raw := "---\ntitle: Hello\nunknown: kept\n---\nBody #go\n"

	res, err := svc.Save(ctx, "notes/hello.md", []byte(raw), "", false)
	require.NoError(t, err)
	assert.Nil(t, res.Publish)
	assert.Equal(t, "Hello", res.Document.Title)

	stored, err := mem.Download(ctx, "notes/hello.md")
	require.NoError(t, err)
	assert.Equal(t, raw, string(stored))

	results, err := svc.Search(ctx, "Hello", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "notes/hello.md", results[0].Path)
}

func TestSave_IfMatchConflict(t *testing.T) {
	svc, mem := newService(t, nil)
	ctx := context.Background()
	seed(t, mem, "a.md", "v1")

	_, err := svc.Save(ctx, "a.md", []byte("v2"), "stale", false)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	stored, _ := mem.Download(ctx, "a.md")
	assert.Equal(t, "v1", string(stored))

	_, err = svc.Save(ctx, "a.md", []byte("v2"), checksum.Sum([]byte("v1")), false)
	require.NoError(t, err)
	stored, _ = mem.Download(ctx, "a.md")
	assert.Equal(t, "v2", string(stored))
}

func TestSave_InvalidKey(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.Save(context.Background(), "../escape.md", []byte("x"), "", false)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSave_WithPublish(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newService(t, pub)

	res, err := svc.Save(context.Background(), "a.md", []byte("# A"), "", true)
	require.NoError(t, err)
	require.NotNil(t, res.Publish)
	assert.True(t, res.Publish.Triggered)
	assert.Empty(t, res.PublishError)
	assert.Equal(t, 1, pub.calls)
}

func TestSave_PublishFailureKeepsSave(t *testing.T) {
	pub := &fakePublisher{err: apperr.Transport(apperr.OpPublish, "failed to publish: 500", nil)}
	svc, mem := newService(t, pub)

	res, err := svc.Save(context.Background(), "a.md", []byte("# A"), "", true)
	require.NoError(t, err)
	assert.Equal(t, "failed to publish: 500", res.PublishError)
	assert.Equal(t, 1, mem.Len())
}

func TestPublish_NotConfigured(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.Publish(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Equal(t, publish.PhaseIdle, svc.PublishState().Phase)
}

func TestDeleteFolder_DropsCatalogEntries(t *testing.T) {
	svc, mem := newService(t, nil)
	ctx := context.Background()
	seed(t, mem, "keep.md", "# Keep")
	_, err := svc.Save(ctx, "posts/a.md", []byte("# A"), "", false)
	require.NoError(t, err)
	_, err = svc.Save(ctx, "posts/deep/b.md", []byte("# B"), "", false)
	require.NoError(t, err)
	require.NoError(t, svc.Reindex(ctx))

	n, err := svc.DeleteFolder(ctx, "", "posts")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := svc.Search(ctx, "B", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotContains(t, r.Path, "posts/")
	}
	results, err = svc.Search(ctx, "Keep", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestUploadAndDeleteFile(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.CreateFolder(ctx, "", "drafts"))
	require.NoError(t, svc.Upload(ctx, "drafts", "idea.md", []byte("# Spaceship")))

	listing, err := svc.List(ctx, "drafts")
	require.NoError(t, err)
	require.Len(t, listing.Files, 1)
	assert.Equal(t, "idea.md", listing.Files[0].Name)

	results, err := svc.Search(ctx, "Spaceship", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	require.NoError(t, svc.DeleteFile(ctx, "drafts", "idea.md"))
	results, err = svc.Search(ctx, "Spaceship", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
